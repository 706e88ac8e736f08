// Package cli contains the voxelnav command line: run an exploration against the simulated robot
// and look inside the snapshots it leaves behind.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	flagConfig = "config"
	flagDebug  = "debug"

	// Explore flags.
	exploreFlagIterations = "iterations"
	exploreFlagGoal       = "goal"
	exploreFlagRandom     = "random"
	exploreFlagDryRun     = "dry-run"
	exploreFlagGoHome     = "go-home"
	exploreFlagStore      = "store"
	exploreFlagStoreKind  = "store-kind"

	// Snapshot flags.
	snapshotFlagSession  = "session"
	snapshotFlagSequence = "sequence"
	exportFlagOutput     = "output"
	exportFlagBinary     = "binary"
)

var snapshotFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  snapshotFlagSession,
		Usage: "session of the snapshot to read from a sqlite database, latest if unset",
	},
	&cli.Uint64Flag{
		Name:  snapshotFlagSequence,
		Usage: "sequence number of the snapshot to read from a sqlite database",
	},
}

var app = &cli.App{
	Name:            "voxelnav",
	Usage:           "explore a scene with an RGB-D robot and query the objects it found",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "explore",
			Usage: "explore the simulated room and report what was found",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  exploreFlagIterations,
					Value: 10,
					Usage: "number of plan and move rounds",
				},
				&cli.StringFlag{
					Name:  exploreFlagGoal,
					Usage: "stop early once an object of this category is found",
				},
				&cli.BoolFlag{
					Name:  exploreFlagRandom,
					Usage: "pick random frontier cells instead of the nearest",
				},
				&cli.BoolFlag{
					Name:  exploreFlagDryRun,
					Usage: "plan without moving the robot",
				},
				&cli.BoolFlag{
					Name:  exploreFlagGoHome,
					Usage: "return to the origin when done",
				},
				&cli.StringFlag{
					Name:  exploreFlagStore,
					Usage: "write snapshots to `PATH`, overriding the configured store",
				},
				&cli.StringFlag{
					Name:  exploreFlagStoreKind,
					Value: "file",
					Usage: "kind of store at --store: file or sqlite",
				},
			},
			Action: ExploreAction,
		},
		{
			Name:      "inspect",
			Usage:     "summarize a snapshot file, snapshot directory or sqlite database",
			ArgsUsage: "<path>",
			Flags:     snapshotFlags,
			Action:    InspectAction,
		},
		{
			Name:      "export",
			Usage:     "write the points of a snapshot as a PCD file",
			ArgsUsage: "<path>",
			Flags: append([]cli.Flag{
				&cli.PathFlag{
					Name:     exportFlagOutput,
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "PCD file to write",
				},
				&cli.BoolFlag{
					Name:  exportFlagBinary,
					Usage: "write binary rather than ascii PCD",
				},
			}, snapshotFlags...),
			Action: ExportAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
