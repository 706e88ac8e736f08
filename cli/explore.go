package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/voxelnav/config"
	"go.viam.com/voxelnav/data"
	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/robots/fake"
	"go.viam.com/voxelnav/services/navigation"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func newLogger(c *cli.Context, cfg *config.Config) logging.Logger {
	level := logging.INFO
	if c.Bool(flagDebug) || (cfg != nil && cfg.Debug) {
		level = logging.DEBUG
	}
	return logging.NewWriterLogger("voxelnav", c.App.ErrWriter, level)
}

// loadConfig reads the --config file. Without one, the defaults are used with the simulated
// robot's default camera.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		cfg := config.Default()
		cfg.Robot.Camera.Intrinsics = fake.DefaultConfig().Intrinsics
		return cfg, cfg.Validate()
	}
	return config.Read(path, newLogger(c, nil))
}

func openStore(sc *config.StoreConfig) (data.Store, error) {
	if err := sc.Validate("store"); err != nil {
		return nil, err
	}
	if sc.Kind == config.StoreSQLite {
		st, err := data.NewSQLiteStore(sc.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := data.NewFileStore(sc.Path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ExploreAction is the corresponding Action for 'explore'.
func ExploreAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg)
	logging.ReplaceGlobal(logger)

	if path := c.String(exploreFlagStore); path != "" {
		cfg.Store = &config.StoreConfig{Kind: c.String(exploreFlagStoreKind), Path: path}
	}
	navCfg, err := cfg.NavigationConfig()
	if err != nil {
		return err
	}

	scene := fake.DefaultScene()
	robot, err := fake.NewRobot(scene, cfg.FakeRobotConfig(), logger.Sublogger("robot"))
	if err != nil {
		return err
	}
	segmenter, err := fake.NewSegmenter(scene)
	if err != nil {
		return err
	}
	params := navigation.Params{
		Robot:     robot,
		Segmenter: segmenter,
		Encoder:   segmenter,
		Logger:    logger,
	}
	if cfg.Store != nil {
		if params.Store, err = openStore(cfg.Store); err != nil {
			return err
		}
	}
	agent, err := navigation.NewAgent(navCfg, params)
	if err != nil {
		if params.Store != nil {
			err = multierr.Combine(err, params.Store.Close())
		}
		return err
	}
	defer func() {
		err = multierr.Combine(err, agent.Close(c.Context))
	}()

	goal := c.String(exploreFlagGoal)
	found, err := agent.Start(c.Context, goal)
	if err != nil {
		return errors.Wrap(err, "starting exploration")
	}
	if goal != "" && len(found) > 0 {
		printf(c.App.Writer, "found %q before exploring", goal)
		printMatches(c.App.Writer, found)
		return nil
	}

	result, err := agent.RunExploration(c.Context, navigation.ExploreOptions{
		ExploreIter: c.Int(exploreFlagIterations),
		TaskGoal:    goal,
		RandomGoals: c.Bool(exploreFlagRandom),
		DryRun:      c.Bool(exploreFlagDryRun),
		GoHome:      c.Bool(exploreFlagGoHome),
	})
	if err != nil {
		return err
	}

	obstacles, explored := agent.Map().Get2DMap()
	printf(c.App.Writer, "iterations: %d (plan failures: %d)", result.Iterations, result.PlanFailures)
	printf(c.App.Writer, "explored cells: %d, obstacle cells: %d", explored.Count(), obstacles.Count())
	if result.Complete {
		printf(c.App.Writer, "no frontier left")
	}
	if goal != "" {
		if result.Inconclusive {
			printf(c.App.Writer, "%q not found", goal)
		}
		printMatches(c.App.Writer, result.Matches)
		return nil
	}
	printMatches(c.App.Writer, agent.AllInstances())
	return nil
}

func printMatches(w io.Writer, matches []navigation.Match) {
	for _, m := range matches {
		c := m.Instance.Bounds.Center()
		printf(w, "\t%s (id: %d, score: %.2f, views: %d) at (%.2f, %.2f, %.2f)",
			m.Category, m.Instance.ID, m.Score, len(m.Instance.Views), c.X, c.Y, c.Z)
	}
}
