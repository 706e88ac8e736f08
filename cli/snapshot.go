package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/voxelnav/data"
	"go.viam.com/voxelnav/pointcloud"
)

const sqliteExt = ".db"

// readSnapshot reads the snapshot named by the first argument. A directory yields its latest
// snapshot file and a .db file is opened as a sqlite store.
func readSnapshot(c *cli.Context) (*data.Snapshot, error) {
	if c.NArg() != 1 {
		return nil, errors.New("expected exactly one snapshot path")
	}
	path := c.Args().First()
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	switch {
	case info.IsDir():
		fs, err := data.NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return fs.Latest(c.Context)
	case filepath.Ext(path) == sqliteExt:
		return readSQLite(c.Context, path, c.String(snapshotFlagSession), c.Uint64(snapshotFlagSequence))
	default:
		return data.ReadSnapshotFile(path)
	}
}

func readSQLite(ctx context.Context, path, session string, sequence uint64) (snap *data.Snapshot, err error) {
	st, err := data.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, st.Close())
	}()
	if session == "" {
		return st.Latest(ctx)
	}
	return st.Get(ctx, session, sequence)
}

// InspectAction is the corresponding Action for 'inspect'.
func InspectAction(c *cli.Context) error {
	snap, err := readSnapshot(c)
	if err != nil {
		return err
	}
	obstacles, err := snap.ObstacleMask()
	if err != nil {
		return err
	}
	explored, err := snap.ExploredMask()
	if err != nil {
		return err
	}

	w := c.App.Writer
	printf(w, "session %s, sequence %d (%s)", snap.SessionID, snap.Sequence, snap.Label)
	printf(w, "taken at %s", snap.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	printf(w, "map version %d: %dx%d cells of %gm", snap.MapVersion, snap.MapSize, snap.MapSize, snap.Resolution)
	printf(w, "explored cells: %d, obstacle cells: %d", explored.Count(), obstacles.Count())
	if snap.Limited {
		printf(w, "limited snapshot, no frame")
	} else {
		printf(w, "frame: %dx%d, points: %d", snap.Width, snap.Height, len(snap.Points))
	}
	printf(w, "instances: %d", len(snap.Instances))
	for _, inst := range snap.Instances {
		printf(w, "\tid: %d, category: %d, score: %.2f, views: %d, min: %.2f, max: %.2f",
			inst.ID, inst.CategoryID, inst.Score, inst.NumViews, inst.Min, inst.Max)
	}
	return nil
}

// ExportAction is the corresponding Action for 'export'.
func ExportAction(c *cli.Context) (err error) {
	snap, err := readSnapshot(c)
	if err != nil {
		return err
	}
	cloud := snap.PointCloud()
	if len(cloud) == 0 {
		return errors.Errorf("snapshot %s/%d holds no points", snap.SessionID, snap.Sequence)
	}

	outputType := pointcloud.PCDAscii
	if c.Bool(exportFlagBinary) {
		outputType = pointcloud.PCDBinary
	}
	dst := c.Path(exportFlagOutput)
	//nolint:gosec
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if err := pointcloud.ToPCD(cloud, f, outputType); err != nil {
		return errors.Wrapf(err, "writing %q", dst)
	}
	printf(c.App.Writer, "wrote %d points to %s", len(cloud), dst)
	return nil
}
