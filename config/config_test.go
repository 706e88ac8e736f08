package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/mapping/instance"
)

const testConfigJSON = `{
	"map": {"voxel_size": 0.1, "grid_size": 100},
	"planner": {"extra": {"max_iterations": "500", "step_size": 0.2}},
	"agent": {"plan_timeout": "2s", "aggregation": "max"},
	"robot": {
		"length": 0.3,
		"width": 0.2,
		"camera": {
			"intrinsics": {"width_px": 80, "height_px": 60, "fx": 40, "fy": 40, "ppx": 39.5, "ppy": 29.5},
			"height": 1.1,
			"tilt": 0.5
		},
		"start": {"x": 0.5, "y": -0.5, "theta": 0}
	},
	"store": {"kind": "file", "path": "${VOXELNAV_SNAPSHOTS}"}
}`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestRead(t *testing.T) {
	logger := logging.NewTestLogger(t)
	t.Setenv("VOXELNAV_SNAPSHOTS", "/tmp/snaps")

	path := writeConfig(t, testConfigJSON)
	cfg, err := Read(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Map.Resolution, test.ShouldEqual, 0.1)
	test.That(t, cfg.Map.MaxDepth, test.ShouldEqual, 4.)
	test.That(t, cfg.Store, test.ShouldResemble, &StoreConfig{Kind: StoreFile, Path: "/tmp/snaps"})
	test.That(t, cfg.Robot.Camera.Intrinsics.Width, test.ShouldEqual, 80)

	nav, err := cfg.NavigationConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nav.Planner.MaxIterations, test.ShouldEqual, 500)
	test.That(t, nav.Planner.StepSize, test.ShouldEqual, 0.2)
	test.That(t, nav.Planner.GoalBias, test.ShouldEqual, 0.1)
	test.That(t, nav.PlanTimeout, test.ShouldEqual, 2*time.Second)
	test.That(t, nav.PublishInterval, test.ShouldEqual, 5*time.Second)
	test.That(t, nav.Aggregation, test.ShouldEqual, instance.AggregationMax)
	test.That(t, nav.Robot.Length, test.ShouldEqual, 0.3)
	test.That(t, nav.StartRetries, test.ShouldEqual, 5)
	test.That(t, nav.MinFrontierDistance, test.ShouldEqual, 0.5)

	robotCfg := cfg.FakeRobotConfig()
	test.That(t, robotCfg.CameraHeight, test.ShouldEqual, 1.1)
	test.That(t, robotCfg.Start.X, test.ShouldEqual, 0.5)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, tc := range []struct {
		name    string
		from    string
		to      string
		errText string
	}{
		{"missing intrinsics", `"intrinsics": {"width_px": 80, "height_px": 60, "fx": 40, "fy": 40, "ppx": 39.5, "ppy": 29.5},`, "", "intrinsics"},
		{"bad intrinsics", `"fx": 40`, `"fx": 0`, "focal length"},
		{"unknown planner attribute", `"step_size": 0.2`, `"step_sise": 0.2`, "step_sise"},
		{"bad planner value", `"step_size": 0.2`, `"step_size": -1`, "step"},
		{"bad duration", `"2s"`, `"soon"`, "plan_timeout"},
		{"unknown store", `"kind": "file"`, `"kind": "s3"`, "s3"},
		{"missing store path", `"${VOXELNAV_SNAPSHOTS}"`, `""`, "path"},
		{"bad map", `"voxel_size": 0.1`, `"voxel_size": 0`, "map"},
		{"zero footprint", `"length": 0.3`, `"length": 0`, "length"},
		{"unknown field", `"map":`, `"mapp":`, "mapp"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			contents := strings.Replace(testConfigJSON, tc.from, tc.to, 1)
			test.That(t, contents, test.ShouldNotEqual, testConfigJSON)
			_, err := FromReader("test", strings.NewReader(contents), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errText)
		})
	}
}

func TestNavigationConfigChecksRanges(t *testing.T) {
	cfg := Default()
	cfg.Agent.BackupDistance = -1
	_, err := cfg.NavigationConfig()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "backup distance")

	cfg = Default()
	cfg.Agent.MinFrontierDistance = -0.1
	_, err = cfg.NavigationConfig()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min frontier distance")

	// defaults alone lack intrinsics
	err = Default().Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "intrinsics")
}

func TestReadExampleConfig(t *testing.T) {
	t.Setenv("HOME", "/home/robot")
	cfg, err := Read(filepath.Join("..", "etc", "configs", "room.json"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Store.Path, test.ShouldEqual, "/home/robot/.voxelnav/snapshots")
	_, err = cfg.NavigationConfig()
	test.That(t, err, test.ShouldBeNil)
}
