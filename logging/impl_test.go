package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.viam.com/test"
)

func newBufferLogger(name string, level Level) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: true, appenders: []Appender{NewWriterAppender(buf)}}, buf
}

func readLine(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	line, err := buf.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	return strings.Split(strings.TrimSuffix(line, "\n"), "\t")
}

func TestConsoleOutput(t *testing.T) {
	logger, buf := newBufferLogger("voxel", INFO)

	logger.Debug("dropped")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Infof("added %d points", 12)
	parts := readLine(t, buf)
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "voxel")
	test.That(t, parts[3], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "added 12 points")

	logger.Warnw("frame dropped", "reason", "shape", "rows", 3)
	parts = readLine(t, buf)
	test.That(t, parts[1], test.ShouldEqual, "WARN")
	test.That(t, len(parts), test.ShouldEqual, 6)
	fields := map[string]any{}
	test.That(t, json.Unmarshal([]byte(parts[5]), &fields), test.ShouldBeNil)
	test.That(t, fields["reason"], test.ShouldEqual, "shape")
	test.That(t, fields["rows"], test.ShouldEqual, 3.0)

	logger.Infow("odd", "lonely")
	parts = readLine(t, buf)
	test.That(t, parts[5], test.ShouldContainSubstring, "unpaired log key")
}

func TestSubloggerAndLevel(t *testing.T) {
	logger, buf := newBufferLogger("agent", WARN)
	sub := logger.Sublogger("planner")
	test.That(t, sub.GetLevel(), test.ShouldEqual, WARN)

	sub.Info("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	sub.SetLevel(DEBUG)
	sub.Debug("shown")
	parts := readLine(t, buf)
	test.That(t, parts[2], test.ShouldEqual, "agent.planner")

	// the parent is unaffected
	logger.Info("still hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
}

func TestObservedAndZap(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Errorw("plan failed", "reason", "exhausted")
	logger.AsZap().Infow("from zap", "iter", 4)

	entries := observed.All()
	test.That(t, len(entries), test.ShouldEqual, 2)
	test.That(t, entries[0].Message, test.ShouldEqual, "plan failed")
	test.That(t, entries[0].ContextMap()["reason"], test.ShouldEqual, "exhausted")
	test.That(t, entries[1].ContextMap()["iter"], test.ShouldEqual, int64(4))
}

func TestLevelFromString(t *testing.T) {
	level, err := LevelFromString("WARNING")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	_, err = LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
}
