package lossreporter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tracemux/pkg/log"
	"github.com/bft-labs/tracemux/pkg/tracemux"
)

type fakeController struct {
	mu    sync.Mutex
	stats []tracemux.ChannelStats
}

func (c *fakeController) Policy() tracemux.FlushPolicy           { return tracemux.FlushPolicy{} }
func (c *fakeController) Reconfigure(tracemux.FlushPolicy) error { return nil }

func (c *fakeController) Stats() []tracemux.ChannelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tracemux.ChannelStats(nil), c.stats...)
}

func (c *fakeController) set(stats ...tracemux.ChannelStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
}

type entry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

// recordingLogger keeps every entry for inspection.
type recordingLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (l *recordingLogger) add(level, msg string, fields []log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.entries = append(l.entries, entry{level: level, msg: msg, fields: m})
}

func (l *recordingLogger) Debug(msg string, fields ...log.Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...log.Field)  { l.add("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...log.Field)  { l.add("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...log.Field) { l.add("error", msg, fields) }
func (l *recordingLogger) With(...log.Field) log.Logger          { return l }

func (l *recordingLogger) warnings() []entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []entry
	for _, e := range l.entries {
		if e.level == "warn" {
			out = append(out, e)
		}
	}
	return out
}

func TestPlugin_ReportsNewLossOnly(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.set(
		tracemux.ChannelStats{Name: "isr", LostFrames: 3, LostBytes: 30},
		tracemux.ChannelStats{Name: "user-alt"},
	)
	logger := &recordingLogger{}

	p := New(Config{CheckInterval: time.Hour})
	require.NoError(t, p.Initialize(context.Background(), tracemux.PluginConfig{
		Logger:     logger,
		Controller: ctrl,
	}))
	defer func() { _ = p.Shutdown(context.Background()) }()

	// The baseline sample never reports.
	require.Empty(t, logger.warnings())
	require.Zero(t, p.Check())

	ctrl.set(
		tracemux.ChannelStats{Name: "isr", LostFrames: 5, LostBytes: 50, PendingLostFrames: 2},
		tracemux.ChannelStats{Name: "user-alt", SubmitFailures: 1},
	)
	require.Equal(t, 2, p.Check())

	w := logger.warnings()
	require.Len(t, w, 2)
	require.Equal(t, "isr", w[0].fields["channel"])
	require.Equal(t, uint64(2), w[0].fields["frames"])
	require.Equal(t, uint64(20), w[0].fields["bytes"])
	require.Equal(t, uint64(2), w[0].fields["unreported_frames"])
	require.Equal(t, "user-alt", w[1].fields["channel"])
	require.Equal(t, uint64(1), w[1].fields["submit_failures"])

	require.Zero(t, p.Check())
}

func TestPlugin_PeriodicCheck(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.set(tracemux.ChannelStats{Name: "hci"})
	logger := &recordingLogger{}

	p := New(Config{CheckInterval: 10 * time.Millisecond})
	require.NoError(t, p.Initialize(context.Background(), tracemux.PluginConfig{
		Logger:     logger,
		Controller: ctrl,
	}))
	defer func() { _ = p.Shutdown(context.Background()) }()

	ctrl.set(tracemux.ChannelStats{Name: "hci", LostFrames: 1, LostBytes: 4})
	require.Eventually(t, func() bool {
		return len(logger.warnings()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlugin_SummaryAtDebug(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.set(tracemux.ChannelStats{Name: "task", Submitted: 7})
	logger := &recordingLogger{}

	p := New(Config{CheckInterval: time.Hour, Summary: true})
	require.NoError(t, p.Initialize(context.Background(), tracemux.PluginConfig{
		Logger:     logger,
		Controller: ctrl,
	}))
	require.NoError(t, p.Shutdown(context.Background()))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Len(t, logger.entries, 2)
	require.Equal(t, "debug", logger.entries[0].level)
	require.Equal(t, uint64(7), logger.entries[0].fields["submitted"])
}

func TestPlugin_DisabledWithoutController(t *testing.T) {
	p := New(Config{})
	require.NoError(t, p.Initialize(context.Background(), tracemux.PluginConfig{}))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPlugin_Name(t *testing.T) {
	require.Equal(t, "lossreporter", New(Config{}).Name())
}
