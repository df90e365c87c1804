package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/slok/opstrack/internal/lock"
	"github.com/slok/opstrack/internal/logagg"
	"github.com/slok/opstrack/internal/printer"
	"github.com/slok/opstrack/internal/task"
	"github.com/slok/opstrack/internal/task/taskmock"
)

const (
	backupLog    = "backup-log"
	backupStatus = "backup-status"
	restoreLog   = "restore-log"
	restoreState = "restore-status"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// testRuntime wires the real task components with a fake clock and a mocked API.
type testRuntime struct {
	clock    *testclock.FakeClock
	api      *taskmock.API
	reporter *printer.MemoryReporter
	lock     *lock.InteractionLock
	button   *lock.Gate
	manager  *task.Manager
	poller   *task.StatusPoller
	launcher *task.Launcher
}

func newTestRuntime(t *testing.T, history task.HistoryRecorder) *testRuntime {
	t.Helper()

	rt := &testRuntime{
		clock:    testclock.NewFakeClock(t0),
		api:      &taskmock.API{},
		reporter: printer.NewMemoryReporter(),
		button:   lock.NewGate("start-backup", lock.ControlKindButton),
		manager:  task.NewManager(),
	}

	var err error
	rt.lock, err = lock.NewInteractionLock(lock.InteractionLockConfig{
		Controls: []lock.Control{rt.button},
		Clock:    rt.clock,
	})
	require.NoError(t, err)

	logs, err := logagg.NewAggregator(logagg.AggregatorConfig{Reporter: rt.reporter, Clock: rt.clock})
	require.NoError(t, err)

	rt.poller, err = task.NewStatusPoller(task.StatusPollerConfig{
		Manager:  rt.manager,
		API:      rt.api,
		Logs:     logs,
		Reporter: rt.reporter,
		Lock:     rt.lock,
		History:  history,
		Clock:    rt.clock,
	})
	require.NoError(t, err)

	rt.launcher, err = task.NewLauncher(task.LauncherConfig{
		Manager:  rt.manager,
		Poller:   rt.poller,
		API:      rt.api,
		Logs:     logs,
		Reporter: rt.reporter,
		Lock:     rt.lock,
	})
	require.NoError(t, err)

	return rt
}

func (rt *testRuntime) tick() { rt.clock.Step(task.DefaultPollInterval) }

func (rt *testRuntime) statusOf(surface string) printer.StatusLine {
	s, _ := rt.reporter.Status(surface)
	return s
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func waitDone(t *testing.T, h *task.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s was not terminated", h.TaskID)
	}
}

func boolPtr(b bool) *bool { return &b }
