package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/printer"
	"github.com/slok/opstrack/internal/task"
	"github.com/slok/opstrack/internal/task/taskmock"
)

func backupRequest() task.LaunchRequest {
	return task.LaunchRequest{
		Endpoint:      "/api/backup/create",
		Payload:       map[string]any{"compress": true},
		Operation:     model.OperationBackup,
		LogSurface:    backupLog,
		StatusSurface: backupStatus,
	}
}

func TestLaunchBackupFollowedToSuccess(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	history := &taskmock.HistoryRecorder{}
	history.On("CreateHistoryRecord", mock.Anything, mock.MatchedBy(func(r model.HistoryRecord) bool {
		return r.TaskID == "T1" && r.State == model.TaskStateSucceeded && r.Message == "All good" && r.LogLines == 2 && r.ID != ""
	})).Once().Return(nil)

	rt := newTestRuntime(t, history)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completed := make(chan model.Task, 1)
	rt.manager.OnComplete(model.OperationBackup, func(_ context.Context, tk model.Task) { completed <- tk })

	rt.api.On("Launch", mock.Anything, "/api/backup/create", map[string]any{"compress": true}).Once().Return(&model.LaunchResult{Success: true, TaskID: "T1"}, nil)
	rt.api.On("TaskStatus", mock.Anything, "T1").Once().Return(&model.TaskStatus{
		IsDone:     false,
		LogEntries: []model.LogEntry{{Message: "step1", Level: model.LogLevelInfo, Timestamp: "t1"}},
	}, nil)
	rt.api.On("TaskStatus", mock.Anything, "T1").Once().Return(&model.TaskStatus{
		IsDone:  true,
		Success: boolPtr(true),
		LogEntries: []model.LogEntry{
			{Message: "step1", Level: model.LogLevelInfo, Timestamp: "t1"},
			{Message: "done", Level: model.LogLevelSuccess, Timestamp: "t2"},
		},
		ResultMessage: "All good",
	}, nil)

	h, err := rt.launcher.Launch(ctx, backupRequest())
	require.NoError(err)
	assert.Equal("T1", h.TaskID)
	assert.True(rt.lock.IsLocked())
	assert.False(rt.button.Enabled())
	assert.True(rt.manager.IsActive("T1"))
	assert.Equal(1, rt.reporter.Clears(backupLog))
	assert.Equal([]string{"[10:00:00] Initiating backup..."}, rt.reporter.Lines(backupLog))
	assert.Equal(printer.StatusLine{Message: "Initiating backup...", Severity: model.SeverityInfo}, rt.statusOf(backupStatus))
	id, ok := rt.manager.Slot(model.OperationBackup)
	assert.True(ok)
	assert.Equal("T1", id)

	// Poll 1.
	rt.tick()
	eventually(t, func() bool { return rt.manager.CursorFor("T1") == 1 }, "cursor should advance to 1")
	assert.Equal([]string{"[10:00:00] Initiating backup...", "[t1] step1"}, rt.reporter.Lines(backupLog))

	// Poll 2.
	rt.tick()
	waitDone(t, h)

	tk, err := h.Wait(ctx)
	require.NoError(err)
	assert.Equal(model.TaskStateSucceeded, tk.State)
	assert.True(tk.Succeeded())
	assert.Equal("All good", tk.ResultMessage)
	assert.Equal([]string{"[10:00:00] Initiating backup...", "[t1] step1", "[t2] done"}, rt.reporter.Lines(backupLog))
	assert.Equal(printer.StatusLine{Message: "All good", Severity: model.SeveritySuccess}, rt.statusOf(backupStatus))
	assert.False(rt.manager.IsActive("T1"))
	assert.False(rt.lock.IsLocked())
	assert.True(rt.button.Enabled())
	_, ok = rt.manager.Slot(model.OperationBackup)
	assert.False(ok)
	eventually(t, func() bool { return !rt.clock.HasWaiters() }, "poll ticker should be stopped")

	select {
	case got := <-completed:
		assert.Equal("T1", got.ID)
	default:
		t.Fatal("completion callback was not called")
	}
	history.AssertExpectations(t)
}

func TestLaunchRejectedByServer(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	rt := newTestRuntime(t, nil)
	rt.api.On("Launch", mock.Anything, "/api/backup/create", mock.Anything).Once().Return(&model.LaunchResult{Success: false, Message: "validation failed"}, nil)

	h, err := rt.launcher.Launch(context.Background(), backupRequest())
	require.Error(err)
	assert.True(errors.Is(err, model.ErrLaunchFailed))
	assert.Nil(h)

	assert.False(rt.clock.HasWaiters(), "no timer should remain")
	assert.Empty(rt.manager.ActiveTasks())
	assert.False(rt.lock.IsLocked())
	assert.True(rt.button.Enabled())
	assert.False(rt.manager.SlotBusy(model.OperationBackup))
	assert.Equal(printer.StatusLine{Message: "validation failed", Severity: model.SeverityError}, rt.statusOf(backupStatus))
	rt.api.AssertNotCalled(t, "TaskStatus", mock.Anything, mock.Anything)
}

func TestLaunchFailures(t *testing.T) {
	tests := map[string]struct {
		result    *model.LaunchResult
		err       error
		expStatus string
	}{
		"A transport error should fail the launch.": {
			err:       errors.New("connection refused"),
			expStatus: "Could not start backup: connection refused",
		},
		"A successful response without task ID should fail the launch.": {
			result:    &model.LaunchResult{Success: true},
			expStatus: "Could not start backup: server did not return a task ID",
		},
		"An unsuccessful response without message should fail the launch.": {
			result:    &model.LaunchResult{Success: false},
			expStatus: "Could not start backup",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			rt := newTestRuntime(t, nil)
			rt.api.On("Launch", mock.Anything, mock.Anything, mock.Anything).Once().Return(test.result, test.err)

			_, err := rt.launcher.Launch(context.Background(), backupRequest())
			assert.True(errors.Is(err, model.ErrLaunchFailed))
			if test.err != nil {
				assert.True(errors.Is(err, test.err))
			}

			assert.False(rt.lock.IsLocked())
			assert.False(rt.manager.SlotBusy(model.OperationBackup))
			assert.Equal(printer.StatusLine{Message: test.expStatus, Severity: model.SeverityError}, rt.statusOf(backupStatus))
			lines := rt.reporter.Lines(backupLog)
			assert.Len(lines, 2)
			assert.Equal("[10:00:00] "+test.expStatus, lines[1])
		})
	}
}

func TestLaunchInvalidRequest(t *testing.T) {
	tests := map[string]struct {
		req task.LaunchRequest
	}{
		"Missing endpoint should fail.": {
			req: task.LaunchRequest{Operation: model.OperationBackup, LogSurface: "l", StatusSurface: "s"},
		},
		"Unknown operation should fail.": {
			req: task.LaunchRequest{Endpoint: "/x", Operation: "nope", LogSurface: "l", StatusSurface: "s"},
		},
		"Missing surfaces should fail.": {
			req: task.LaunchRequest{Endpoint: "/x", Operation: model.OperationBackup},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			rt := newTestRuntime(t, nil)

			_, err := rt.launcher.Launch(context.Background(), test.req)
			assert.True(t, errors.Is(err, model.ErrNotValid))
			assert.False(t, rt.lock.IsLocked())
			rt.api.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLaunchWhileOperationInProgress(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	rt := newTestRuntime(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt.api.On("Launch", mock.Anything, "/api/backup/create", mock.Anything).Once().Return(&model.LaunchResult{Success: true, TaskID: "T1"}, nil)

	_, err := rt.launcher.Launch(ctx, backupRequest())
	require.NoError(err)

	_, err = rt.launcher.Launch(ctx, backupRequest())
	assert.True(errors.Is(err, model.ErrOperationInProgress))
	assert.Equal(printer.StatusLine{Message: "Backup operation already in progress", Severity: model.SeverityWarning}, rt.statusOf(backupStatus))
	assert.Equal(1, rt.reporter.Clears(backupLog), "the running task log should not be cleared")
	rt.api.AssertNumberOfCalls(t, "Launch", 1)

	id, _ := rt.manager.Slot(model.OperationBackup)
	assert.Equal("T1", id)
}

func TestLaunchAgainAfterTermination(t *testing.T) {
	require := require.New(t)

	rt := newTestRuntime(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt.api.On("Launch", mock.Anything, mock.Anything, mock.Anything).Once().Return(&model.LaunchResult{Success: true, TaskID: "T1"}, nil)
	rt.api.On("Launch", mock.Anything, mock.Anything, mock.Anything).Once().Return(&model.LaunchResult{Success: true, TaskID: "T2"}, nil)
	rt.api.On("TaskStatus", mock.Anything, "T1").Once().Return(&model.TaskStatus{IsDone: true, Success: boolPtr(true)}, nil)

	h, err := rt.launcher.Launch(ctx, backupRequest())
	require.NoError(err)
	rt.tick()
	waitDone(t, h)
	assert.Equal(t, printer.StatusLine{Message: "Backup completed", Severity: model.SeveritySuccess}, rt.statusOf(backupStatus))

	h, err = rt.launcher.Launch(ctx, backupRequest())
	require.NoError(err)
	assert.Equal(t, "T2", h.TaskID)
	assert.Equal(t, 2, rt.reporter.Clears(backupLog))
	assert.True(t, rt.lock.IsLocked())
}

func TestLaunchReturningAlreadyTrackedTask(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	rt := newTestRuntime(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt.api.On("Launch", mock.Anything, "/api/backup/create", mock.Anything).Once().Return(&model.LaunchResult{Success: true, TaskID: "T1"}, nil)
	rt.api.On("Launch", mock.Anything, "/api/backup/restore", mock.Anything).Once().Return(&model.LaunchResult{Success: true, TaskID: "T1"}, nil)
	entries := []model.LogEntry{
		{Message: "a", Level: model.LogLevelInfo, Timestamp: "t1"},
		{Message: "b", Level: model.LogLevelInfo, Timestamp: "t2"},
	}
	rt.api.On("TaskStatus", mock.Anything, "T1").Once().Return(&model.TaskStatus{LogEntries: entries}, nil)
	rt.api.On("TaskStatus", mock.Anything, "T1").Once().Return(&model.TaskStatus{
		LogEntries: append(append([]model.LogEntry{}, entries...), model.LogEntry{Message: "c", Level: model.LogLevelInfo, Timestamp: "t3"}),
	}, nil)

	_, err := rt.launcher.Launch(ctx, backupRequest())
	require.NoError(err)
	rt.tick()
	eventually(t, func() bool { return rt.manager.CursorFor("T1") == 2 }, "cursor should advance to 2")

	// The server answers the restore with the task id of the running backup.
	h, err := rt.launcher.Launch(ctx, task.LaunchRequest{
		Endpoint:      "/api/backup/restore",
		Payload:       map[string]any{"backup": "b1"},
		Operation:     model.OperationRestore,
		LogSurface:    restoreLog,
		StatusSurface: restoreState,
	})
	assert.ErrorIs(err, model.ErrLaunchFailed)
	assert.Nil(h)
	assert.Equal(model.SeverityError, rt.statusOf(restoreState).Severity)
	assert.False(rt.manager.SlotBusy(model.OperationRestore))
	id, _ := rt.manager.Slot(model.OperationBackup)
	assert.Equal("T1", id)
	assert.Equal(2, rt.manager.CursorFor("T1"))

	// The backup keeps merging from its own cursor.
	rt.tick()
	eventually(t, func() bool { return rt.manager.CursorFor("T1") == 3 }, "cursor should advance to 3")
	assert.Equal([]string{"[10:00:00] Initiating backup...", "[t1] a", "[t2] b", "[t3] c"}, rt.reporter.Lines(backupLog))
}

func TestLaunchThenDetach(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	history := &taskmock.HistoryRecorder{}
	rt := newTestRuntime(t, history)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt.api.On("Launch", mock.Anything, "/api/backup/create", mock.Anything).Once().Return(&model.LaunchResult{Success: true, TaskID: "T1"}, nil)

	h, err := rt.launcher.Launch(ctx, backupRequest())
	require.NoError(err)

	assert.True(rt.launcher.Detach(h))
	assert.False(rt.launcher.Detach(h), "detaching twice should be a no-op")

	assert.False(rt.manager.IsActive("T1"))
	assert.False(rt.manager.SlotBusy(model.OperationBackup))
	assert.False(rt.lock.IsLocked())
	assert.True(rt.button.Enabled())
	eventually(t, func() bool { return !rt.clock.HasWaiters() }, "poll ticker should be stopped")

	// Ending the launch context doesn't report the detached task.
	cancel()
	rt.tick()
	assert.Equal(printer.StatusLine{Message: "Initiating backup...", Severity: model.SeverityInfo}, rt.statusOf(backupStatus))
	assert.Equal([]string{"[10:00:00] Initiating backup..."}, rt.reporter.Lines(backupLog))
	rt.api.AssertNotCalled(t, "TaskStatus", mock.Anything, mock.Anything)
	history.AssertNotCalled(t, "CreateHistoryRecord", mock.Anything, mock.Anything)
	select {
	case <-h.Done():
		t.Fatal("a detached task should not be terminated")
	default:
	}
}
