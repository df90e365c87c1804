package lib_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/server/fake"
	"github.com/slok/opstrack/pkg/lib"
)

// newTestClient creates a client against an in-process fake admin server.
func newTestClient(t *testing.T, cfg fake.ServerConfig, pollInterval time.Duration) (*lib.Client, *fake.Server) {
	t.Helper()

	srv, err := fake.NewServer(cfg)
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	client, err := lib.New(context.Background(), lib.Config{
		ServerURL:       hs.URL,
		InMemoryHistory: true,
		PollInterval:    pollInterval,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, srv
}

func endpoint(op model.OperationType) string {
	return conventions.DefaultEndpoint(op)
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    lib.Config
		expErr bool
	}{
		"A missing server URL should fail.": {
			cfg:    lib.Config{InMemoryHistory: true},
			expErr: true,
		},
		"An invalid server URL scheme should fail.": {
			cfg:    lib.Config{ServerURL: "ftp://admin", InMemoryHistory: true},
			expErr: true,
		},
		"A missing operations file should fail.": {
			cfg:    lib.Config{ServerURL: "http://127.0.0.1:8080", InMemoryHistory: true, OperationsFile: "/does/not/exist.yaml"},
			expErr: true,
		},
		"A SQLite history should work.": {
			cfg: lib.Config{ServerURL: "http://127.0.0.1:8080", DBPath: filepath.Join(t.TempDir(), "history.db")},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, err := lib.New(context.Background(), test.cfg)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func TestRunOperation(t *testing.T) {
	tests := map[string]struct {
		script   fake.Script
		op       lib.OperationType
		opts     lib.RunOpts
		expState lib.TaskState
		expMsg   string
		expErrIs error
	}{
		"A successful backup should return the succeeded task.": {
			script: fake.Script{
				Steps:  []fake.Step{{Summary: "Dumping", Message: "dump"}, {Summary: "Done", Message: "uploaded"}},
				Result: "Backup created",
			},
			op:       lib.OperationBackup,
			expState: lib.TaskStateSucceeded,
			expMsg:   "Backup created",
		},
		"A failed restore should return the failed task.": {
			script: fake.Script{
				Steps:  []fake.Step{{Level: "error", Message: "checksum mismatch"}},
				Fail:   true,
				Result: "Restore failed",
			},
			op:       lib.OperationRestore,
			opts:     lib.RunOpts{Backups: []string{"b1"}},
			expState: lib.TaskStateFailed,
			expMsg:   "Restore failed",
			expErrIs: lib.ErrTaskFailed,
		},
		"An expired verification should return the expired task.": {
			script: fake.Script{
				Steps:       []fake.Step{{Message: "step1"}, {Message: "step2"}},
				ExpireAfter: 1,
			},
			op:       lib.OperationVerify,
			opts:     lib.RunOpts{Backups: []string{"b1"}},
			expState: lib.TaskStateExpired,
			expErrIs: lib.ErrTaskFailed,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client, _ := newTestClient(t, fake.ServerConfig{DefaultScript: test.script}, 10*time.Millisecond)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			task, err := client.Run(ctx, test.op, test.opts)

			if test.expErrIs != nil {
				assert.ErrorIs(err, test.expErrIs)
			} else {
				assert.NoError(err)
			}
			require.NotNil(task)
			assert.Equal(test.op, task.Operation)
			assert.Equal(test.expState, task.State)
			if test.expMsg != "" {
				assert.Equal(test.expMsg, task.ResultMessage)
			}

			records, err := client.ListHistory(ctx, lib.ListHistoryOpts{})
			require.NoError(err)
			require.Len(records, 1)
			assert.Equal(task.ID, records[0].TaskID)
			assert.Equal(test.expState, records[0].State)
		})
	}
}

func TestRunOperationErrors(t *testing.T) {
	tests := map[string]struct {
		cfg      fake.ServerConfig
		op       lib.OperationType
		opts     lib.RunOpts
		expErrIs error
	}{
		"A rejected launch should fail with launch failed.": {
			cfg:      fake.ServerConfig{Scripts: map[string]fake.Script{endpoint(model.OperationDelete): {Reject: "backup is locked"}}},
			op:       lib.OperationDelete,
			opts:     lib.RunOpts{Backups: []string{"b1"}},
			expErrIs: lib.ErrLaunchFailed,
		},
		"A restore without backup should fail as not valid.": {
			op:       lib.OperationRestore,
			expErrIs: lib.ErrNotValid,
		},
		"A backup with targets should fail as not valid.": {
			op:       lib.OperationBackup,
			opts:     lib.RunOpts{Backups: []string{"b1"}},
			expErrIs: lib.ErrNotValid,
		},
		"An unknown operation should fail as not valid.": {
			op:       lib.OperationType("compact"),
			expErrIs: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, test.cfg, 10*time.Millisecond)

			task, err := client.Run(context.Background(), test.op, test.opts)

			assert.ErrorIs(t, err, test.expErrIs)
			assert.Nil(t, task)
		})
	}
}

func TestStartOperationAlreadyInProgress(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, srv := newTestClient(t, fake.ServerConfig{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, err := client.Start(ctx, lib.OperationBackup, lib.RunOpts{})
	require.NoError(err)
	assert.Equal([]string{op.TaskID}, client.ActiveTasks())

	_, err = client.Start(ctx, lib.OperationBackup, lib.RunOpts{})
	assert.ErrorIs(err, lib.ErrOperationInProgress)
	assert.Len(srv.Launches(), 1)

	// Cancelling the tracking context ends the tracking.
	cancel()
	select {
	case <-op.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("operation tracking didn't end")
	}
	assert.Empty(client.ActiveTasks())
}

func TestOnComplete(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, _ := newTestClient(t, fake.ServerConfig{}, 10*time.Millisecond)

	var (
		mu  sync.Mutex
		got []lib.Task
	)
	err := client.OnComplete(lib.OperationBackup, func(_ context.Context, t lib.Task) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, t)
	})
	require.NoError(err)
	assert.ErrorIs(client.OnComplete(lib.OperationType("compact"), func(context.Context, lib.Task) {}), lib.ErrNotValid)

	task, err := client.Backup(context.Background(), lib.RunOpts{})
	require.NoError(err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(got, 1)
	assert.Equal(task.ID, got[0].ID)
}

func TestTaskStatus(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, _ := newTestClient(t, fake.ServerConfig{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := client.TaskStatus(ctx, "01UNKNOWN")
	assert.ErrorIs(err, lib.ErrNotFound)

	_, err = client.TaskStatus(ctx, " ")
	assert.ErrorIs(err, lib.ErrNotValid)

	op, err := client.Start(ctx, lib.OperationBackup, lib.RunOpts{})
	require.NoError(err)
	st, err := client.TaskStatus(ctx, op.TaskID)
	require.NoError(err)
	assert.False(st.IsDone)
	require.Len(st.LogEntries, 1)
	assert.Equal("Started", st.LogEntries[0].Message)
}

func TestListBackups(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	client, _ := newTestClient(t, fake.ServerConfig{
		Backups: []fake.Backup{
			{Name: "nightly-01", SizeBytes: 10, CreatedAt: now.Add(-2 * time.Hour)},
			{Name: "manual-01", SizeBytes: 20, CreatedAt: now.Add(-time.Hour)},
			{Name: "nightly-02", SizeBytes: 30, CreatedAt: now},
		},
	}, time.Hour)

	backups, err := client.ListBackups(context.Background(), "nightly")

	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "nightly-02", backups[0].Name)
	assert.Equal(t, "nightly-01", backups[1].Name)
}

func TestPing(t *testing.T) {
	client, srv := newTestClient(t, fake.ServerConfig{}, time.Hour)

	assert.NoError(t, client.Ping(context.Background()))

	srv.SetPingDown(true)
	assert.Error(t, client.Ping(context.Background()))
}
