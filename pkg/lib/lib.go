package lib

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/opstrack/internal/api"
	"github.com/slok/opstrack/internal/app/backups"
	"github.com/slok/opstrack/internal/app/history"
	"github.com/slok/opstrack/internal/app/operation"
	"github.com/slok/opstrack/internal/app/status"
	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/heartbeat"
	"github.com/slok/opstrack/internal/lock"
	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/logagg"
	"github.com/slok/opstrack/internal/printer"
	"github.com/slok/opstrack/internal/storage"
	storageio "github.com/slok/opstrack/internal/storage/io"
	"github.com/slok/opstrack/internal/storage/memory"
	"github.com/slok/opstrack/internal/storage/sqlite"
	"github.com/slok/opstrack/internal/task"
)

// Config configures the SDK client.
//
// Only ServerURL is required.
type Config struct {
	// ServerURL is the admin server base URL (e.g. "http://127.0.0.1:8080").
	ServerURL string

	// Token is sent as bearer token when set.
	Token string

	// DBPath is the SQLite history database path.
	// Default: ~/.opstrack/history.db.
	DBPath string

	// InMemoryHistory keeps the history only for the life of the client,
	// no database is created.
	InMemoryHistory bool

	// OperationsFile is an optional operations YAML file with custom endpoints
	// and default parameters.
	OperationsFile string

	// PollInterval is the time between status requests.
	// Default: 3s.
	PollInterval time.Duration

	// Progress receives the operation progress as JSON lines.
	// Default: discarded.
	Progress io.Writer

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}

	if c.DBPath == "" && !c.InMemoryHistory {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = conventions.HistoryDBPath(filepath.Join(home, conventions.DefaultDataDir))
	}

	if c.PollInterval == 0 {
		c.PollInterval = task.DefaultPollInterval
	}

	if c.Progress == nil {
		c.Progress = io.Discard
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	client    *api.Client
	manager   *task.Manager
	operation *operation.Service
	status    *status.Service
	backups   *backups.Service
	history   *history.Service
	heartbeat *heartbeat.Heartbeat
	closeFn   func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to release the history database.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := cfg.Logger

	client, err := api.NewClient(api.ClientConfig{BaseURL: cfg.ServerURL, Token: cfg.Token, Logger: logger})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create api client: %w", err))
	}

	ops := storageio.DefaultOperations()
	if cfg.OperationsFile != "" {
		path, err := filepath.Abs(cfg.OperationsFile)
		if err != nil {
			return nil, fmt.Errorf("could not resolve operations file path: %w", err)
		}
		ops, err = storageio.NewOperationsYAMLRepository(os.DirFS("/")).GetOperations(ctx, path[1:])
		if err != nil {
			return nil, mapError(fmt.Errorf("could not load operations: %w", err))
		}
	}

	var repo storage.HistoryRepository
	closeFn := func() error { return nil }
	if cfg.InMemoryHistory {
		repo, err = memory.NewRepository(memory.RepositoryConfig{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create history repository: %w", err)
		}
	} else {
		sqliteRepo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: cfg.DBPath, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create history repository: %w", err)
		}
		repo = sqliteRepo
		closeFn = sqliteRepo.Close
	}

	reporter := printer.NewJSONReporter(cfg.Progress)
	logs, err := logagg.NewAggregator(logagg.AggregatorConfig{Reporter: reporter, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create log aggregator: %w", err)
	}

	// There are no interactive controls, the lock only tracks the in flight state.
	lk, err := lock.NewInteractionLock(lock.InteractionLockConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create interaction lock: %w", err)
	}

	manager := task.NewManager()
	poller, err := task.NewStatusPoller(task.StatusPollerConfig{
		Manager:  manager,
		API:      client,
		Logs:     logs,
		Reporter: reporter,
		Lock:     lk,
		History:  repo,
		Interval: cfg.PollInterval,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create status poller: %w", err)
	}

	launcher, err := task.NewLauncher(task.LauncherConfig{
		Manager:  manager,
		Poller:   poller,
		API:      client,
		Logs:     logs,
		Reporter: reporter,
		Lock:     lk,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create launcher: %w", err)
	}

	c := &Client{client: client, manager: manager, closeFn: closeFn}

	c.operation, err = operation.NewService(operation.ServiceConfig{Launcher: launcher, Operations: ops, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create operation service: %w", err)
	}
	c.status, err = status.NewService(status.ServiceConfig{API: client, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create status service: %w", err)
	}
	c.backups, err = backups.NewService(backups.ServiceConfig{API: client, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create backups service: %w", err)
	}
	c.history, err = history.NewService(history.ServiceConfig{Repository: repo, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create history service: %w", err)
	}
	c.heartbeat, err = heartbeat.NewHeartbeat(heartbeat.HeartbeatConfig{Pinger: client, Logs: logs, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create heartbeat: %w", err)
	}

	return c, nil
}

// Close releases resources held by the client. Operations still being tracked are
// not stopped, cancel the context used to start them instead.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// Ping checks the admin server is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.heartbeat.Beat(ctx)
}

// KeepAlive pings the server periodically until the context is cancelled.
func (c *Client) KeepAlive(ctx context.Context) error {
	return c.heartbeat.Run(ctx)
}

// TaskStatus fetches the current status of a task once, without tracking it.
//
// Returns [ErrNotFound] when the server doesn't know the task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	st, err := c.status.Run(ctx, status.Request{TaskID: taskID})
	if err != nil {
		return nil, mapError(err)
	}
	s := fromInternalTaskStatus(*st)
	return &s, nil
}

// ListBackups returns the backups available on the server, newest first.
func (c *Client) ListBackups(ctx context.Context, prefix string) ([]Backup, error) {
	bs, err := c.backups.Run(ctx, backups.Request{Prefix: prefix})
	if err != nil {
		return nil, mapError(err)
	}
	return fromInternalBackups(bs), nil
}

// ListHistoryOpts filters the history listing.
type ListHistoryOpts struct {
	// Operation is optional.
	Operation OperationType
	// Limit is optional, 0 returns everything.
	Limit      int
	FailedOnly bool
}

// ListHistory returns the recorded terminated operations, newest first.
func (c *Client) ListHistory(ctx context.Context, opts ListHistoryOpts) ([]HistoryRecord, error) {
	rs, err := c.history.Run(ctx, history.Request{
		Operation:  toInternalOperation(opts.Operation),
		Limit:      opts.Limit,
		FailedOnly: opts.FailedOnly,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return fromInternalHistory(rs), nil
}

// ActiveTasks returns the ids of the tasks being tracked.
func (c *Client) ActiveTasks() []string {
	return c.manager.ActiveTasks()
}
