package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/slok/opstrack/internal/api"
	"github.com/slok/opstrack/internal/app/backups"
	"github.com/slok/opstrack/internal/app/operation"
	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/lock"
	"github.com/slok/opstrack/internal/logagg"
	"github.com/slok/opstrack/internal/metrics"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/printer"
	storageio "github.com/slok/opstrack/internal/storage/io"
	"github.com/slok/opstrack/internal/storage/sqlite"
	"github.com/slok/opstrack/internal/task"
)

// BackupsControl is the name of the backups listing link control.
const BackupsControl = "backups"

// taskRuntime is the wired task tracking stack shared by the operation commands.
type taskRuntime struct {
	client    *api.Client
	reporter  printer.Reporter
	logs      *logagg.Aggregator
	lock      *lock.InteractionLock
	controls  map[string]*lock.Gate
	manager   *task.Manager
	launcher  *task.Launcher
	operation *operation.Service
	backups   *backups.Service
	closers   []func() error
}

func (c *RootCommand) newAPIClient() (*api.Client, error) {
	client, err := api.NewClient(api.ClientConfig{
		BaseURL: c.ServerURL,
		Token:   c.Token,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create api client: %w", err)
	}
	return client, nil
}

func (c *RootCommand) newReporter() printer.Reporter {
	if c.ReporterType == ReporterTypeJSON {
		return printer.NewJSONReporter(c.Stdout)
	}
	return printer.NewTerminalReporter(printer.TerminalReporterConfig{Writer: c.Stdout, NoColor: c.NoColor})
}

// loadOperations loads the operations file, a missing file means built-in operations.
func (c *RootCommand) loadOperations(ctx context.Context) (model.OperationsConfig, error) {
	path, err := filepath.Abs(c.OperationsFile)
	if err != nil {
		return nil, fmt.Errorf("could not resolve operations file path: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		c.Logger.Debugf("Operations file %s missing, using built-in operations", path)
		return storageio.DefaultOperations(), nil
	}

	repo := storageio.NewOperationsYAMLRepository(os.DirFS("/"))
	ops, err := repo.GetOperations(ctx, path[1:])
	if err != nil {
		return nil, fmt.Errorf("could not load operations: %w", err)
	}
	return ops, nil
}

func (c *RootCommand) newTaskRuntime(ctx context.Context, rec metrics.Recorder) (*taskRuntime, error) {
	logger := c.Logger
	rt := &taskRuntime{controls: map[string]*lock.Gate{}}

	var err error
	rt.client, err = c.newAPIClient()
	if err != nil {
		return nil, err
	}

	ops, err := c.loadOperations(ctx)
	if err != nil {
		return nil, err
	}

	rt.reporter = c.newReporter()
	rt.logs, err = logagg.NewAggregator(logagg.AggregatorConfig{Reporter: rt.reporter, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create log aggregator: %w", err)
	}

	// One button per operation plus the backups listing link.
	var controls []lock.Control
	for _, op := range model.OperationTypes {
		g := lock.NewGate(string(op), lock.ControlKindButton)
		rt.controls[string(op)] = g
		controls = append(controls, g)
	}
	link := lock.NewGate(BackupsControl, lock.ControlKindLink)
	rt.controls[BackupsControl] = link
	controls = append(controls, link)

	rt.lock, err = lock.NewInteractionLock(lock.InteractionLockConfig{
		Controls:      controls,
		SafetyTimeout: c.SafetyTimeout,
		Metrics:       rec,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create interaction lock: %w", err)
	}

	var history task.HistoryRecorder
	if !c.NoHistory {
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: c.DBPath, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create history repository: %w", err)
		}
		rt.closers = append(rt.closers, repo.Close)
		history = repo
	}

	rt.manager = task.NewManager()
	poller, err := task.NewStatusPoller(task.StatusPollerConfig{
		Manager:  rt.manager,
		API:      rt.client,
		Logs:     rt.logs,
		Reporter: rt.reporter,
		Lock:     rt.lock,
		History:  history,
		Interval: c.PollInterval,
		Metrics:  rec,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create status poller: %w", err)
	}

	rt.launcher, err = task.NewLauncher(task.LauncherConfig{
		Manager:  rt.manager,
		Poller:   poller,
		API:      rt.client,
		Logs:     rt.logs,
		Reporter: rt.reporter,
		Lock:     rt.lock,
		Metrics:  rec,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create launcher: %w", err)
	}

	rt.operation, err = operation.NewService(operation.ServiceConfig{
		Launcher:   rt.launcher,
		Operations: ops,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create operation service: %w", err)
	}

	rt.backups, err = backups.NewService(backups.ServiceConfig{API: rt.client, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create backups service: %w", err)
	}

	return rt, nil
}

// refreshBackupsOnComplete prints the backups list after the operations that change it.
func (rt *taskRuntime) refreshBackupsOnComplete(p printer.Printer, onErr func(error)) {
	for _, op := range model.OperationTypes {
		if !conventions.RefreshesBackups(op) {
			continue
		}
		rt.manager.OnComplete(op, func(ctx context.Context, _ model.Task) {
			bs, err := rt.backups.Run(ctx, backups.Request{})
			if err != nil {
				onErr(err)
				return
			}
			if err := p.PrintBackups(bs); err != nil {
				onErr(err)
			}
		})
	}
}

func (rt *taskRuntime) Close() error {
	var errs []error
	for _, c := range rt.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func newPrinter(format string, c *RootCommand) printer.Printer {
	if format == "json" {
		return printer.NewJSONPrinter(c.Stdout)
	}
	return printer.NewTablePrinter(c.Stdout)
}
