package task

import (
	"context"
	"fmt"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/logagg"
	"github.com/slok/opstrack/internal/metrics"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/printer"
)

// LaunchAPI knows how to launch server operations.
type LaunchAPI interface {
	Launch(ctx context.Context, endpoint string, payload map[string]any) (*model.LaunchResult, error)
}

// LauncherConfig is the configuration of the task launcher.
type LauncherConfig struct {
	Manager  *Manager
	Poller   *StatusPoller
	API      LaunchAPI
	Logs     LogAppender
	Reporter printer.Reporter
	Lock     Locker
	Metrics  metrics.Recorder
	Logger   log.Logger
}

func (c *LauncherConfig) defaults() error {
	if c.Manager == nil {
		return fmt.Errorf("manager is required")
	}
	if c.Poller == nil {
		return fmt.Errorf("poller is required")
	}
	if c.API == nil {
		return fmt.Errorf("api is required")
	}
	if c.Logs == nil {
		return fmt.Errorf("log appender is required")
	}
	if c.Reporter == nil {
		return fmt.Errorf("reporter is required")
	}
	if c.Lock == nil {
		return fmt.Errorf("lock is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Launcher"})
	return nil
}

// Launcher issues the initiating request of operations and starts their polling.
type Launcher struct {
	manager  *Manager
	poller   *StatusPoller
	api      LaunchAPI
	logs     LogAppender
	reporter printer.Reporter
	lock     Locker
	metrics  metrics.Recorder
	logger   log.Logger
}

// NewLauncher returns a new task launcher.
func NewLauncher(cfg LauncherConfig) (*Launcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Launcher{
		manager:  cfg.Manager,
		poller:   cfg.Poller,
		api:      cfg.API,
		logs:     cfg.Logs,
		reporter: cfg.Reporter,
		lock:     cfg.Lock,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}, nil
}

// LaunchRequest is an operation launch.
type LaunchRequest struct {
	Endpoint      string
	Payload       map[string]any
	Operation     model.OperationType
	LogSurface    string
	StatusSurface string
}

func (r LaunchRequest) validate() error {
	if r.Endpoint == "" {
		return fmt.Errorf("endpoint is required: %w", model.ErrNotValid)
	}
	if err := r.Operation.Validate(); err != nil {
		return err
	}
	if r.LogSurface == "" || r.StatusSurface == "" {
		return fmt.Errorf("log and status surfaces are required: %w", model.ErrNotValid)
	}
	return nil
}

// Launch starts an operation on the server and begins polling it. The polling outlives
// the call and ends when the task is terminated or ctx is cancelled.
func (l *Launcher) Launch(ctx context.Context, req LaunchRequest) (*Handle, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid launch request: %w", err)
	}
	logger := l.logger.WithValues(log.Kv{"operation": req.Operation})

	if err := l.manager.ReserveSlot(req.Operation); err != nil {
		logger.Warningf("Operation already in progress")
		l.reporter.Display(req.StatusSurface, fmt.Sprintf("%s operation already in progress", req.Operation.Title()), model.SeverityWarning)
		return nil, err
	}

	l.lock.Acquire()
	l.logs.Reset(req.LogSurface)
	l.logs.AppendLog(logagg.Line{
		LogSurface:    req.LogSurface,
		StatusSurface: req.StatusSurface,
		Message:       fmt.Sprintf("Initiating %s...", req.Operation),
		Level:         model.LogLevelInfo,
	})

	res, err := l.api.Launch(ctx, req.Endpoint, req.Payload)
	if err != nil || res == nil || !res.Success || res.TaskID == "" {
		return nil, l.failLaunch(logger, req, launchFailureMessage(req.Operation, res, err), err)
	}

	// A task id already being tracked belongs to another launch, its cursor and slot
	// must stay untouched.
	if l.manager.IsActive(res.TaskID) {
		msg := fmt.Sprintf("Could not start %s: task %s is already tracked", req.Operation, res.TaskID)
		return nil, l.failLaunch(logger, req, msg, model.ErrAlreadyExists)
	}

	l.manager.ResetCursor(res.TaskID)
	l.manager.SetSlot(req.Operation, res.TaskID)
	l.metrics.IncTaskLaunched(string(req.Operation))
	logger.Infof("Operation launched as task %s", res.TaskID)

	h, err := l.poller.Start(ctx, Registration{
		TaskID:        res.TaskID,
		Operation:     req.Operation,
		LogSurface:    req.LogSurface,
		StatusSurface: req.StatusSurface,
	})
	if err != nil {
		l.lock.Release()
		l.manager.ClearSlot(req.Operation, res.TaskID)
		return nil, fmt.Errorf("could not start polling: %w", err)
	}

	return h, nil
}

// Detach stops tracking a launched task without running its terminal sequence, the task
// keeps running on the server. Returns false if the task was no longer tracked.
func (l *Launcher) Detach(h *Handle) bool {
	if !l.manager.Unregister(h.TaskID) {
		return false
	}
	l.manager.ClearSlot(h.Operation, h.TaskID)
	l.lock.Release()
	l.logger.WithValues(log.Kv{"operation": h.Operation}).Debugf("Detached from task %s", h.TaskID)
	return true
}

// failLaunch undoes the launch side effects and reports the failure.
func (l *Launcher) failLaunch(logger log.Logger, req LaunchRequest, msg string, err error) error {
	l.lock.Release()
	l.manager.ReleaseSlot(req.Operation)
	l.logs.AppendLog(logagg.Line{LogSurface: req.LogSurface, Message: msg, Level: model.LogLevelError})
	l.reporter.Display(req.StatusSurface, msg, model.SeverityError)
	l.metrics.IncLaunchFailed(string(req.Operation))
	logger.Errorf("Launch failed: %s", msg)

	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrLaunchFailed, err)
	}
	return fmt.Errorf("%w: %s", model.ErrLaunchFailed, msg)
}

func launchFailureMessage(op model.OperationType, res *model.LaunchResult, err error) string {
	switch {
	case err != nil:
		return fmt.Sprintf("Could not start %s: %s", op, err)
	case res != nil && res.Message != "":
		return res.Message
	case res != nil && res.Success:
		return fmt.Sprintf("Could not start %s: server did not return a task ID", op)
	default:
		return fmt.Sprintf("Could not start %s", op)
	}
}
