package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"k8s.io/utils/clock"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/logagg"
	"github.com/slok/opstrack/internal/metrics"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/printer"
)

// DefaultPollInterval is the time between two status requests of a task.
const DefaultPollInterval = 3 * time.Second

// StatusAPI knows how to get the status of a server task.
type StatusAPI interface {
	TaskStatus(ctx context.Context, taskID string) (*model.TaskStatus, error)
}

// Locker is the interaction lock used while operations run.
type Locker interface {
	Acquire()
	Release()
}

// LogAppender writes task progress into log surfaces.
type LogAppender interface {
	AppendLog(l logagg.Line)
	Reset(surface string)
}

// HistoryRecorder stores the audit record of terminated tasks.
type HistoryRecorder interface {
	CreateHistoryRecord(ctx context.Context, r model.HistoryRecord) error
}

// StatusPollerConfig is the configuration of the status poller.
type StatusPollerConfig struct {
	Manager  *Manager
	API      StatusAPI
	Logs     LogAppender
	Reporter printer.Reporter
	Lock     Locker
	// History is optional.
	History  HistoryRecorder
	Interval time.Duration
	Clock    clock.WithTicker
	Metrics  metrics.Recorder
	Logger   log.Logger
}

func (c *StatusPollerConfig) defaults() error {
	if c.Manager == nil {
		return fmt.Errorf("manager is required")
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
	if c.Interval == 0 {
		c.Interval = DefaultPollInterval
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval can't be negative")
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.StatusPoller"})
	return nil
}

// StatusPoller polls the status of registered tasks until they are terminated.
type StatusPoller struct {
	manager  *Manager
	api      StatusAPI
	logs     LogAppender
	reporter printer.Reporter
	lock     Locker
	history  HistoryRecorder
	interval time.Duration
	clock    clock.WithTicker
	metrics  metrics.Recorder
	logger   log.Logger
}

// NewStatusPoller returns a new status poller.
func NewStatusPoller(cfg StatusPollerConfig) (*StatusPoller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &StatusPoller{
		manager:  cfg.Manager,
		api:      cfg.API,
		logs:     cfg.Logs,
		reporter: cfg.Reporter,
		lock:     cfg.Lock,
		history:  cfg.History,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}, nil
}

// Start begins polling a task. Starting an already polled task is a no-op that returns
// the existing handle. Cancelling ctx stops the polling and fails the task.
func (p *StatusPoller) Start(ctx context.Context, reg Registration) (*Handle, error) {
	if err := reg.validate(); err != nil {
		return nil, fmt.Errorf("invalid registration: %w", err)
	}

	if existing, ok := p.manager.get(reg.TaskID); ok {
		p.logger.Warningf("Task %s is already being polled, ignoring start", reg.TaskID)
		return existing.handle, nil
	}

	pctx, cancel := context.WithCancel(ctx)
	pl := &poll{
		Registration: reg,
		ctx:          pctx,
		cancel:       cancel,
		parent:       ctx,
		handle:       newHandle(reg.TaskID, reg.Operation),
		task: model.Task{
			ID:         reg.TaskID,
			Operation:  reg.Operation,
			State:      model.TaskStatePolling,
			LaunchedAt: p.clock.Now(),
		},
	}

	if !p.manager.register(pl) {
		cancel()
		existing, _ := p.manager.get(reg.TaskID)
		p.logger.Warningf("Task %s is already being polled, ignoring start", reg.TaskID)
		if existing == nil {
			return nil, fmt.Errorf("task %s: %w", reg.TaskID, model.ErrAlreadyExists)
		}
		return existing.handle, nil
	}

	// Created before the goroutine so the first tick can't be missed.
	ticker := p.clock.NewTicker(p.interval)
	go p.run(pl, ticker)

	p.logger.Debugf("Started polling task %s every %s", reg.TaskID, p.interval)
	return pl.handle, nil
}

func (p *StatusPoller) run(pl *poll, ticker clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-pl.ctx.Done():
			// Still registered means the parent context ended, not a terminal sequence.
			if p.manager.isCurrent(pl) {
				p.terminate(pl, outcome{
					state:   model.TaskStateFailed,
					message: fmt.Sprintf("%s tracking interrupted", pl.Operation.Title()),
					err:     pl.parent.Err(),
				})
			}
			return
		case <-ticker.C():
			p.fetchStatus(pl)
		}
	}
}

type outcome struct {
	success bool
	state   model.TaskState
	message string
	err     error
}

// fetchStatus is a single poll tick of a task.
func (p *StatusPoller) fetchStatus(pl *poll) {
	logger := p.logger.WithValues(log.Kv{"task-id": pl.TaskID, "operation": pl.Operation})

	st, err := p.api.TaskStatus(pl.ctx, pl.TaskID)

	// The task may have been terminated while the request was in flight.
	if !p.manager.isCurrent(pl) {
		p.metrics.IncPoll(metrics.PollResultDiscarded)
		logger.Debugf("Discarding status response of an untracked task")
		return
	}

	switch {
	case err == nil && st == nil:
		err = model.ErrEmptyResponse
		fallthrough
	case errors.Is(err, model.ErrEmptyResponse):
		p.metrics.IncPoll(metrics.PollResultEmpty)
		logger.Warningf("Empty status response: %s", err)
		p.logs.AppendLog(logagg.Line{
			LogSurface: pl.LogSurface,
			Message:    "Received an empty status response, still waiting",
			Level:      model.LogLevelWarning,
		})
		return

	case errors.Is(err, model.ErrTaskNotFound):
		p.metrics.IncPoll(metrics.PollResultNotFound)
		logger.Warningf("Task not found on the server")
		p.logs.AppendLog(logagg.Line{
			LogSurface: pl.LogSurface,
			Message:    "Task not found or expired",
			Detail:     pl.TaskID,
			Level:      model.LogLevelError,
		})
		p.terminate(pl, outcome{state: model.TaskStateExpired, err: err})
		return

	case err != nil && pl.ctx.Err() != nil:
		// Context ended, the run loop takes care of it.
		return

	case err != nil:
		p.metrics.IncPoll(metrics.PollResultTransport)
		logger.Errorf("Status request failed: %s", err)
		p.logs.AppendLog(logagg.Line{
			LogSurface: pl.LogSurface,
			Message:    "Status request failed",
			Detail:     err.Error(),
			Level:      model.LogLevelError,
		})
		p.terminate(pl, outcome{state: model.TaskStateFailed, err: err})
		return
	}

	p.metrics.IncPoll(metrics.PollResultOK)

	pl.task.StatusSummary = st.StatusSummary
	pl.task.Success = st.Success
	pl.task.IsDone = st.IsDone
	pl.task.ResultMessage = st.ResultMessage
	if len(st.LogEntries) >= len(pl.task.LogEntries) {
		pl.task.LogEntries = st.LogEntries
	}

	if st.StatusSummary != "" {
		p.reporter.Display(pl.StatusSurface, st.StatusSummary, model.SeverityFromSuccess(st.Success))
	}

	cursor := p.manager.CursorFor(pl.TaskID)
	if cursor < len(st.LogEntries) {
		for _, e := range st.LogEntries[cursor:] {
			p.logs.AppendLog(logagg.Line{
				LogSurface:      pl.LogSurface,
				Message:         e.Message,
				Detail:          e.Detail,
				Level:           e.Level,
				ServerTimestamp: e.Timestamp,
			})
		}
		p.manager.AdvanceCursor(pl.TaskID, len(st.LogEntries))
	}

	if !st.IsDone {
		return
	}

	o := outcome{
		success: st.Success != nil && *st.Success,
		state:   model.TaskStateFailed,
		message: st.ResultMessage,
	}
	if o.success {
		o.state = model.TaskStateSucceeded
	} else {
		o.err = model.ErrTaskReportedFailure
		if st.ResultMessage != "" {
			o.err = fmt.Errorf("%w: %s", model.ErrTaskReportedFailure, st.ResultMessage)
		}
	}
	p.terminate(pl, o)
}

// terminate runs the terminal sequence of a task. It runs only once per poll.
func (p *StatusPoller) terminate(pl *poll, o outcome) {
	if !p.manager.unregister(pl) {
		return
	}

	msg := o.message
	if msg == "" {
		if o.success {
			msg = fmt.Sprintf("%s completed", pl.Operation.Title())
		} else {
			msg = fmt.Sprintf("%s failed", pl.Operation.Title())
		}
	}
	severity := model.SeverityError
	if o.success {
		severity = model.SeveritySuccess
	}
	p.reporter.Display(pl.StatusSurface, msg, severity)

	p.lock.Release()
	p.manager.ClearSlot(pl.Operation, pl.TaskID)

	t := pl.task
	t.State = o.state
	t.IsDone = true
	t.ResultMessage = msg
	t.FinishedAt = p.clock.Now()
	if !o.success && t.Success == nil {
		no := false
		t.Success = &no
	}

	// The poll context is cancelled at this point.
	ctx := context.WithoutCancel(pl.parent)

	if o.success {
		if fn := p.manager.completion(pl.Operation); fn != nil {
			fn(ctx, t)
		}
	}

	if p.history != nil {
		err := p.history.CreateHistoryRecord(ctx, model.HistoryRecord{
			ID:         ulid.Make().String(),
			TaskID:     t.ID,
			Operation:  t.Operation,
			State:      t.State,
			Message:    msg,
			LogLines:   len(t.LogEntries),
			LaunchedAt: t.LaunchedAt,
			FinishedAt: t.FinishedAt,
		})
		if err != nil {
			p.logger.Errorf("Could not record task %s history: %s", t.ID, err)
		}
	}

	p.metrics.IncTaskTerminated(string(t.Operation), string(t.State))
	p.logger.Infof("Task %s (%s) terminated: %s", t.ID, t.Operation, t.State)

	var err error
	if o.err != nil {
		err = fmt.Errorf("%s task %s %s: %w", t.Operation, t.ID, t.State, o.err)
	} else if !o.success {
		err = fmt.Errorf("%s task %s %s", t.Operation, t.ID, t.State)
	}
	pl.handle.finish(t, err)
}
