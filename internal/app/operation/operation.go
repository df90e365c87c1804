package operation

import (
	"context"
	"fmt"

	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/task"
	"github.com/slok/opstrack/internal/utils/params"
)

// Payload keys of the backup target.
const (
	BackupParam  = "backup"
	BackupsParam = "backups"
)

// Launcher knows how to launch tracked operations.
type Launcher interface {
	Launch(ctx context.Context, req task.LaunchRequest) (*task.Handle, error)
}

// ServiceConfig is the configuration for the operation service.
type ServiceConfig struct {
	Launcher Launcher
	// Operations is optional, missing operations use the built-in endpoints.
	Operations model.OperationsConfig
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Launcher == nil {
		return fmt.Errorf("launcher is required")
	}

	ops := model.OperationsConfig{}
	for _, op := range model.OperationTypes {
		ops[op] = model.OperationConfig{Endpoint: conventions.DefaultEndpoint(op)}
	}
	for op, oc := range c.Operations {
		ops[op] = oc
	}
	if err := ops.Validate(); err != nil {
		return fmt.Errorf("invalid operations: %w", err)
	}
	c.Operations = ops

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service launches server operations and optionally follows them to completion.
type Service struct {
	launcher   Launcher
	operations model.OperationsConfig
	logger     log.Logger
}

// NewService creates a new operation service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		launcher:   cfg.Launcher,
		operations: cfg.Operations,
		logger:     cfg.Logger,
	}, nil
}

// Request represents the operation request parameters.
type Request struct {
	Operation model.OperationType
	// Backups are the target backups, required by every operation except backup.
	Backups []string
	// Params override the configured default parameters.
	Params map[string]any
	// Wait blocks until the task is terminated.
	Wait bool
}

func (r Request) validate() error {
	if err := r.Operation.Validate(); err != nil {
		return err
	}

	switch r.Operation {
	case model.OperationBackup:
		if len(r.Backups) > 0 {
			return fmt.Errorf("backup doesn't accept target backups: %w", model.ErrNotValid)
		}
	case model.OperationBulkDelete:
		if len(r.Backups) == 0 {
			return fmt.Errorf("at least one backup is required: %w", model.ErrNotValid)
		}
	default:
		if len(r.Backups) != 1 {
			return fmt.Errorf("%s requires exactly one backup: %w", r.Operation, model.ErrNotValid)
		}
	}

	for _, b := range r.Backups {
		if b == "" {
			return fmt.Errorf("backup name can't be empty: %w", model.ErrNotValid)
		}
	}

	return nil
}

// Response is the result of an operation request.
type Response struct {
	TaskID string
	Handle *task.Handle
	// Task is only set when the request waited.
	Task *model.Task
}

// Run launches the operation. When waiting, an unsuccessful task is returned along with
// the error.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	oc := s.operations[req.Operation]
	payload := params.Merge(oc.Params, req.Params)
	switch req.Operation {
	case model.OperationBackup:
	case model.OperationBulkDelete:
		names := make([]any, 0, len(req.Backups))
		for _, b := range req.Backups {
			names = append(names, b)
		}
		payload[BackupsParam] = names
	default:
		payload[BackupParam] = req.Backups[0]
	}

	logSurface, statusSurface := conventions.Surfaces(req.Operation)
	s.logger.Debugf("launching %s on %s", req.Operation, oc.Endpoint)

	h, err := s.launcher.Launch(ctx, task.LaunchRequest{
		Endpoint:      oc.Endpoint,
		Payload:       payload,
		Operation:     req.Operation,
		LogSurface:    logSurface,
		StatusSurface: statusSurface,
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch %s: %w", req.Operation, err)
	}

	resp := &Response{TaskID: h.TaskID, Handle: h}
	if !req.Wait {
		return resp, nil
	}

	t, err := h.Wait(ctx)
	resp.Task = &t
	if err != nil {
		return resp, fmt.Errorf("%s did not succeed: %w", req.Operation, err)
	}

	s.logger.Debugf("%s task %s succeeded", req.Operation, h.TaskID)
	return resp, nil
}
