package status

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
)

// StatusAPI knows how to fetch the status of a server task.
type StatusAPI interface {
	TaskStatus(ctx context.Context, taskID string) (*model.TaskStatus, error)
}

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	API    StatusAPI
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("api is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service retrieves the status of a single server task.
type Service struct {
	api    StatusAPI
	logger log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		api:    cfg.API,
		logger: cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	TaskID string
}

// Run fetches the task status once, without tracking it.
func (s *Service) Run(ctx context.Context, req Request) (*model.TaskStatus, error) {
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	s.logger.Debugf("getting status for task: %s", taskID)

	st, err := s.api.TaskStatus(ctx, taskID)
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		return nil, fmt.Errorf("task %s not found or expired: %w", taskID, model.ErrNotFound)
	case errors.Is(err, model.ErrEmptyResponse):
		return &model.TaskStatus{}, nil
	case err != nil:
		return nil, fmt.Errorf("could not get task status: %w", err)
	}

	return st, nil
}
