package history

import (
	"context"
	"fmt"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.HistoryRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the recorded terminated operations.
type Service struct {
	repo   storage.HistoryRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// Operation is an optional filter.
	Operation model.OperationType
	// Limit is optional, 0 returns everything.
	Limit int
	// FailedOnly drops the succeeded records.
	FailedOnly bool
}

func (r Request) validate() error {
	if r.Operation != "" {
		if err := r.Operation.Validate(); err != nil {
			return err
		}
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}
	return nil
}

// Run returns the history records, most recent first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.HistoryRecord, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	s.logger.Debugf("listing history (operation: %q, limit: %d)", req.Operation, req.Limit)

	// The limit applies after filtering failures.
	opts := storage.ListHistoryOpts{Operation: req.Operation}
	if !req.FailedOnly {
		opts.Limit = req.Limit
	}

	records, err := s.repo.ListHistoryRecords(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list history: %w", err)
	}

	if req.FailedOnly {
		filtered := make([]model.HistoryRecord, 0, len(records))
		for _, r := range records {
			if r.State != model.TaskStateSucceeded {
				filtered = append(filtered, r)
			}
		}
		records = filtered
		if req.Limit > 0 && len(records) > req.Limit {
			records = records[:req.Limit]
		}
	}

	s.logger.Debugf("found %d history records", len(records))
	return records, nil
}
