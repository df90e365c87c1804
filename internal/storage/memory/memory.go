package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.HistoryRepository.
type Repository struct {
	records map[string]model.HistoryRecord
	mu      sync.RWMutex
	logger  log.Logger
}

var _ storage.HistoryRepository = &Repository{}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		records: make(map[string]model.HistoryRecord),
		logger:  cfg.Logger,
	}, nil
}

// CreateHistoryRecord stores a terminated task record.
func (r *Repository) CreateHistoryRecord(ctx context.Context, h model.HistoryRecord) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("invalid history record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[h.ID]; ok {
		return fmt.Errorf("history record %s: %w", h.ID, model.ErrAlreadyExists)
	}
	r.records[h.ID] = h

	r.logger.Debugf("Created history record %s for task %s", h.ID, h.TaskID)
	return nil
}

// GetHistoryRecord retrieves a record by ID.
func (r *Repository) GetHistoryRecord(ctx context.Context, id string) (*model.HistoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("history record %s: %w", id, model.ErrNotFound)
	}
	return &h, nil
}

// ListHistoryRecords returns the records, most recently finished first.
func (r *Repository) ListHistoryRecords(ctx context.Context, opts storage.ListHistoryOpts) ([]model.HistoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []model.HistoryRecord
	for _, h := range r.records {
		if opts.Operation != "" && h.Operation != opts.Operation {
			continue
		}
		records = append(records, h)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].FinishedAt.Equal(records[j].FinishedAt) {
			return records[i].FinishedAt.After(records[j].FinishedAt)
		}
		return records[i].ID > records[j].ID
	})

	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	return records, nil
}
