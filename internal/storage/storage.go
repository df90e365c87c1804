package storage

import (
	"context"

	"github.com/slok/opstrack/internal/model"
)

// ListHistoryOpts filters history listings.
type ListHistoryOpts struct {
	// Operation is optional, when empty every operation type is returned.
	Operation model.OperationType
	// Limit is optional, 0 means no limit.
	Limit int
}

// HistoryRepository is the interface for the terminated tasks audit trail.
type HistoryRepository interface {
	CreateHistoryRecord(ctx context.Context, r model.HistoryRecord) error
	GetHistoryRecord(ctx context.Context, id string) (*model.HistoryRecord, error)
	// ListHistoryRecords returns the records, most recently finished first.
	ListHistoryRecords(ctx context.Context, opts ListHistoryOpts) ([]model.HistoryRecord, error)
}

// OperationsRepository loads the launch configuration of the operations.
type OperationsRepository interface {
	GetOperations(ctx context.Context, path string) (model.OperationsConfig, error)
}
