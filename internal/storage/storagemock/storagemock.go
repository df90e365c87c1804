// Package storagemock has testify mocks of the storage repositories.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/storage"
)

// MockHistoryRepository is a mock of storage.HistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

var _ storage.HistoryRepository = &MockHistoryRepository{}

// CreateHistoryRecord provides a mock function.
func (m *MockHistoryRepository) CreateHistoryRecord(ctx context.Context, r model.HistoryRecord) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// GetHistoryRecord provides a mock function.
func (m *MockHistoryRepository) GetHistoryRecord(ctx context.Context, id string) (*model.HistoryRecord, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.HistoryRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListHistoryRecords provides a mock function.
func (m *MockHistoryRepository) ListHistoryRecords(ctx context.Context, opts storage.ListHistoryOpts) ([]model.HistoryRecord, error) {
	args := m.Called(ctx, opts)
	if v := args.Get(0); v != nil {
		return v.([]model.HistoryRecord), args.Error(1)
	}
	return nil, args.Error(1)
}
