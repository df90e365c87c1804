// Package taskmock has testify mocks of the task package dependencies.
package taskmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/opstrack/internal/model"
)

// API is a mock of task.LaunchAPI and task.StatusAPI.
type API struct {
	mock.Mock
}

// Launch provides a mock function.
func (m *API) Launch(ctx context.Context, endpoint string, payload map[string]any) (*model.LaunchResult, error) {
	args := m.Called(ctx, endpoint, payload)

	var r *model.LaunchResult
	if v := args.Get(0); v != nil {
		r = v.(*model.LaunchResult)
	}
	return r, args.Error(1)
}

// TaskStatus provides a mock function.
func (m *API) TaskStatus(ctx context.Context, taskID string) (*model.TaskStatus, error) {
	args := m.Called(ctx, taskID)

	var r *model.TaskStatus
	if v := args.Get(0); v != nil {
		r = v.(*model.TaskStatus)
	}
	return r, args.Error(1)
}

// HistoryRecorder is a mock of task.HistoryRecorder.
type HistoryRecorder struct {
	mock.Mock
}

// CreateHistoryRecord provides a mock function.
func (m *HistoryRecorder) CreateHistoryRecord(ctx context.Context, r model.HistoryRecord) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}
