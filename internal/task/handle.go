package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/opstrack/internal/model"
)

// Handle lets callers wait for a task to reach its terminal state.
type Handle struct {
	TaskID    string
	Operation model.OperationType

	done chan struct{}
	once sync.Once
	task model.Task
	err  error
}

func newHandle(taskID string, op model.OperationType) *Handle {
	return &Handle{TaskID: taskID, Operation: op, done: make(chan struct{})}
}

func (h *Handle) finish(t model.Task, err error) {
	h.once.Do(func() {
		h.task = t
		h.err = err
		close(h.done)
	})
}

// Done is closed when the task is terminated.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task is terminated or the context is done. The error is nil only
// when the task succeeded.
func (h *Handle) Wait(ctx context.Context) (model.Task, error) {
	select {
	case <-h.done:
		return h.task, h.err
	case <-ctx.Done():
		return model.Task{}, fmt.Errorf("waiting for task %s: %w", h.TaskID, ctx.Err())
	}
}
