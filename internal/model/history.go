package model

import (
	"fmt"
	"time"
)

// HistoryRecord is the audit record of a terminated task.
type HistoryRecord struct {
	ID         string
	TaskID     string
	Operation  OperationType
	State      TaskState
	Message    string
	LogLines   int
	LaunchedAt time.Time
	FinishedAt time.Time
}

// Validate checks the record is a storable one.
func (h HistoryRecord) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if h.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if err := h.Operation.Validate(); err != nil {
		return err
	}
	if !h.State.IsTerminal() {
		return fmt.Errorf("state %q is not terminal: %w", h.State, ErrNotValid)
	}
	return nil
}

// Duration returns how long the task took.
func (h HistoryRecord) Duration() time.Duration {
	if h.LaunchedAt.IsZero() || h.FinishedAt.Before(h.LaunchedAt) {
		return 0
	}
	return h.FinishedAt.Sub(h.LaunchedAt)
}
