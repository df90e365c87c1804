package model

import (
	"fmt"
	"strings"
	"time"
)

// OperationType is the kind of long-running server operation.
type OperationType string

const (
	OperationBackup     OperationType = "backup"
	OperationRestore    OperationType = "restore"
	OperationVerify     OperationType = "verify"
	OperationDelete     OperationType = "delete"
	OperationBulkDelete OperationType = "bulk-delete"
	OperationDryRun     OperationType = "dry-run"
)

// OperationTypes are all the known operation types, in display order.
var OperationTypes = []OperationType{
	OperationBackup,
	OperationRestore,
	OperationVerify,
	OperationDelete,
	OperationBulkDelete,
	OperationDryRun,
}

// Validate checks the operation type is a known one.
func (o OperationType) Validate() error {
	for _, op := range OperationTypes {
		if o == op {
			return nil
		}
	}
	return fmt.Errorf("unknown operation type %q: %w", string(o), ErrNotValid)
}

// Title returns a human friendly name of the operation (e.g. "Bulk delete").
func (o OperationType) Title() string {
	s := strings.ReplaceAll(string(o), "-", " ")
	if s == "" {
		return "Operation"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TaskState is the client side lifecycle state of a task.
//
//	idle -> launching -> polling -> succeeded | failed | expired
type TaskState string

const (
	TaskStateIdle      TaskState = "idle"
	TaskStateLaunching TaskState = "launching"
	TaskStatePolling   TaskState = "polling"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
	TaskStateExpired   TaskState = "expired"
)

// IsTerminal returns true when no more transitions can happen from the state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSucceeded, TaskStateFailed, TaskStateExpired:
		return true
	}
	return false
}

// Task is a server tracked long-running operation instance.
type Task struct {
	ID        string
	Operation OperationType
	State     TaskState
	IsDone    bool
	// Success is nil while the server has not decided the outcome.
	Success       *bool
	StatusSummary string
	// ResultMessage is empty when the server did not send one.
	ResultMessage string
	LogEntries    []LogEntry
	LaunchedAt    time.Time
	FinishedAt    time.Time
}

// Succeeded returns true only when the server reported an explicit success.
func (t Task) Succeeded() bool {
	return t.Success != nil && *t.Success
}

// TaskStatus is a single status report of a task as returned by the server.
type TaskStatus struct {
	StatusSummary string
	Success       *bool
	IsDone        bool
	LogEntries    []LogEntry
	ResultMessage string
}

// LaunchResult is the server answer to an operation launch request.
type LaunchResult struct {
	Success bool
	TaskID  string
	Message string
}

// Backup is a completed backup artifact available on the server.
type Backup struct {
	Name      string
	SizeBytes int64
	CreatedAt time.Time
}
