package lib

import (
	"errors"
	"time"

	"github.com/slok/opstrack/internal/model"
)

// OperationType is the kind of a server side long-running operation.
type OperationType string

const (
	OperationBackup     OperationType = "backup"
	OperationRestore    OperationType = "restore"
	OperationVerify     OperationType = "verify"
	OperationDelete     OperationType = "delete"
	OperationBulkDelete OperationType = "bulk-delete"
	OperationDryRun     OperationType = "dry-run"
)

// TaskState is the lifecycle state of a tracked task.
type TaskState string

const (
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
	// TaskStateExpired means the server forgot the task before it ended.
	TaskStateExpired   TaskState = "expired"
)

// LogEntry is a server log entry of a task.
type LogEntry struct {
	// Timestamp is the server timestamp as sent, it can be empty.
	Timestamp string
	// Level is one of info, warning, error or success.
	Level   string
	Message string
	Detail  string
}

// Task is a terminated operation.
type Task struct {
	ID            string
	Operation     OperationType
	State         TaskState
	StatusSummary string
	// ResultMessage is the final server message, empty when the server didn't send one.
	ResultMessage string
	LogEntries    []LogEntry
	LaunchedAt    time.Time
	FinishedAt    time.Time
}

// TaskStatus is a single status report of a task.
type TaskStatus struct {
	StatusSummary string
	// Success is nil while the server has not decided the outcome.
	Success       *bool
	IsDone        bool
	LogEntries    []LogEntry
	ResultMessage string
}

// Backup is a backup available on the server.
type Backup struct {
	Name      string
	SizeBytes int64
	CreatedAt time.Time
}

// HistoryRecord is a recorded terminated operation.
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

var (
	// ErrNotFound is returned when a task or record doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the arguments are not valid.
	ErrNotValid = errors.New("not valid")
	// ErrOperationInProgress is returned when an operation of the same type is already tracked.
	ErrOperationInProgress = errors.New("operation already in progress")
	// ErrLaunchFailed is returned when the server didn't accept the operation.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrTaskFailed is returned when an accepted operation didn't succeed.
	ErrTaskFailed = errors.New("task failed")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrTaskNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case errors.Is(err, model.ErrOperationInProgress):
		return joinErrors(err, ErrOperationInProgress)
	case errors.Is(err, model.ErrLaunchFailed):
		return joinErrors(err, ErrLaunchFailed)
	default:
		return err
	}
}

// mapTaskError maps the error of a terminated task, any of them is a failed task.
func mapTaskError(err error) error {
	if err == nil {
		return nil
	}
	return joinErrors(err, ErrTaskFailed)
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }

func fromInternalLogEntries(es []model.LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(es))
	for _, e := range es {
		out = append(out, LogEntry{
			Timestamp: e.Timestamp,
			Level:     string(e.Level),
			Message:   e.Message,
			Detail:    e.Detail,
		})
	}
	return out
}

func fromInternalTask(t model.Task) Task {
	return Task{
		ID:            t.ID,
		Operation:     OperationType(t.Operation),
		State:         TaskState(t.State),
		StatusSummary: t.StatusSummary,
		ResultMessage: t.ResultMessage,
		LogEntries:    fromInternalLogEntries(t.LogEntries),
		LaunchedAt:    t.LaunchedAt,
		FinishedAt:    t.FinishedAt,
	}
}

func fromInternalTaskStatus(s model.TaskStatus) TaskStatus {
	return TaskStatus{
		StatusSummary: s.StatusSummary,
		Success:       s.Success,
		IsDone:        s.IsDone,
		LogEntries:    fromInternalLogEntries(s.LogEntries),
		ResultMessage: s.ResultMessage,
	}
}

func fromInternalBackups(bs []model.Backup) []Backup {
	out := make([]Backup, 0, len(bs))
	for _, b := range bs {
		out = append(out, Backup{Name: b.Name, SizeBytes: b.SizeBytes, CreatedAt: b.CreatedAt})
	}
	return out
}

func fromInternalHistory(rs []model.HistoryRecord) []HistoryRecord {
	out := make([]HistoryRecord, 0, len(rs))
	for _, r := range rs {
		out = append(out, HistoryRecord{
			ID:         r.ID,
			TaskID:     r.TaskID,
			Operation:  OperationType(r.Operation),
			State:      TaskState(r.State),
			Message:    r.Message,
			LogLines:   r.LogLines,
			LaunchedAt: r.LaunchedAt,
			FinishedAt: r.FinishedAt,
		})
	}
	return out
}
