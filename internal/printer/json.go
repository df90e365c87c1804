package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/opstrack/internal/model"
)

// JSONPrinter prints listings in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type historyItem struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	Operation  string    `json:"operation"`
	State      string    `json:"state"`
	Message    string    `json:"message"`
	LogLines   int       `json:"log_lines"`
	LaunchedAt time.Time `json:"launched_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type backupItem struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type logEntryItem struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
}

type taskStatusOutput struct {
	TaskID        string         `json:"task_id"`
	IsDone        bool           `json:"is_done"`
	Success       *bool          `json:"success"`
	StatusSummary string         `json:"status_summary,omitempty"`
	ResultMessage string         `json:"result_message,omitempty"`
	LogEntries    []logEntryItem `json:"log_entries"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintHistory prints the terminated operations in JSON format.
func (j *JSONPrinter) PrintHistory(records []model.HistoryRecord) error {
	items := make([]historyItem, len(records))
	for i, r := range records {
		items[i] = historyItem{
			ID:         r.ID,
			TaskID:     r.TaskID,
			Operation:  string(r.Operation),
			State:      string(r.State),
			Message:    r.Message,
			LogLines:   r.LogLines,
			LaunchedAt: r.LaunchedAt.UTC(),
			FinishedAt: r.FinishedAt.UTC(),
		}
	}
	return j.encode(items)
}

// PrintBackups prints the available backups in JSON format.
func (j *JSONPrinter) PrintBackups(backups []model.Backup) error {
	items := make([]backupItem, len(backups))
	for i, b := range backups {
		items[i] = backupItem{Name: b.Name, SizeBytes: b.SizeBytes, CreatedAt: b.CreatedAt.UTC()}
	}
	return j.encode(items)
}

// PrintTaskStatus prints a single status report in JSON format.
func (j *JSONPrinter) PrintTaskStatus(taskID string, status model.TaskStatus) error {
	out := taskStatusOutput{
		TaskID:        taskID,
		IsDone:        status.IsDone,
		Success:       status.Success,
		StatusSummary: status.StatusSummary,
		ResultMessage: status.ResultMessage,
		LogEntries:    make([]logEntryItem, 0, len(status.LogEntries)),
	}
	for _, e := range status.LogEntries {
		out.LogEntries = append(out.LogEntries, logEntryItem{
			Timestamp: e.Timestamp,
			Level:     string(e.Level),
			Message:   e.Message,
			Detail:    e.Detail,
		})
	}
	return j.encode(out)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
