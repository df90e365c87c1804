package printer

import "github.com/slok/opstrack/internal/model"

// Printer knows how to print listings in different formats.
type Printer interface {
	PrintHistory(records []model.HistoryRecord) error
	PrintBackups(backups []model.Backup) error
	PrintTaskStatus(taskID string, status model.TaskStatus) error
	PrintMessage(msg string) error
}

// Reporter renders task progress into named surfaces. A status surface shows only the
// latest message, a log surface is append-only.
type Reporter interface {
	// Display overwrites the content of a status surface.
	Display(surface, message string, severity model.Severity)
	// Append adds a line at the end of a log surface.
	Append(surface, line string, severity model.Severity)
	// Clear empties a surface.
	Clear(surface string)
}
