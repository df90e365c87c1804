package printer

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/slok/opstrack/internal/model"
)

// TablePrinter prints listings in a table format.
type TablePrinter struct {
	writer io.Writer
	now    func() time.Time
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, now: time.Now}
}

// PrintHistory prints the terminated operations.
func (t *TablePrinter) PrintHistory(records []model.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TASK\tOPERATION\tSTATE\tDURATION\tFINISHED\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TaskID,
			r.Operation,
			r.State,
			FormatDuration(r.LaunchedAt, r.FinishedAt),
			TimeAgo(t.now(), r.FinishedAt),
			r.Message,
		)
	}

	return nil
}

// PrintBackups prints the available backups.
func (t *TablePrinter) PrintBackups(backups []model.Backup) error {
	if len(backups) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tSIZE\tCREATED")
	for _, b := range backups {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, FormatBytes(b.SizeBytes), TimeAgo(t.now(), b.CreatedAt))
	}

	return nil
}

// PrintTaskStatus prints a single status report of a task.
func (t *TablePrinter) PrintTaskStatus(taskID string, status model.TaskStatus) error {
	outcome := "pending"
	if status.Success != nil {
		outcome = "failed"
		if *status.Success {
			outcome = "succeeded"
		}
	}

	fmt.Fprintf(t.writer, "Task:       %s\n", taskID)
	fmt.Fprintf(t.writer, "Done:       %t\n", status.IsDone)
	fmt.Fprintf(t.writer, "Outcome:    %s\n", outcome)
	if status.StatusSummary != "" {
		fmt.Fprintf(t.writer, "Summary:    %s\n", status.StatusSummary)
	}
	if status.ResultMessage != "" {
		fmt.Fprintf(t.writer, "Result:     %s\n", status.ResultMessage)
	}
	fmt.Fprintf(t.writer, "Log lines:  %d\n", len(status.LogEntries))
	for _, e := range status.LogEntries {
		line := fmt.Sprintf("  [%s] %-7s %s", e.Timestamp, e.Level, e.Message)
		if e.Detail != "" {
			line += " - " + e.Detail
		}
		fmt.Fprintln(t.writer, line)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
