package printer

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/slok/opstrack/internal/model"
)

// TerminalReporterConfig is the configuration of the terminal reporter.
type TerminalReporterConfig struct {
	Writer  io.Writer
	NoColor bool
}

// TerminalReporter writes surfaces as styled lines on a terminal. Status surfaces are
// only written when their content changes.
type TerminalReporter struct {
	writer     io.Writer
	noColor    bool
	surface    lipgloss.Style
	severities map[model.Severity]lipgloss.Style
	lastStatus map[string]string
	mu         sync.Mutex
}

// NewTerminalReporter returns a new terminal reporter.
func NewTerminalReporter(cfg TerminalReporterConfig) *TerminalReporter {
	r := lipgloss.NewRenderer(cfg.Writer)

	return &TerminalReporter{
		writer:  cfg.Writer,
		noColor: cfg.NoColor,
		surface: r.NewStyle().Faint(true),
		severities: map[model.Severity]lipgloss.Style{
			model.SeverityInfo:    r.NewStyle(),
			model.SeverityWarning: r.NewStyle().Foreground(lipgloss.Color("3")),
			model.SeverityError:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			model.SeveritySuccess: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		},
		lastStatus: map[string]string{},
	}
}

func (t *TerminalReporter) Display(surface, message string, severity model.Severity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := string(severity) + "|" + message
	if t.lastStatus[surface] == key {
		return
	}
	t.lastStatus[surface] = key

	fmt.Fprintf(t.writer, "%s %s\n", t.render(t.surface, "["+surface+"]"), t.render(t.style(severity), severityMark(severity)+message))
}

func (t *TerminalReporter) Append(surface, line string, severity model.Severity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "%s %s\n", t.render(t.surface, surface+" |"), t.render(t.style(severity), line))
}

func (t *TerminalReporter) Clear(surface string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastStatus, surface)
}

func (t *TerminalReporter) style(s model.Severity) lipgloss.Style {
	st, ok := t.severities[s]
	if !ok {
		return t.severities[model.SeverityInfo]
	}
	return st
}

func (t *TerminalReporter) render(s lipgloss.Style, text string) string {
	if t.noColor {
		return text
	}
	return s.Render(text)
}

func severityMark(s model.Severity) string {
	switch s {
	case model.SeveritySuccess:
		return "✔ "
	case model.SeverityError:
		return "✘ "
	case model.SeverityWarning:
		return "! "
	default:
		return ""
	}
}
