package printer

import (
	"sync"

	"github.com/slok/opstrack/internal/model"
)

// StatusLine is the content of a status surface.
type StatusLine struct {
	Message  string
	Severity model.Severity
}

// MemoryReporter keeps every surface in memory. Useful for tests and for embedding
// the task runtime in other programs.
type MemoryReporter struct {
	logs   map[string][]string
	status map[string]StatusLine
	clears map[string]int
	mu     sync.Mutex
}

// NewMemoryReporter returns a new in-memory reporter.
func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{
		logs:   map[string][]string{},
		status: map[string]StatusLine{},
		clears: map[string]int{},
	}
}

func (m *MemoryReporter) Display(surface, message string, severity model.Severity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[surface] = StatusLine{Message: message, Severity: severity}
}

func (m *MemoryReporter) Append(surface, line string, _ model.Severity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[surface] = append(m.logs[surface], line)
}

func (m *MemoryReporter) Clear(surface string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, surface)
	delete(m.status, surface)
	m.clears[surface]++
}

// Lines returns a copy of the lines of a log surface.
func (m *MemoryReporter) Lines(surface string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logs[surface]...)
}

// Status returns the current content of a status surface.
func (m *MemoryReporter) Status(surface string) (StatusLine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[surface]
	return s, ok
}

// Clears returns how many times a surface has been cleared.
func (m *MemoryReporter) Clears(surface string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears[surface]
}
