package printer

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/slok/opstrack/internal/model"
)

// JSONReporter writes every surface event as a JSON line, so the output can be consumed
// by other programs.
type JSONReporter struct {
	enc *json.Encoder
	mu  sync.Mutex
}

// NewJSONReporter returns a new JSON lines reporter.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

type surfaceEvent struct {
	Kind     string `json:"kind"`
	Surface  string `json:"surface"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (j *JSONReporter) Display(surface, message string, severity model.Severity) {
	j.write(surfaceEvent{Kind: "status", Surface: surface, Severity: string(severity), Message: message})
}

func (j *JSONReporter) Append(surface, line string, severity model.Severity) {
	j.write(surfaceEvent{Kind: "log", Surface: surface, Severity: string(severity), Message: line})
}

func (j *JSONReporter) Clear(surface string) {
	j.write(surfaceEvent{Kind: "clear", Surface: surface})
}

func (j *JSONReporter) write(e surfaceEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(e)
}
