// Package logagg appends task progress lines to log surfaces and mirrors the latest
// message into status surfaces.
package logagg

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/printer"
)

const timeLayout = "15:04:05"

// AggregatorConfig is the configuration of the log aggregator.
type AggregatorConfig struct {
	Reporter printer.Reporter
	Clock    clock.PassiveClock
	Logger   log.Logger
}

func (c *AggregatorConfig) defaults() error {
	if c.Reporter == nil {
		return fmt.Errorf("reporter is required")
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "logagg.Aggregator"})
	return nil
}

// Line is a single message to append.
type Line struct {
	LogSurface string
	Message    string
	Detail     string
	Level      model.LogLevel
	// StatusSurface is optional, when set it is overwritten with the message.
	StatusSurface string
	// ServerTimestamp is optional, when empty the local time is used.
	ServerTimestamp string
}

// Aggregator writes ordered log lines through a reporter. It never reorders lines: they
// are written in call order.
type Aggregator struct {
	reporter printer.Reporter
	clock    clock.PassiveClock
	logger   log.Logger

	open map[string]bool
	mu   sync.Mutex
}

// NewAggregator returns a new log aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Aggregator{
		reporter: cfg.Reporter,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		open:     map[string]bool{},
	}, nil
}

// Reset clears a log surface and marks it as open.
func (a *Aggregator) Reset(surface string) {
	a.mu.Lock()
	a.open[surface] = true
	a.mu.Unlock()

	a.reporter.Clear(surface)
}

// IsOpen returns true if the surface has been used.
func (a *Aggregator) IsOpen(surface string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open[surface]
}

// FirstOpen returns the first open surface in preference order.
func (a *Aggregator) FirstOpen(surfaces ...string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range surfaces {
		if a.open[s] {
			return s, true
		}
	}
	return "", false
}

// AppendLog formats and appends a line to its log surface, optionally mirroring the
// message into a status surface.
func (a *Aggregator) AppendLog(l Line) {
	a.mu.Lock()
	a.open[l.LogSurface] = true
	a.mu.Unlock()

	level := l.Level
	if level == "" {
		level = model.LogLevelInfo
	}

	a.reporter.Append(l.LogSurface, a.FormatLine(l), level.Severity())
	if l.StatusSurface != "" {
		a.reporter.Display(l.StatusSurface, l.Message, level.Severity())
	}
}

// FormatLine returns the display text of a line: `[time] message - detail`.
func (a *Aggregator) FormatLine(l Line) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(a.timestamp(l.ServerTimestamp))
	b.WriteString("] ")
	b.WriteString(l.Message)
	if l.Detail != "" {
		b.WriteString(" - ")
		b.WriteString(l.Detail)
	}
	return b.String()
}

func (a *Aggregator) timestamp(server string) string {
	if server == "" {
		return a.clock.Now().Format(timeLayout)
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, server); err == nil {
			return t.Format(timeLayout)
		}
	}

	return server
}
