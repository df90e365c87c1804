package model

import "strings"

// LogLevel is the level of a task log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// ParseLogLevel parses a server log level. Unknown values are treated as info.
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LogLevelWarning:
		return LogLevelWarning
	case LogLevelError:
		return LogLevelError
	case LogLevelSuccess:
		return LogLevelSuccess
	default:
		return LogLevelInfo
	}
}

// Severity returns the display severity for the log level.
func (l LogLevel) Severity() Severity {
	switch l {
	case LogLevelWarning:
		return SeverityWarning
	case LogLevelError:
		return SeverityError
	case LogLevelSuccess:
		return SeveritySuccess
	default:
		return SeverityInfo
	}
}

// LogEntry is a single progress message of a task. Entries are immutable and their
// order is assigned by the server.
type LogEntry struct {
	Timestamp string
	Level     LogLevel
	Message   string
	Detail    string
}

// Severity is the style used to render a message on a surface.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// SeverityFromSuccess maps a tri-state outcome to a severity: nil is info.
func SeverityFromSuccess(success *bool) Severity {
	switch {
	case success == nil:
		return SeverityInfo
	case *success:
		return SeveritySuccess
	default:
		return SeverityError
	}
}
