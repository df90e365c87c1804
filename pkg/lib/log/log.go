// Package log exposes the logger used by the opstrack SDK.
//
// The SDK is silent by default ([Noop]). [NewLogrus] gives the same logrus backed logger
// the opstrack CLI uses, any other backend only needs to implement [Logger]:
//
//	entry := logrus.NewEntry(logrus.New())
//	client, err := lib.New(ctx, lib.Config{ServerURL: url, Logger: log.NewLogrus(entry)})
//
// Task tracking lines carry `task-id` and `operation` values.
package log

import (
	"github.com/sirupsen/logrus"

	"github.com/slok/opstrack/internal/log"
	loglogrus "github.com/slok/opstrack/internal/log/logrus"
)

// Logger is the logger accepted by [lib.Config].
type Logger = log.Logger

// Kv are structured logging key-value pairs.
type Kv = log.Kv

// Noop discards everything, it's the SDK default.
var Noop = log.Noop

// NewLogrus returns a Logger backed by a logrus entry.
func NewLogrus(e *logrus.Entry) Logger {
	return loglogrus.NewLogrus(e)
}
