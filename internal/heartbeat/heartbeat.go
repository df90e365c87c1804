// Package heartbeat keeps the admin session alive with periodic pings.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/logagg"
	"github.com/slok/opstrack/internal/metrics"
	"github.com/slok/opstrack/internal/model"
)

// DefaultInterval is the time between two pings.
const DefaultInterval = 4 * time.Minute

// Pinger knows how to ping the server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LogAppender writes failures into the first open log surface.
type LogAppender interface {
	AppendLog(l logagg.Line)
	FirstOpen(surfaces ...string) (string, bool)
}

// HeartbeatConfig is the configuration of the keepalive heartbeat.
type HeartbeatConfig struct {
	Pinger Pinger
	// Logs is optional, when missing failures are only logged.
	Logs LogAppender
	// Surfaces is the preference order of the log surfaces that receive failures.
	Surfaces []string
	Interval time.Duration
	Clock    clock.WithTicker
	Metrics  metrics.Recorder
	Logger   log.Logger
}

func (c *HeartbeatConfig) defaults() error {
	if c.Pinger == nil {
		return fmt.Errorf("pinger is required")
	}
	if len(c.Surfaces) == 0 {
		c.Surfaces = conventions.HeartbeatSurfaces
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval can't be negative")
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "heartbeat.Heartbeat"})
	return nil
}

// Heartbeat pings the server periodically. It is independent of the task state.
type Heartbeat struct {
	pinger   Pinger
	logs     LogAppender
	surfaces []string
	interval time.Duration
	clock    clock.WithTicker
	metrics  metrics.Recorder
	logger   log.Logger
}

// NewHeartbeat returns a new keepalive heartbeat.
func NewHeartbeat(cfg HeartbeatConfig) (*Heartbeat, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Heartbeat{
		pinger:   cfg.Pinger,
		logs:     cfg.Logs,
		surfaces: cfg.Surfaces,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}, nil
}

// Run pings the server every interval until the context is cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Debugf("Heartbeat started every %s", h.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			h.Beat(ctx)
		}
	}
}

// Beat sends a single ping and reports its failure.
func (h *Heartbeat) Beat(ctx context.Context) error {
	err := h.pinger.Ping(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	h.metrics.IncHeartbeat(err == nil)
	if err == nil {
		h.logger.Debugf("Keepalive ok")
		return nil
	}

	h.logger.Warningf("Keepalive failed: %s", err)
	if h.logs == nil {
		return err
	}

	surface, ok := h.logs.FirstOpen(h.surfaces...)
	if !ok {
		return err
	}
	h.logs.AppendLog(logagg.Line{
		LogSurface: surface,
		Message:    "Keepalive failed",
		Detail:     err.Error(),
		Level:      model.LogLevelError,
	})

	return err
}
