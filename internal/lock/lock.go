// Package lock disables a fixed catalogue of interactive controls while a long-running
// operation is in flight. A safety timer releases the lock if nothing else does.
package lock

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/metrics"
)

// DefaultSafetyTimeout is the time after which a held lock is force released.
const DefaultSafetyTimeout = 5 * time.Minute

// InteractionLockConfig is the configuration of the interaction lock.
type InteractionLockConfig struct {
	// Controls is the catalogue of controls handled by the lock.
	Controls      []Control
	SafetyTimeout time.Duration
	Clock         clock.Clock
	Metrics       metrics.Recorder
	Logger        log.Logger
}

func (c *InteractionLockConfig) defaults() error {
	names := map[string]bool{}
	for _, ctrl := range c.Controls {
		if ctrl == nil {
			return fmt.Errorf("nil control")
		}
		if names[ctrl.Name()] {
			return fmt.Errorf("duplicated control %q", ctrl.Name())
		}
		names[ctrl.Name()] = true
	}
	if c.SafetyTimeout == 0 {
		c.SafetyTimeout = DefaultSafetyTimeout
	}
	if c.SafetyTimeout < 0 {
		return fmt.Errorf("safety timeout can't be negative")
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "lock.InteractionLock"})
	return nil
}

type safetyTimer struct {
	timer clock.Timer
	stop  chan struct{}
}

// InteractionLock disables and enables the catalogued controls. Acquire and Release
// are idempotent, the lock is not reference counted.
type InteractionLock struct {
	controls      []Control
	safetyTimeout time.Duration
	clock         clock.Clock
	metrics       metrics.Recorder
	logger        log.Logger

	locked bool
	// safety is only set while locked.
	safety *safetyTimer
	mu     sync.Mutex
}

// NewInteractionLock returns a new unlocked interaction lock.
func NewInteractionLock(cfg InteractionLockConfig) (*InteractionLock, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &InteractionLock{
		controls:      cfg.Controls,
		safetyTimeout: cfg.SafetyTimeout,
		clock:         cfg.Clock,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}, nil
}

// Acquire disables every control and arms the safety timer. If already locked only the
// safety timer is reset.
func (l *InteractionLock) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		l.stopSafetyLocked()
		l.armSafetyLocked()
		l.logger.Debugf("Interaction already locked, safety timer reset")
		return
	}

	for _, c := range l.controls {
		c.SetEnabled(false)
		if c.Kind() == ControlKindLink {
			c.SetSuppressDefault(true)
		}
	}
	l.locked = true
	l.armSafetyLocked()
	l.metrics.SetInteractionLocked(true)
	l.logger.Debugf("Interaction locked (%d controls)", len(l.controls))
}

// Release stops the safety timer and enables every control. No-op when unlocked.
func (l *InteractionLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return
	}
	l.stopSafetyLocked()
	l.releaseLocked()
}

// IsLocked returns the lock state.
func (l *InteractionLock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

func (l *InteractionLock) releaseLocked() {
	for _, c := range l.controls {
		c.SetEnabled(true)
		if c.Kind() == ControlKindLink {
			c.SetSuppressDefault(false)
		}
	}
	l.locked = false
	l.metrics.SetInteractionLocked(false)
	l.logger.Debugf("Interaction unlocked")
}

func (l *InteractionLock) armSafetyLocked() {
	s := &safetyTimer{
		timer: l.clock.NewTimer(l.safetyTimeout),
		stop:  make(chan struct{}),
	}
	l.safety = s

	go func() {
		select {
		case <-s.timer.C():
			l.safetyRelease(s)
		case <-s.stop:
		}
	}()
}

func (l *InteractionLock) stopSafetyLocked() {
	if l.safety == nil {
		return
	}
	l.safety.timer.Stop()
	close(l.safety.stop)
	l.safety = nil
}

func (l *InteractionLock) safetyRelease(s *safetyTimer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A newer timer replaced this one.
	if l.safety != s || !l.locked {
		return
	}

	l.safety = nil
	l.logger.Warningf("Interaction lock held for more than %s, releasing", l.safetyTimeout)
	l.metrics.IncLockSafetyRelease()
	l.releaseLocked()
}
