package lock

import "sync"

// ControlKind is the kind of an interactive control.
type ControlKind string

const (
	ControlKindButton   ControlKind = "button"
	ControlKindCheckbox ControlKind = "checkbox"
	ControlKindLink     ControlKind = "link"
)

// Control is an interactive control that can be disabled while an operation runs.
type Control interface {
	Name() string
	Kind() ControlKind
	SetEnabled(enabled bool)
	// SetSuppressDefault is only used for link controls.
	SetSuppressDefault(suppress bool)
}

// Gate is an in-memory control. Callers check Enabled before acting.
type Gate struct {
	name            string
	kind            ControlKind
	enabled         bool
	suppressDefault bool
	mu              sync.RWMutex
}

// NewGate returns a new enabled gate.
func NewGate(name string, kind ControlKind) *Gate {
	return &Gate{name: name, kind: kind, enabled: true}
}

func (g *Gate) Name() string      { return g.name }
func (g *Gate) Kind() ControlKind { return g.kind }

func (g *Gate) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}

func (g *Gate) SetSuppressDefault(suppress bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suppressDefault = suppress
}

// Enabled returns true when the control accepts interaction.
func (g *Gate) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

// DefaultSuppressed returns true when the default action of the control is suppressed.
func (g *Gate) DefaultSuppressed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.suppressDefault
}
