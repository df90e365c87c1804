package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/opstrack/internal/model"
)

// CompletionFunc is called with the final task after a successful terminal sequence.
type CompletionFunc func(ctx context.Context, t model.Task)

// Registration describes a task to poll.
type Registration struct {
	TaskID        string
	Operation     model.OperationType
	LogSurface    string
	StatusSurface string
}

func (r Registration) validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	if err := r.Operation.Validate(); err != nil {
		return err
	}
	if r.LogSurface == "" || r.StatusSurface == "" {
		return fmt.Errorf("log and status surfaces are required: %w", model.ErrNotValid)
	}
	return nil
}

// poll is a live PollRegistry entry.
type poll struct {
	Registration

	// ctx is cancelled when the entry is unregistered, cancelling in-flight requests.
	ctx    context.Context
	cancel context.CancelFunc
	// parent is the context the task was started with.
	parent context.Context
	handle *Handle
	task   model.Task
}

type slot struct {
	taskID    string
	launching bool
}

// Manager owns every piece of shared task state: the poll registry, the log cursors,
// the per operation type slots and the completion callbacks. All the mutations go
// through its methods.
type Manager struct {
	polls       map[string]*poll
	cursors     map[string]int
	slots       map[model.OperationType]slot
	completions map[model.OperationType]CompletionFunc
	mu          sync.Mutex
}

// NewManager returns an empty task manager.
func NewManager() *Manager {
	return &Manager{
		polls:       map[string]*poll{},
		cursors:     map[string]int{},
		slots:       map[model.OperationType]slot{},
		completions: map[model.OperationType]CompletionFunc{},
	}
}

// OnComplete sets the completion callback of an operation type, replacing the previous one.
func (m *Manager) OnComplete(op model.OperationType, fn CompletionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fn == nil {
		delete(m.completions, op)
		return
	}
	m.completions[op] = fn
}

func (m *Manager) completion(op model.OperationType) CompletionFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completions[op]
}

// register stores a poll, returns false if the task already has one.
func (m *Manager) register(p *poll) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.polls[p.TaskID]; ok {
		return false
	}
	m.polls[p.TaskID] = p
	return true
}

// unregister removes the poll only if it is still the registered one and cancels its
// context. Only one caller gets true for a given poll.
func (m *Manager) unregister(p *poll) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.polls[p.TaskID] != p {
		return false
	}
	delete(m.polls, p.TaskID)
	delete(m.cursors, p.TaskID)
	p.cancel()
	return true
}

// isCurrent returns true while the poll is the registered one for its task.
func (m *Manager) isCurrent(p *poll) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls[p.TaskID] == p
}

func (m *Manager) get(taskID string) (*poll, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[taskID]
	return p, ok
}

// Unregister stops tracking a task without running its terminal sequence. Returns false
// if the task was not registered.
func (m *Manager) Unregister(taskID string) bool {
	p, ok := m.get(taskID)
	if !ok {
		return false
	}
	return m.unregister(p)
}

// IsActive returns true while the task is being polled.
func (m *Manager) IsActive(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.polls[taskID]
	return ok
}

// ActiveTasks returns the IDs of the tasks being polled.
func (m *Manager) ActiveTasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.polls))
	for id := range m.polls {
		ids = append(ids, id)
	}
	return ids
}

// CursorFor returns how many log entries of the task have already been displayed.
func (m *Manager) CursorFor(taskID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[taskID]
}

// ResetCursor sets the cursor of a task to zero.
func (m *Manager) ResetCursor(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[taskID] = 0
}

// AdvanceCursor moves the cursor forward to n. Cursors never go back.
func (m *Manager) AdvanceCursor(taskID string, n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n > m.cursors[taskID] {
		m.cursors[taskID] = n
	}
	return m.cursors[taskID]
}

// ReserveSlot marks the operation type as launching. It fails with
// model.ErrOperationInProgress if a task of the same type is launching or polling.
func (m *Manager) ReserveSlot(op model.OperationType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slotBusyLocked(op) {
		return fmt.Errorf("%s: %w", op, model.ErrOperationInProgress)
	}
	m.slots[op] = slot{launching: true}
	return nil
}

// SetSlot stores the task as the current one of its operation type.
func (m *Manager) SetSlot(op model.OperationType, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[op] = slot{taskID: taskID}
}

// ReleaseSlot empties a slot reserved for a launch that did not produce a task.
func (m *Manager) ReleaseSlot(op model.OperationType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slots[op].launching {
		delete(m.slots, op)
	}
}

// ClearSlot empties the slot only if it still holds the task.
func (m *Manager) ClearSlot(op model.OperationType, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[op]; ok && s.taskID == taskID {
		delete(m.slots, op)
	}
}

// Slot returns the current task ID of an operation type.
func (m *Manager) Slot(op model.OperationType) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[op]
	if !ok || s.taskID == "" {
		return "", false
	}
	return s.taskID, true
}

// SlotBusy returns true if the operation type has a task launching or polling.
func (m *Manager) SlotBusy(op model.OperationType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotBusyLocked(op)
}

func (m *Manager) slotBusyLocked(op model.OperationType) bool {
	s, ok := m.slots[op]
	if !ok {
		return false
	}
	if s.launching {
		return true
	}
	_, polling := m.polls[s.taskID]
	return s.taskID != "" && polling
}
