package task

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StatusCallback is a function that is called when a task status changes
type StatusCallback func(task *Task)

// Manager tracks in-flight and finished tasks in memory.
type Manager struct {
	tasks           map[string]*Task
	byKey           map[string]string
	mu              sync.RWMutex
	statusCallbacks map[string][]StatusCallback
	callbackMu      sync.RWMutex
}

// NewManager creates a new task manager
func NewManager() *Manager {
	return &Manager{
		tasks:           make(map[string]*Task),
		byKey:           make(map[string]string),
		statusCallbacks: make(map[string][]StatusCallback),
	}
}

// IdempotencyKey buckets identical submissions to the minute so a
// double-click cannot provision two repositories with colliding names.
func IdempotencyKey(userID, prompt string, now time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", userID, prompt, now.Unix()/60))
	return hex.EncodeToString(sum[:])
}

// CreateTask creates a new task, or returns the existing one when the
// idempotency key matches a prior submission.
func (m *Manager) CreateTask(userID, prompt, repoName, company, typeHint string) (*Task, bool) {
	key := IdempotencyKey(userID, prompt, time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[key]; ok {
		if existing, ok := m.tasks[id]; ok {
			return existing.snapshot(), false
		}
	}

	task := &Task{
		ID:             uuid.New().String(),
		IdempotencyKey: key,
		Prompt:         prompt,
		RepoName:       repoName,
		Company:        company,
		TypeHint:       typeHint,
		UserID:         userID,
		Status:         StatusPending,
		Message:        "Task created",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.tasks[task.ID] = task
	m.byKey[key] = task.ID

	return task.snapshot(), true
}

// GetTask retrieves a task by ID. The returned task is a snapshot; the
// manager keeps the only mutable copy.
func (m *Manager) GetTask(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", id)
	}

	return task.snapshot(), nil
}

// UpdateTask updates a task's status
func (m *Manager) UpdateTask(id string, status Status, message string) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}

	task.UpdateStatus(status, message)
	snap := task.snapshot()
	m.mu.Unlock()

	m.notifyCallbacks(snap)

	return nil
}

// SetTaskError sets a task's error
func (m *Manager) SetTaskError(id string, err error) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}

	task.SetError(err)
	snap := task.snapshot()
	m.mu.Unlock()

	m.notifyCallbacks(snap)

	return nil
}

// SetTaskResult attaches the pipeline result and marks the task completed.
func (m *Manager) SetTaskResult(id string, result *Result) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}

	task.Result = result
	task.UpdateStatus(StatusCompleted, "Website generated and published")
	snap := task.snapshot()
	m.mu.Unlock()

	m.notifyCallbacks(snap)

	return nil
}

// SubscribeToTask subscribes to task status updates
func (m *Manager) SubscribeToTask(taskID string, callback StatusCallback) error {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()

	m.mu.RLock()
	_, ok := m.tasks[taskID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	m.statusCallbacks[taskID] = append(m.statusCallbacks[taskID], callback)
	return nil
}

// notifyCallbacks notifies all callbacks for a task. Callers must pass a
// snapshot, never the managed copy: callbacks run in their own goroutines and
// marshal the task while the pipeline keeps mutating the original.
func (m *Manager) notifyCallbacks(task *Task) {
	m.callbackMu.RLock()
	callbacks, ok := m.statusCallbacks[task.ID]
	m.callbackMu.RUnlock()

	if !ok {
		return
	}

	for _, callback := range callbacks {
		go callback(task)
	}

	if task.IsTerminal() {
		m.callbackMu.Lock()
		delete(m.statusCallbacks, task.ID)
		m.callbackMu.Unlock()
	}
}
