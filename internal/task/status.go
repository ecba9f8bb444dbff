package task

import "time"

// Status represents the status of a generation task
type Status string

const (
	StatusPending      Status = "pending"
	StatusClassifying  Status = "classifying"
	StatusProvisioning Status = "provisioning"
	StatusGenerating   Status = "generating"
	StatusExtracting   Status = "extracting"
	StatusCommitting   Status = "committing"
	StatusSaving       Status = "saving"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Result is the payload of a completed generation task.
type Result struct {
	RepoID       int64  `json:"repo_id,omitempty"`
	RepoName     string `json:"repo_name"`
	URL          string `json:"url"`
	CommitURL    string `json:"commit_url"`
	FilesCreated int    `json:"files_created"`
	Archetype    string `json:"archetype"`
	Dangling     bool   `json:"dangling,omitempty"`
}

// Task represents one website generation request
type Task struct {
	ID             string    `json:"task_id"`
	IdempotencyKey string    `json:"-"`
	Prompt         string    `json:"prompt"`
	RepoName       string    `json:"repo_name,omitempty"`
	Company        string    `json:"company,omitempty"`
	TypeHint       string    `json:"website_type,omitempty"`
	UserID         string    `json:"-"`
	Status         Status    `json:"status"`
	Message        string    `json:"message"`
	Result         *Result   `json:"result,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateStatus updates the task status and message
func (t *Task) UpdateStatus(status Status, message string) {
	t.Status = status
	t.Message = message
	t.UpdatedAt = time.Now()
}

// SetError sets the task error and status to failed
func (t *Task) SetError(err error) {
	t.Status = StatusFailed
	t.Error = err.Error()
	t.Message = "Task failed"
	t.UpdatedAt = time.Now()
}

// IsTerminal returns true if the task is in a terminal state
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// snapshot returns an independent copy safe to read without the manager's
// lock.
func (t *Task) snapshot() *Task {
	cp := *t
	if t.Result != nil {
		r := *t.Result
		cp.Result = &r
	}
	return &cp
}
