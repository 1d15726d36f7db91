// Package task records workflow runs: each run gets a record holding its
// state (processing, completed, error), its result payload, and the errors
// accumulated along the way. Records expire after a TTL so abandoned tasks
// do not pile up.
package task

import (
	"errors"
	"time"
)

// State is a task's lifecycle state.
type State string

const (
	// StateProcessing means the workflow is still running.
	StateProcessing State = "processing"
	// StateCompleted means the workflow finished and Result holds the
	// payload.
	StateCompleted State = "completed"
	// StateError means the workflow failed fatally; Errors holds details.
	StateError State = "error"
)

// Kind identifies which workflow produced the task.
type Kind string

const (
	// KindSummary is the file summarization workflow.
	KindSummary Kind = "summary"
	// KindStory is the repository story workflow.
	KindStory Kind = "story"
)

// Record is one task's stored state.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`
	Result    string    `json:"result,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record's TTL has passed at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Store errors.
var (
	// ErrNotFound indicates no record exists for the ID (or it expired).
	ErrNotFound = errors.New("task not found")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("task store is closed")
)

// Store persists task records. Implementations are safe for concurrent
// use.
type Store interface {
	// Create inserts a new record. The record's timestamps must be set by
	// the caller (use NewRecord).
	Create(rec Record) error

	// Get returns the record for id, or ErrNotFound. Expired records are
	// reported as not found.
	Get(id string) (Record, error)

	// Update overwrites the record for id, refreshing UpdatedAt.
	// Returns ErrNotFound if no record exists.
	Update(rec Record) error

	// Delete removes the record for id. Deleting a missing record is not
	// an error.
	Delete(id string) error

	// PurgeExpired removes all expired records, returning how many were
	// deleted.
	PurgeExpired() (int, error)

	// Close releases the store's resources.
	Close() error
}

// DefaultTTL is how long task records live unless configured otherwise.
const DefaultTTL = time.Hour

// NewRecord creates a processing-state record with timestamps and expiry
// set.
func NewRecord(id string, kind Kind, ttl time.Duration) Record {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	return Record{
		ID:        id,
		Kind:      kind,
		State:     StateProcessing,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
