// Package ledger holds the staged file mutations of a thread. An edit is
// proposed as pending and resolved exactly once, by accepting it (the file
// changes on disk) or rejecting it (nothing happens).
package ledger

import (
	"time"
)

// EditType is the kind of file mutation.
type EditType string

const (
	Create EditType = "create"
	Modify EditType = "modify"
	Delete EditType = "delete"
)

// Status is the lifecycle state of a FileEdit.
type Status string

const (
	Pending  Status = "pending"
	Applied  Status = "applied"
	Rejected Status = "rejected"
)

// FileEdit is one staged mutation. Before is the file content at staging
// time (nil when the file did not exist), After the proposed content (nil
// for deletes).
type FileEdit struct {
	Path       string     `json:"path"`
	Type       EditType   `json:"type"`
	Before     *string    `json:"before,omitempty"`
	After      *string    `json:"after,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Status     Status     `json:"status"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Summary returns a one-line description of the edit.
func (e *FileEdit) Summary() string {
	switch e.Type {
	case Create:
		return "create " + e.Path
	case Delete:
		return "delete " + e.Path
	default:
		return "modify " + e.Path
	}
}

// SizeChange returns the size difference in bytes.
func (e *FileEdit) SizeChange() int {
	return len(deref(e.After)) - len(deref(e.Before))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
