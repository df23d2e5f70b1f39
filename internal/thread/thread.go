// Package thread persists conversations. A Thread owns its messages, tasks
// and edit ledger; a Store holds every thread plus a pointer to the current
// one, and the Manager keeps at least one thread in existence.
package thread

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"forge/internal/ledger"
	"forge/internal/llm"
)

// DefaultName is given to threads created without a name. The first user
// message renames them.
const DefaultName = "New thread"

const maxNameLen = 48

// Thread is the aggregate root of one conversation.
type Thread struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Messages    []llm.Message `json:"messages"`
	Tasks       []Task        `json:"tasks"`
	Edits       ledger.Ledger `json:"edits"`
	EditedFiles []string      `json:"edited_files"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// New returns an empty thread with a fresh id.
func New(name string) *Thread {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	now := time.Now()
	return &Thread{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy whose slices can be mutated without affecting t.
func (t *Thread) Clone() *Thread {
	c := *t
	c.Messages = slices.Clone(t.Messages)
	c.Tasks = slices.Clone(t.Tasks)
	c.Edits = slices.Clone(t.Edits)
	c.EditedFiles = slices.Clone(t.EditedFiles)
	return &c
}

// Task returns the task with the given id.
func (t *Thread) Task(id string) (*Task, bool) {
	for i := range t.Tasks {
		if t.Tasks[i].ID == id {
			return &t.Tasks[i], true
		}
	}
	return nil, false
}

// PendingEdits counts edits awaiting review.
func (t *Thread) PendingEdits() int {
	return len(t.Edits.Pending())
}

func (t *Thread) appendMessage(m llm.Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	t.Messages = append(t.Messages, m)
	if t.Name == DefaultName && m.Role == llm.RoleUser {
		if name := titleFrom(m.Content); name != "" {
			t.Name = name
		}
	}
}

func (t *Thread) recordEditedFile(rel string) {
	if !slices.Contains(t.EditedFiles, rel) {
		t.EditedFiles = append(t.EditedFiles, rel)
	}
}

func (t *Thread) touch() {
	t.UpdatedAt = time.Now()
}

// titleFrom derives a thread name from the first line of a message.
func titleFrom(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	line = strings.Join(strings.Fields(line), " ")
	if utf8.RuneCountInString(line) <= maxNameLen {
		return line
	}
	r := []rune(line)
	return strings.TrimSpace(string(r[:maxNameLen-3])) + "..."
}
