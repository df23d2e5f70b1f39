package ledger

import (
	"errors"
	"fmt"
	"os"
	"time"

	"forge/internal/fileutil"
	"forge/internal/logging"
)

var (
	// ErrNoSuchEdit is reported for an index outside the ledger.
	ErrNoSuchEdit = errors.New("no such edit")
	// ErrAlreadyResolved is reported when accepting or rejecting an edit
	// that is no longer pending.
	ErrAlreadyResolved = errors.New("edit already resolved")
)

// Ledger is the ordered list of staged edits of one thread. It is not safe
// for concurrent use; the owning thread serializes access.
type Ledger []FileEdit

// Outcome is the result of resolving one edit. Err is set when the edit
// could not be resolved; Status is then the unchanged status.
type Outcome struct {
	Index  int    `json:"index"`
	Path   string `json:"path,omitempty"`
	Status Status `json:"status,omitempty"`
	Err    error  `json:"-"`
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Summary aggregates a bulk operation.
type Summary struct {
	Applied  int       `json:"applied"`
	Rejected int       `json:"rejected"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// Stage appends a pending edit and returns its index. The filesystem is not
// touched.
func (l *Ledger) Stage(path string, typ EditType, before, after *string) int {
	*l = append(*l, FileEdit{
		Path:      path,
		Type:      typ,
		Before:    before,
		After:     after,
		Timestamp: time.Now(),
		Status:    Pending,
	})
	logging.Debug("edit staged", "path", path, "type", typ, "index", len(*l)-1)
	return len(*l) - 1
}

// Get returns the edit at index.
func (l Ledger) Get(index int) (FileEdit, bool) {
	if index < 0 || index >= len(l) {
		return FileEdit{}, false
	}
	return l[index], true
}

// Pending returns the indexes of unresolved edits in ledger order.
func (l Ledger) Pending() []int {
	var out []int
	for i := range l {
		if l[i].Status == Pending {
			out = append(out, i)
		}
	}
	return out
}

// Accept writes the edit to disk and marks it applied. A filesystem failure
// leaves the edit pending.
func (l Ledger) Accept(index int) Outcome {
	edit, out := l.resolvable(index)
	if out.Err != nil {
		return out
	}

	if err := apply(edit); err != nil {
		logging.Warn("failed to apply edit", "path", edit.Path, "type", edit.Type, "error", err)
		out.Err = fmt.Errorf("apply %s: %w", edit.Path, err)
		return out
	}

	l.resolve(index, Applied)
	out.Status = Applied
	logging.Info("edit applied", "path", edit.Path, "type", edit.Type, "index", index)
	return out
}

// Reject marks the edit rejected without touching the filesystem.
func (l Ledger) Reject(index int) Outcome {
	edit, out := l.resolvable(index)
	if out.Err != nil {
		return out
	}

	l.resolve(index, Rejected)
	out.Status = Rejected
	logging.Info("edit rejected", "path", edit.Path, "type", edit.Type, "index", index)
	return out
}

// AcceptAll accepts every pending edit in order. Failures do not stop the
// iteration and leave their edits pending.
func (l Ledger) AcceptAll() Summary {
	var s Summary
	for _, i := range l.Pending() {
		out := l.Accept(i)
		s.add(out)
	}
	return s
}

// RejectAll rejects every pending edit.
func (l Ledger) RejectAll() Summary {
	var s Summary
	for _, i := range l.Pending() {
		out := l.Reject(i)
		s.add(out)
	}
	return s
}

func (s *Summary) add(out Outcome) {
	s.Outcomes = append(s.Outcomes, out)
	switch {
	case out.Err != nil:
		s.Failed++
	case out.Status == Applied:
		s.Applied++
	case out.Status == Rejected:
		s.Rejected++
	}
}

func (l Ledger) resolvable(index int) (FileEdit, Outcome) {
	out := Outcome{Index: index}
	if index < 0 || index >= len(l) {
		out.Err = fmt.Errorf("%w: %d", ErrNoSuchEdit, index)
		return FileEdit{}, out
	}
	edit := l[index]
	out.Path = edit.Path
	out.Status = edit.Status
	if edit.Status != Pending {
		out.Err = fmt.Errorf("%w: edit %d is %s", ErrAlreadyResolved, index, edit.Status)
	}
	return edit, out
}

func (l Ledger) resolve(index int, status Status) {
	now := time.Now()
	l[index].Status = status
	l[index].ResolvedAt = &now
}

// apply performs the mutation. The content written is the After captured at
// staging time, even if the file changed since.
func apply(edit FileEdit) error {
	switch edit.Type {
	case Delete:
		if err := os.Remove(edit.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	case Create, Modify:
		perm := fileutil.FileMode(edit.Path, 0644)
		return fileutil.WriteFileAll(edit.Path, []byte(deref(edit.After)), perm)
	default:
		return fmt.Errorf("unknown edit type %q", edit.Type)
	}
}
