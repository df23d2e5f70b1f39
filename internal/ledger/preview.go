package ledger

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Preview renders a line diff of the edit's Before and After, labelled with
// label (usually the workspace-relative path).
func (e *FileEdit) Preview(label string) string {
	if label == "" {
		label = e.Path
	}

	var b strings.Builder
	from, to := "a/"+label, "b/"+label
	switch e.Type {
	case Create:
		from = "/dev/null"
	case Delete:
		to = "/dev/null"
	}
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", from, to)

	dmp := diffmatchpatch.New()
	a, bb, lines := dmp.DiffLinesToChars(deref(e.Before), deref(e.After))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, bb, false), lines)

	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Stats counts added and removed lines.
func (e *FileEdit) Stats() (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(deref(e.Before), deref(e.After))
	for _, d := range dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines) {
		n := strings.Count(d.Text, "\n")
		if !strings.HasSuffix(d.Text, "\n") {
			n++
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}
