package server

import (
	"encoding/json"
	"net/http"
	"time"

	"forge/internal/llm"
	"forge/internal/thread"
)

type threadSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Current      bool      `json:"current"`
	Messages     int       `json:"messages"`
	PendingEdits int       `json:"pending_edits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type threadDetail struct {
	threadSummary
	Conversation []llm.Message `json:"conversation"`
	Tasks        []thread.Task `json:"tasks"`
	EditedFiles  []string      `json:"edited_files"`
}

func summarize(t *thread.Thread, currentID string) threadSummary {
	return threadSummary{
		ID:           t.ID,
		Name:         t.Name,
		Current:      t.ID == currentID,
		Messages:     len(t.Messages),
		PendingEdits: t.PendingEdits(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func detail(t *thread.Thread, currentID string) threadDetail {
	return threadDetail{
		threadSummary: summarize(t, currentID),
		Conversation:  t.Messages,
		Tasks:         t.Tasks,
		EditedFiles:   t.EditedFiles,
	}
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	current, err := s.threads.Current(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	all, err := s.threads.List(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	out := make([]threadSummary, 0, len(all))
	for _, t := range all {
		out = append(out, summarize(t, current.ID))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	t, err := s.threads.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, summarize(t, t.ID))
}

// handleSwitchThread serves PUT /api/threads/current.
func (s *Server) handleSwitchThread(w http.ResponseWriter, r *http.Request) {
	if threadID(r) != "" {
		writeError(w, http.StatusMethodNotAllowed, "use /api/threads/current to switch threads")
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	t, err := s.threads.Switch(r.Context(), req.ID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summarize(t, t.ID))
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	current, err := s.threads.Current(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	t, err := s.lookup(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail(t, current.ID))
}

// lookup loads the thread named in the URL without locking it, so reads
// do not wait for a run in progress.
func (s *Server) lookup(r *http.Request) (*thread.Thread, error) {
	if id := threadID(r); id != "" {
		return s.threads.Get(r.Context(), id)
	}
	return s.threads.Current(r.Context())
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := threadID(r)
	if id == "" {
		current, err := s.threads.Current(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		id = current.ID
	}

	next, err := s.threads.Delete(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": id,
		"current": summarize(next, next.ID),
	})
}
