package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"forge/internal/ledger"
	"forge/internal/thread"
)

type editView struct {
	Index   int             `json:"index"`
	Path    string          `json:"path"`
	Type    ledger.EditType `json:"type"`
	Status  ledger.Status   `json:"status"`
	Summary string          `json:"summary"`
	Added   int             `json:"added"`
	Removed int             `json:"removed"`
	Diff    string          `json:"diff,omitempty"`
}

func (s *Server) handleListEdits(w http.ResponseWriter, r *http.Request) {
	t, err := s.lookup(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	edits := t.Edits

	withDiff := r.URL.Query().Get("diff") == "true"
	out := make([]editView, 0, len(edits))
	for i := range edits {
		e := &edits[i]
		added, removed := e.Stats()
		v := editView{
			Index:   i,
			Path:    e.Path,
			Type:    e.Type,
			Status:  e.Status,
			Summary: e.Summary(),
			Added:   added,
			Removed: removed,
		}
		if withDiff {
			v.Diff = e.Preview(s.workspace.Rel(e.Path))
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	s.resolveOne(w, r, (*thread.Handle).Accept)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolveOne(w, r, (*thread.Handle).Reject)
}

func (s *Server) resolveOne(w http.ResponseWriter, r *http.Request, resolve func(*thread.Handle, int) ledger.Outcome) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edit index")
		return
	}

	h, err := s.threads.Acquire(r.Context(), threadID(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer h.Release()

	out := resolve(h, index)
	switch {
	case out.OK():
		writeJSON(w, http.StatusOK, out)
	case errors.Is(out.Err, ledger.ErrNoSuchEdit):
		writeError(w, http.StatusNotFound, out.Err.Error())
	case errors.Is(out.Err, ledger.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, out.Err.Error())
	default:
		writeError(w, http.StatusInternalServerError, out.Err.Error())
	}
}

func (s *Server) handleAcceptAll(w http.ResponseWriter, r *http.Request) {
	s.resolveAll(w, r, (*thread.Handle).AcceptAll)
}

func (s *Server) handleRejectAll(w http.ResponseWriter, r *http.Request) {
	s.resolveAll(w, r, (*thread.Handle).RejectAll)
}

func (s *Server) resolveAll(w http.ResponseWriter, r *http.Request, resolve func(*thread.Handle) ledger.Summary) {
	h, err := s.threads.Acquire(r.Context(), threadID(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer h.Release()

	writeJSON(w, http.StatusOK, resolve(h))
}
