package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"forge/internal/logging"
)

// handleSendMessage runs the agent on a thread and streams every event as
// a server-sent event named after its kind. A failed run ends with an
// "error" event.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev, err := range s.controller.Send(r.Context(), threadID(r), req.Message) {
		if err != nil {
			if r.Context().Err() == nil {
				writeSSE(w, "error", map[string]string{"error": err.Error()})
				flusher.Flush()
			}
			return
		}
		writeSSE(w, string(ev.Kind), ev)
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Warn("failed to encode event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// wsRequest is one client frame on the websocket.
type wsRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleWebSocket accepts run requests as JSON frames and answers with the
// run's events, one JSON text frame each. Runs on a connection are handled
// one at a time in arrival order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		logging.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	requests := make(chan wsRequest, 8)
	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		defer close(requests)
		for {
			var req wsRequest
			_, data, err := conn.Read(ctx)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Message) == "" {
				if err := writeFrame(ctx, conn, wsError{Type: "error", Error: "invalid request"}); err != nil {
					return err
				}
				continue
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for req := range requests {
			if err := s.streamRun(ctx, conn, req); err != nil {
				return err
			}
		}
		return nil
	})

	err = g.Wait()
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
		logging.Debug("websocket closed by client")
	case err != nil && !errors.Is(err, context.Canceled):
		logging.Warn("websocket ended", "error", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// streamRun writes one run's events. Only write failures are returned; a
// failed run is reported to the client as an error frame.
func (s *Server) streamRun(ctx context.Context, conn *websocket.Conn, req wsRequest) error {
	for ev, err := range s.controller.Send(ctx, req.ThreadID, req.Message) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return writeFrame(ctx, conn, wsError{Type: "error", Error: err.Error()})
		}
		if err := writeFrame(ctx, conn, ev); err != nil {
			return err
		}
	}
	return nil
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
