package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/fxastore"
	"github.com/florianilch/lockwise/internal/settings"
)

// StateResponse is the public view of the account state. Secrets are reduced
// to presence flags.
type StateResponse struct {
	DisplayState *action.DisplayState `json:"display_state,omitempty"`
	Profile      *action.ProfileInfo  `json:"profile,omitempty"`
	ScopedKey    bool                 `json:"scoped_key"`
	OAuth        bool                 `json:"oauth"`
}

func newStateResponse(snap fxastore.Snapshot) StateResponse {
	return StateResponse{
		DisplayState: snap.DisplayState,
		Profile:      snap.ProfileInfo,
		ScopedKey:    snap.ScopedKey != nil,
		OAuth:        snap.OAuthInfo != nil,
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, newStateResponse(s.state.Snapshot()), http.StatusOK)
}

// handleEvents streams the state as SSE "state" events. Publications arriving
// faster than the client reads are coalesced; the latest state is always sent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "streaming unsupported", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	changed := make(chan struct{}, 1)
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	unsubscribes := []func(){
		s.state.DisplayState(func(action.DisplayState) { notify() }),
		s.state.ScopedKey(func(string) { notify() }),
		s.state.ProfileInfo(func(action.ProfileInfo) { notify() }),
		s.state.OAuthInfo(func(action.OAuthInfo) { notify() }),
	}
	defer func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}()

	// Subscribing replays current values; the snapshot below already covers them.
	select {
	case <-changed:
	default:
	}
	if err := sse.WriteEvent("state", newStateResponse(s.state.Snapshot())); err != nil {
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if err := sse.WriteEvent("state", newStateResponse(s.state.Snapshot())); err != nil {
				slog.DebugContext(ctx, "event stream closed", "error", err)
				return
			}
		case <-heartbeat.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(ctx, w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(ctx, w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := action.Decode(body)
	if err != nil {
		slog.InfoContext(ctx, "rejected action", "error", err)
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}

	s.dispatcher.Dispatch(a)
	writeJSON(ctx, w, AcceptedResponse{Type: a.Type()}, http.StatusAccepted)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, s.settings.Rows(), http.StatusOK)
}

func (s *Server) handleSettingsTap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := settings.RowID(r.PathValue("row"))

	known := slices.ContainsFunc(s.settings.Rows(), func(row settings.Row) bool { return row.ID == id })
	if !known {
		writeJSONError(ctx, w, "unknown settings row", http.StatusNotFound)
		return
	}

	if err := s.settings.Tap(ctx, id); err != nil {
		slog.ErrorContext(ctx, "settings tap failed", "row", id, "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, s.settings.Rows(), http.StatusOK)
}
