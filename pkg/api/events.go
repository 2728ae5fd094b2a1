package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bank-dashboard/pkg/store"

	"go.uber.org/zap"
)

// handleEvents streams the dashboard state as server-sent events: the
// current state on connect, then a fresh snapshot after every change until
// the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's WriteTimeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	changed := make(chan struct{}, 1)
	unsubscribe := s.store.Subscribe(func(store.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		if err := writeEvent(w, rc, s.currentState()); err != nil {
			s.logger.Debug("event stream closed", zap.Error(err))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-changed:
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, state stateResponse) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
