package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"bucks/internal/core"
	"bucks/internal/watch"
)

// handleEvents streams the live fund graph as server-sent events. All
// connected clients share one underlying query through the registry;
// the keep-warm grace period spares the join on quick reconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := watch.Acquire(s.registry, "funds-complete", func(ctx context.Context) ([]core.FundWithMovements, error) {
		return s.funds.ListFundsComplete(ctx)
	})
	defer stream.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case funds, open := <-stream.C:
			if !open {
				return
			}
			payload, err := json.Marshal(funds)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to encode event payload", "error", err)
				continue
			}
			if _, err := w.Write([]byte("event: funds\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
