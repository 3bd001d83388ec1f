package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Stream serves a live view as server-sent events. Each event carries a full
// snapshot; comments keep idle connections open.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	q, ok := a.openLiveQuery(w, r)
	if !ok {
		return
	}
	rc := http.NewResponseController(w)
	// Live views outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	snaps, err := a.hub.Subscribe(r.Context(), q)
	if err != nil {
		writeKYCError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	heartbeat := time.NewTicker(a.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case snap, open := <-snaps:
			if !open {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				a.logger.Error("encode snapshot", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Version, payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
