package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tablefare-order-service/internal/middleware"
	"tablefare-order-service/pkg/response"
)

// VendorOrdersStream is the SSE feed behind the vendor dashboard.
// Each connected dashboard gets its own broadcaster subscription; a
// failed write or a closed request context tears the subscription
// down along with the heartbeat ticker.
func (h *Handler) VendorOrdersStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.Events.Subscribe(*authCtx.VendorID, string(authCtx.Role))
	defer h.Events.Unsubscribe(sub)

	connected := map[string]any{
		"subscriptionId": sub.ID.String(),
		"vendorId":       *authCtx.VendorID,
		"connectedAt":    time.Now().UTC(),
	}
	if payload, err := json.Marshal(connected); err == nil {
		_, _ = fmt.Fprintf(w, "event: connected\ndata: %s\n\n", payload)
		flusher.Flush()
	}

	heartbeat := time.NewTicker(h.Config.StreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
