package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/auth"
	"ms-booking/internal/models"

	"github.com/go-chi/chi/v5"
)

const heartbeatInterval = 25 * time.Second

// StreamTourBookings streams booking events for one tour to its captain.
func (h *Handler) StreamTourBookings(w http.ResponseWriter, r *http.Request) {
	tourID, err := strconv.ParseInt(chi.URLParam(r, "tour_id"), 10, 64)
	if err != nil || tourID <= 0 {
		h.fail(w, r, "StreamTourBookings", apperrors.BadRequest("tour_id must be a positive integer"))
		return
	}

	user, ok := models.AsUser(auth.ActorFrom(r.Context()))
	if !ok {
		h.fail(w, r, "StreamTourBookings", apperrors.Unauthorized("Authentication required"))
		return
	}
	if err := h.BookingService.AuthorizeTourFeed(r.Context(), user, tourID); err != nil {
		h.fail(w, r, "StreamTourBookings", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, "StreamTourBookings", apperrors.Internal(fmt.Errorf("streaming unsupported")))
		return
	}

	h.setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Emitter.SubscribeToTour(ctx, tourID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"tour_id\":%d}\n\n", tourID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client %s connected to booking stream for tour %d", user.ID, tourID))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize booking event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client %s disconnected from tour %d", user.ID, tourID))
			return
		}
	}
}

func (h *Handler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
