package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/wedding-rsvp/internal/service"
)

// VenueHandler serves the venue page data and its live countdown.
type VenueHandler struct {
	venue  *service.VenueService
	tick   time.Duration
	logger *slog.Logger
}

func NewVenueHandler(venue *service.VenueService, logger *slog.Logger) *VenueHandler {
	return &VenueHandler{venue: venue, tick: time.Second, logger: logger}
}

// HandleVenue returns the venue details, guest count, countdown and weather.
//
// HTTP: GET /api/venue
//
// "weather" is null when the weather lookup failed; the rest of the page
// still renders.
func (h *VenueHandler) HandleVenue(w http.ResponseWriter, r *http.Request) {
	page, err := h.venue.Page(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleCountdown streams the countdown text as server-sent events, one
// event per tick, until the client goes away.
//
// HTTP: GET /api/venue/countdown
//
// SSE FORMAT:
//
//	event: countdown
//	data: 12 days, 3 hrs, 41 mins until the wedding!
//
// The ticker is stopped when the request context ends, so a closed tab
// leaves nothing running.
func (h *VenueHandler) HandleCountdown(w http.ResponseWriter, r *http.Request) {
	// The server's write timeout would cut the stream; lift it for this
	// response only. ResponseController sees through wrapping middleware.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("countdown: cannot clear write deadline", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	send := func() error {
		if _, err := fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", h.venue.Countdown()); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("countdown stream closed")
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}
