package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/wedding-rsvp/internal/service"
)

// RSVPHandler serves the guest's own RSVP form and the on-behalf batch.
// Every route requires a session.
type RSVPHandler struct {
	rsvps  *service.RSVPService
	logger *slog.Logger
}

func NewRSVPHandler(rsvps *service.RSVPService, logger *slog.Logger) *RSVPHandler {
	return &RSVPHandler{rsvps: rsvps, logger: logger}
}

// HandleSubmit stores the guest's own response together with any on-behalf
// entries in the same body.
//
// HTTP: POST /api/rsvp
// RESPONSE: 201 {"rsvp": {...}, "onBehalf": [...], "notificationId": "..."}
//
// The confirmation e-mail is queued after the write; its id lets the page
// poll /api/notifications/{id}. A queueing failure never fails the request.
func (h *RSVPHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.rsvps.Submit(r.Context(), s.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// HandleSubmitOnBehalf stores responses for other guests only.
//
// HTTP: POST /api/rsvp/on-behalf
// REQUEST BODY: {"onBehalf": [{"fullName": "...", "attending": true, ...}]}
func (h *RSVPHandler) HandleSubmitOnBehalf(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in struct {
		OnBehalf []service.OnBehalfInput `json:"onBehalf"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.rsvps.SubmitOnBehalf(r.Context(), s.UserID, in.OnBehalf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// HandleGetMine returns the guest's own response.
//
// HTTP: GET /api/rsvp
// RESPONSE: 404 "RSVP not found" when the guest has not responded yet.
func (h *RSVPHandler) HandleGetMine(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rsvp, err := h.rsvps.Mine(r.Context(), s.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rsvp)
}

// HandleUpdateMine edits the guest's own response. Name and email cannot be
// changed here.
//
// HTTP: PATCH /api/rsvp
func (h *RSVPHandler) HandleUpdateMine(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.PatchInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	rsvp, err := h.rsvps.UpdateMine(r.Context(), s.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rsvp)
}
