package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/service"
)

// AdminHandler is the dashboard API. The router mounts it behind
// RequireSuperuser, so every method can assume an elevated session.
type AdminHandler struct {
	dashboard *service.DashboardService
	rsvps     *service.RSVPService
	accounts  *service.AuthService
	logger    *slog.Logger
}

func NewAdminHandler(
	dashboard *service.DashboardService,
	rsvps *service.RSVPService,
	accounts *service.AuthService,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		dashboard: dashboard,
		rsvps:     rsvps,
		accounts:  accounts,
		logger:    logger,
	}
}

// HandleList returns the summary counts and the filtered, sorted records.
//
// HTTP: GET /api/admin/rsvps?filter=attending&sort=name&q=smith
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.dashboard.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleExport downloads the current view as CSV.
//
// HTTP: GET /api/admin/rsvps/export.csv?filter=...&sort=...&q=...
//
// The CSV is rendered into a buffer first so a failure can still be
// reported as JSON instead of a truncated download.
func (h *AdminHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.dashboard.Export(r.Context(), q, &buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", service.ExportFilename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("writing csv export", slog.String("error", err.Error()))
	}
}

// HandleUpdate edits any record.
//
// HTTP: PATCH /api/admin/rsvps/{id}
func (h *AdminHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in service.PatchInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	rsvp, err := h.rsvps.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rsvp)
}

// HandleDelete removes a record. The dashboard asks before deleting; the
// answer travels as ?confirm=true.
//
// HTTP: DELETE /api/admin/rsvps/{id}?confirm=true
// RESPONSE: 204 on success, 400 without confirmation
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, apperror.ValidationFailed("confirm", "Please confirm the deletion"))
		return
	}

	if err := h.rsvps.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	s, _ := currentSession(r)
	if s != nil {
		h.logger.Info("rsvp deleted by admin",
			slog.String("rsvpID", id),
			slog.String("adminID", s.UserID),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetSuperuser grants or removes the elevated flag of an account.
//
// HTTP: PUT /api/admin/users/{id}/superuser
// REQUEST BODY: {"isSuperuser": true}
//
// Admins cannot demote themselves, so the site always keeps one.
func (h *AdminHandler) HandleSetSuperuser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in struct {
		IsSuperuser *bool `json:"isSuperuser"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.IsSuperuser == nil {
		writeError(w, apperror.ValidationFailed("isSuperuser", "isSuperuser is required"))
		return
	}

	if s, _ := currentSession(r); s != nil && s.UserID == id && !*in.IsSuperuser {
		writeError(w, apperror.Forbidden("You cannot remove your own admin access"))
		return
	}

	user, err := h.accounts.SetPrivilege(r.Context(), id, *in.IsSuperuser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func listQuery(r *http.Request) (service.ListQuery, error) {
	v := r.URL.Query()
	return service.ParseListQuery(v.Get("filter"), v.Get("sort"), v.Get("q"))
}
