package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/notify"
)

// TaskStatus looks up a queued notification. *notify.Dispatcher implements it.
type TaskStatus interface {
	Status(id string) (notify.Task, bool)
}

// NotificationHandler reports the delivery state of confirmation e-mails.
type NotificationHandler struct {
	tasks TaskStatus
}

func NewNotificationHandler(tasks TaskStatus) *NotificationHandler {
	return &NotificationHandler{tasks: tasks}
}

// HandleStatus returns one task.
//
// HTTP: GET /api/notifications/{id}
//
// Only the guest whose submission queued the task can see it; anyone else
// gets the same 404 as for an unknown id.
func (h *NotificationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	task, ok := h.tasks.Status(id)
	if !ok || task.SubmittedBy != s.UserID {
		writeError(w, apperror.NotFound("notification", id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}
