package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wedding-rsvp/internal/handler"
	"github.com/sakif/wedding-rsvp/internal/notify"
	"github.com/sakif/wedding-rsvp/internal/session"
)

type fakeTasks map[string]notify.Task

func (f fakeTasks) Status(id string) (notify.Task, bool) {
	task, ok := f[id]
	return task, ok
}

func TestNotificationHandler_Status(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	tasks := fakeTasks{
		"task-1": {
			ID:          "task-1",
			Kind:        notify.KindRSVPConfirmation,
			State:       notify.StateSent,
			SubmittedBy: "user-1",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	r := chi.NewRouter()
	r.Get("/api/notifications/{id}", handler.NewNotificationHandler(tasks).HandleStatus)

	tests := []struct {
		name       string
		id         string
		session    *session.Session
		wantStatus int
	}{
		{"owner sees the task", "task-1", &session.Session{UserID: "user-1"}, http.StatusOK},
		{"someone else's task", "task-1", &session.Session{UserID: "user-2"}, http.StatusNotFound},
		{"unknown id", "task-9", &session.Session{UserID: "user-1"}, http.StatusNotFound},
		{"no session", "task-1", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, jsonRequest(http.MethodGet, "/api/notifications/"+tt.id, nil, tt.session))

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var task notify.Task
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&task))
			assert.Equal(t, notify.StateSent, task.State)
			assert.Empty(t, task.SubmittedBy, "the owner id is never serialized")
		})
	}
}
