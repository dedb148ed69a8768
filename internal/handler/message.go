package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/service"
)

// MessageHandler serves the "leave a message" composer and the wall.
type MessageHandler struct {
	messages *service.MessageService
	media    *service.MediaService
	logger   *slog.Logger
}

func NewMessageHandler(messages *service.MessageService, media *service.MediaService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, media: media, logger: logger}
}

// HandleCompose posts a message.
//
// HTTP: POST /api/messages
// REQUEST BODY: {"name": "...", "message": "...", "mediaUrl": "...", "isPublic": true}
// RESPONSE: 201 with the stored message, 400 "Message cannot be empty."
func (h *MessageHandler) HandleCompose(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.ComposeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.messages.Compose(r.Context(), s.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// HandleUploadMedia stores a photo or video to attach to a message and
// returns the URL to put in mediaUrl.
//
// HTTP: POST /api/messages/media (multipart, field "file")
// RESPONSE: 201 {"mediaUrl": "..."}
func (h *MessageHandler) HandleUploadMedia(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	files, cleanup, err := parseUpload(w, r, "file")
	defer cleanup()
	if err != nil {
		writeError(w, err)
		return
	}
	if len(files) != 1 {
		writeError(w, apperror.ValidationFailed("file", "Attach exactly one file"))
		return
	}

	url, err := h.media.UploadMessageMedia(r.Context(), s.FullName, files[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"mediaUrl": url})
}

// HandleWall lists the visible messages, newest first.
//
// HTTP: GET /api/messages?expanded=<id>&limit=<n>&offset=<n>
func (h *MessageHandler) HandleWall(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.messages.Wall(r.Context(), service.WallQuery{
		Expanded: r.URL.Query().Get("expanded"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
