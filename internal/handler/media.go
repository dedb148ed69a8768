package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/service"
)

// MediaHandler serves the album, its lightbox and guest uploads.
type MediaHandler struct {
	media  *service.MediaService
	logger *slog.Logger
}

func NewMediaHandler(media *service.MediaService, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{media: media, logger: logger}
}

// HandleAlbum returns one screen of the album.
//
// HTTP: GET /api/album?filter=all|photo|video&loaded=9
//
// "Load more" on the page asks again with loaded=nextLoaded.
func (h *MediaHandler) HandleAlbum(w http.ResponseWriter, r *http.Request) {
	loaded, err := queryInt(r, "loaded", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.media.Album(r.Context(), r.URL.Query().Get("filter"), loaded)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleLightbox applies one key press to the preview.
//
// HTTP: GET /api/album/lightbox?filter=all&loaded=9&index=3&key=ArrowRight
func (h *MediaHandler) HandleLightbox(w http.ResponseWriter, r *http.Request) {
	loaded, err := queryInt(r, "loaded", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := queryInt(r, "index", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	view, err := h.media.Lightbox(r.Context(), q.Get("filter"), loaded, index, q.Get("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpload stores guest photos or videos.
//
// HTTP: POST /api/media (multipart, fields "type" and "files")
// RESPONSE: 201 with the stored assets
//
// A guest closing the page mid-upload gets the "cancelled" notice rather
// than an error.
func (h *MediaHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	files, cleanup, err := parseUpload(w, r, "files")
	defer cleanup()
	if err != nil {
		writeError(w, err)
		return
	}

	mediaType := model.MediaType(r.FormValue("type"))
	assets, err := h.media.Upload(r.Context(), s.FullName, mediaType, files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assets)
}
