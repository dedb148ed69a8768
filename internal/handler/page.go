// Package handler contains the HTTP request handlers of the wedding site.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, an http.HandlerFunc. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, body, session)
// 2. Call the service layer
// 3. Write the HTTP response (JSON for /api, HTML shells for pages)
//
// Handlers should NOT contain business logic; they are the glue between HTTP
// and the services.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sakif/wedding-rsvp/internal/session"
)

// Page names double as template file names: "album" renders album.html
// inside base.html.
const (
	PageLogin         = "login"
	PageSignUp        = "signup"
	PageRequestReset  = "request-reset"
	PageResetPassword = "reset-password"
	PageHome          = "home"
	PageRSVP          = "rsvp"
	PageViewRSVP      = "view-rsvp"
	PageUpload        = "upload"
	PageAlbum         = "album"
	PageVenue         = "venue"
	PageLeaveMessage  = "leave-a-message"
	PageMessageWall   = "message-wall"
	PageDashboard     = "dashboard"
)

var pageTitles = map[string]string{
	PageLogin:         "Sign in",
	PageSignUp:        "Create an account",
	PageRequestReset:  "Forgot password",
	PageResetPassword: "Choose a new password",
	PageHome:          "Welcome",
	PageRSVP:          "RSVP",
	PageViewRSVP:      "Your RSVP",
	PageUpload:        "Share photos & videos",
	PageAlbum:         "Album",
	PageVenue:         "Venue",
	PageLeaveMessage:  "Leave a message",
	PageMessageWall:   "Message wall",
	PageDashboard:     "Dashboard",
}

// PageHandler renders the HTML shells. The pages fetch their data from the
// JSON API, so a shell only needs the session and the page name.
//
// WHY ONE TEMPLATE SET PER PAGE?
// Every page file defines the same "content" block. Parsing each page with
// its own copy of base.html keeps those definitions from overwriting each
// other, and parsing happens once at startup.
type PageHandler struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// pageData is what every template receives.
type pageData struct {
	Page    string
	Title   string
	Session *session.Session
	Query   map[string]string
}

// NewPageHandler parses base.html with every page template in templateDir.
func NewPageHandler(templateDir string, logger *slog.Logger) (*PageHandler, error) {
	h := &PageHandler{
		templates: make(map[string]*template.Template, len(pageTitles)),
		logger:    logger,
	}
	for name := range pageTitles {
		tmpl, err := template.ParseFiles(
			filepath.Join(templateDir, "base.html"),
			filepath.Join(templateDir, name+".html"),
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s page: %w", name, err)
		}
		h.templates[name] = tmpl
	}
	return h, nil
}

// Render returns the handler for one page. Access control is the router's
// job (session.Gate.Page); the handler only renders.
func (h *PageHandler) Render(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, name, http.StatusOK)
	}
}

// HandleNotFound renders the login page for any path without a route.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, PageLogin, http.StatusOK)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, status int) {
	tmpl, ok := h.templates[name]
	if !ok {
		h.logger.Error("unknown page", slog.String("page", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Page:  name,
		Title: pageTitles[name],
		Query: map[string]string{},
	}
	if s, ok := session.FromContext(r.Context()); ok {
		data.Session = s
	}
	for key := range r.URL.Query() {
		data.Query[key] = r.URL.Query().Get(key)
	}

	// Render into a buffer so a template error still yields a clean 500.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
