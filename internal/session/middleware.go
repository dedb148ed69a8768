package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/auth"
)

type contextKey string

const sessionKey contextKey = "session"

// Level is the access a page route requires.
type Level int

const (
	Public Level = iota
	Authenticated
	Elevated
)

const (
	LoginPath   = "/login"
	DefaultPath = "/"
)

// FromContext returns the session stored by one of the gate middlewares.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// WithSession stores s in ctx. The user id is also stored where
// auth.UserIDFromContext finds it.
func WithSession(ctx context.Context, s *Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey, s)
	return auth.WithUserID(ctx, s.UserID)
}

// RequireSession guards JSON routes: no session → 401.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := g.Resolve(r.Context(), r)
		if err != nil {
			g.reject(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireSuperuser guards admin JSON routes: no session → 401,
// not elevated → 403.
func (g *Gate) RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := g.Resolve(r.Context(), r)
		if err != nil {
			g.reject(w, err)
			return
		}
		if !s.Superuser {
			g.reject(w, apperror.Forbidden("elevated privilege required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// Page gates HTML routes. Authorization failures redirect instead of
// returning an error: no session goes to the login page, a non-elevated
// session on an elevated route goes to the default route. Public routes
// still get the session in context when one exists.
func (g *Gate) Page(level Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := g.Resolve(r.Context(), r)
			if err != nil && !errors.Is(err, apperror.ErrUnauthorized) {
				g.logger.Error("resolving session for page",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}

			switch {
			case s == nil && level >= Authenticated:
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			case s != nil && level == Elevated && !s.Superuser:
				http.Redirect(w, r, DefaultPath, http.StatusSeeOther)
				return
			}

			if s != nil {
				r = r.WithContext(WithSession(r.Context(), s))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) reject(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	kind := "unauthorized"
	msg := "valid authentication required"

	var appErr *apperror.AppError
	switch {
	case errors.Is(err, apperror.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
	case errors.Is(err, apperror.ErrUnauthorized):
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
	default:
		g.logger.Error("resolving session", slog.String("error", err.Error()))
		status, kind, msg = http.StatusInternalServerError, "internal_error", "An internal error occurred"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": msg})
}
