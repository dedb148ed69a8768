package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/auth"
	"github.com/sakif/wedding-rsvp/internal/service"
	"github.com/sakif/wedding-rsvp/internal/session"
)

const stateCookieName = "oauth_state"

// CookieOptions controls the session cookie written after sign-in.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// DriveAuthorizer runs the admin-only OAuth flow that connects the Google
// Drive media store. *auth.GoogleProvider implements it.
type DriveAuthorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// AuthHandler manages accounts and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignUp / HandleLogin  → create or check the account, set the cookie
//   - HandleLogout                → end the sessions, clear the cookie
//   - HandleMe                    → the signed-in guest's profile
//   - HandleChangePassword        → new password for a signed-in guest
//   - HandleResetRequest / Reset  → forgotten-password flow
//   - HandleDriveLogin / Callback → connect Google Drive (admins only)
//
// DEPENDENCY CHAIN:
//   - accounts *service.AuthService → every account rule
//   - drive    DriveAuthorizer      → optional, nil when Drive is not the store
type AuthHandler struct {
	accounts *service.AuthService
	drive    DriveAuthorizer
	cookie   CookieOptions
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. drive may be nil.
func NewAuthHandler(
	accounts *service.AuthService,
	drive DriveAuthorizer,
	cookie CookieOptions,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		drive:    drive,
		cookie:   cookie,
		logger:   logger,
	}
}

// HandleSignUp creates an account and signs it in.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"email": "...", "password": "...", "fullName": "..."}
// RESPONSE: 201 with the user
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.SignUp(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.cookie.TTL, h.cookie.Secure)
	writeJSON(w, http.StatusCreated, res.User)
}

// HandleLogin checks the credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.cookie.TTL, h.cookie.Secure)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleLogout ends the caller's sessions and clears the cookie.
//
// HTTP: POST /api/auth/logout
//
// The route does not require a session: a guest whose session already
// expired still gets the cookie cleared.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if s, ok := session.FromContext(r.Context()); ok {
		if err := h.accounts.Logout(r.Context(), s.UserID); err != nil {
			h.logger.Error("logout: revoking sessions",
				slog.String("userID", s.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	auth.ClearSessionCookie(w, h.cookie.Secure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// HandleMe returns the signed-in guest's profile.
//
// HTTP: GET /api/auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.Me(r.Context(), s.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	// The gate's view of the flag is what the guest is treated as.
	user.IsSuperuser = s.Superuser
	writeJSON(w, http.StatusOK, user)
}

// HandleChangePassword sets a new password and re-issues the cookie, since
// the change ends every earlier session.
//
// HTTP: POST /api/auth/password
// REQUEST BODY: {"password": "...", "confirmPassword": "..."}
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.PasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.ChangePassword(r.Context(), s.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.cookie.TTL, h.cookie.Secure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// HandleResetRequest queues a reset link.
//
// HTTP: POST /api/auth/reset-request
// REQUEST BODY: {"email": "..."}
// RESPONSE: always 202, so the endpoint does not reveal which e-mails have accounts.
func (h *AuthHandler) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.RequestReset(r.Context(), in.Email); err != nil {
		h.logger.Error("reset request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for that email, a reset link is on its way.",
	})
}

// HandleReset redeems a reset link.
//
// HTTP: POST /api/auth/reset
// REQUEST BODY: {"token": "...", "password": "...", "confirmPassword": "..."}
func (h *AuthHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var in service.ResetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated, please sign in"})
}

// HandleDriveLogin redirects an admin to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and checked on
// the callback.
func (h *AuthHandler) HandleDriveLogin(w http.ResponseWriter, r *http.Request) {
	if h.drive == nil {
		writeError(w, apperror.Unavailable("Google Drive", nil))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.drive.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleDriveCallback completes the Drive connection.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for an offline token
//  3. Redirect back to the dashboard with the outcome in the query
func (h *AuthHandler) HandleDriveCallback(w http.ResponseWriter, r *http.Request) {
	if h.drive == nil {
		writeError(w, apperror.Unavailable("Google Drive", nil))
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("drive callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Cancelling on Google's consent page is a notice, not a failure.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("drive callback: authorization declined", slog.String("error", errParam))
		http.Redirect(w, r, "/dashboard?drive=cancelled", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	if err := h.drive.Exchange(r.Context(), code); err != nil {
		h.logger.Error("drive callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/dashboard?drive=failed", http.StatusSeeOther)
		return
	}

	h.logger.Info("google drive connected")
	http.Redirect(w, r, "/dashboard?drive=connected", http.StatusSeeOther)
}

// currentSession returns the session the gate middleware stored.
func currentSession(r *http.Request) (*session.Session, error) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("sign in required")
	}
	return s, nil
}
