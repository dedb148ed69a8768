// Package service holds the business rules of the wedding site.
//
// Every service sits between the HTTP handlers and the storage/integration
// layers:
//
//	Handler (HTTP) → Service (business rules) → Repository (DB)
//	                                          ↘ storage / weather / notify
//
// Services never touch http.Request or cookies. They return apperror values
// (usually wrapped) and the handler layer maps them to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/auth"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/notify"
	"github.com/sakif/wedding-rsvp/internal/repository"
)

// SessionControl is the part of the session gate services use to end
// sessions and drop cached privilege flags.
type SessionControl interface {
	Revoke(ctx context.Context, userID string) error
	Invalidate(ctx context.Context, userID string) error
}

// Notifier queues an e-mail. notify.Dispatcher implements it.
type Notifier interface {
	Submit(n notify.Notification) (string, error)
}

// AuthOptions carries the configuration AuthService needs.
type AuthOptions struct {
	// BaseURL is the public site root used to build reset links.
	BaseURL string
	// IsSuperuserEmail decides the privilege flag at sign-up.
	IsSuperuserEmail func(email string) bool
}

// AuthService owns accounts: sign-up, sign-in, sign-out and passwords.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → session and reset JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - sessions   SessionControl             → revoke sessions on sign-out/password change
//   - notifier   Notifier                   → reset e-mails
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	sessions  SessionControl
	notifier  Notifier
	opts      AuthOptions
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	sessions SessionControl,
	notifier Notifier,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthService {
	if opts.IsSuperuserEmail == nil {
		opts.IsSuperuserEmail = func(string) bool { return false }
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		sessions:  sessions,
		notifier:  notifier,
		opts:      opts,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordInput struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type ResetInput struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

var errBadCredentials = apperror.Unauthorized("Invalid email or password")

// SignUp creates an account and signs it in. The privilege flag comes from
// the configured superuser list, never from the request.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, apperror.ValidationFailed("fullName", "Full name is required")
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		FullName:     fullName,
		IsSuperuser:  s.opts.IsSuperuserEmail(email),
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "An account with this email already exists",
				Field:   "email",
			}
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("guest signed up",
		slog.String("userID", user.ID),
		slog.Bool("superuser", user.IsSuperuser),
	)
	return s.issue(user)
}

// Login checks the password and issues a session token. Unknown e-mails and
// wrong passwords get the same answer.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("email", "Email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// Logout ends every session of userID issued so far.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: signing out %s: %w", userID, err)
	}
	return nil
}

// Me returns the account behind the session.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// ChangePassword sets a new password for a signed-in guest. Other sessions
// end; the caller gets a fresh token so it stays signed in.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in PasswordInput) (*AuthResult, error) {
	if err := s.checkNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	user, err := s.setPassword(ctx, userID, in.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// RequestReset queues a reset link when the account exists. It reports
// nothing about whether it does.
func (s *AuthService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service/auth: loading user for reset: %w", err)
	}

	token, err := s.tokens.GenerateReset(user.ID, auth.Fingerprint(user.PasswordHash))
	if err != nil {
		return fmt.Errorf("service/auth: issuing reset token: %w", err)
	}

	link := s.opts.BaseURL + "/reset-password?token=" + url.QueryEscape(token)
	taskID, err := s.notifier.Submit(notify.Notification{
		Kind:     notify.KindPasswordReset,
		Email:    user.Email,
		FullName: user.FullName,
		Link:     link,
	})
	if err != nil {
		// The guest sees the same answer either way; the failure is ours.
		s.logger.Error("queueing reset e-mail",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.Info("password reset requested",
		slog.String("userID", user.ID),
		slog.String("taskID", taskID),
	)
	return nil
}

// ResetPassword redeems a reset token. A token stops working once the
// password it was issued against has changed.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetInput) error {
	invalid := apperror.ValidationFailed("token", "This reset link is invalid or has expired")

	userID, fp, err := s.tokens.ValidateReset(in.Token)
	if err != nil {
		return invalid
	}
	if err := s.checkNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return invalid
		}
		return fmt.Errorf("service/auth: loading user for reset: %w", err)
	}
	if auth.Fingerprint(user.PasswordHash) != fp {
		return invalid
	}

	_, err = s.setPassword(ctx, userID, in.Password)
	return err
}

// SetPrivilege grants or removes the elevated flag. Cached flags for the
// user are dropped everywhere so the change applies on the next request.
func (s *AuthService) SetPrivilege(ctx context.Context, userID string, superuser bool) (*model.User, error) {
	if err := s.users.SetSuperuser(ctx, userID, superuser); err != nil {
		return nil, fmt.Errorf("service/auth: setting privilege of %s: %w", userID, err)
	}
	if err := s.sessions.Invalidate(ctx, userID); err != nil {
		return nil, fmt.Errorf("service/auth: invalidating %s: %w", userID, err)
	}

	s.logger.Info("privilege changed",
		slog.String("userID", userID),
		slog.Bool("superuser", superuser),
	)
	return s.Me(ctx, userID)
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) (*model.User, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return nil, fmt.Errorf("service/auth: updating password for %s: %w", userID, err)
	}
	if err := s.sessions.Revoke(ctx, userID); err != nil {
		return nil, fmt.Errorf("service/auth: ending sessions of %s: %w", userID, err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: reloading user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) checkNewPassword(password, confirm string) error {
	if password != confirm {
		return apperror.ValidationFailed("confirmPassword", "Passwords do not match")
	}
	return s.checkPassword(password)
}

func (s *AuthService) checkPassword(password string) error {
	switch err := s.passwords.CheckStrength(password); {
	case errors.Is(err, auth.ErrPasswordTooShort):
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	case errors.Is(err, auth.ErrPasswordTooLong):
		return apperror.ValidationFailed("password", "Password is too long")
	case err != nil:
		return fmt.Errorf("service/auth: checking password: %w", err)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "Email address is not valid")
	}
	return email, nil
}
