// Package session is the single place that decides who is making a request
// and whether they hold the elevated privilege.
//
// GATE LIFECYCLE:
// The server builds one Gate at start-up and every gating middleware uses it.
// Privilege flags are cached per user; anything that changes a user's
// session or privilege calls Invalidate (or Revoke), which drops the cached
// flag in this process and, through the cache's broadcaster, in every other
// process sharing the same Redis.
//
// Components that keep their own per-user state can Subscribe to the same
// invalidation events.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/auth"
	"github.com/sakif/wedding-rsvp/internal/cache"
	"github.com/sakif/wedding-rsvp/internal/model"
)

const (
	invalidateChannel = "session:invalidate"
	privilegeTTL      = 5 * time.Minute
)

// Session is the resolved identity of a request.
type Session struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Superuser bool   `json:"isSuperuser"`
}

// Users is the slice of the user store the gate reads.
type Users interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	IsSuperuser(ctx context.Context, id string) (bool, error)
}

type Gate struct {
	tokens *auth.TokenService
	users  Users
	store  cache.Store
	logger *slog.Logger

	mu      sync.Mutex
	subs    map[int]func(userID string)
	nextSub int

	stopRemote func()
}

// NewGate wires the gate to its collaborators and starts listening for
// invalidations. Call Close on shutdown.
func NewGate(tokens *auth.TokenService, users Users, store cache.Store, logger *slog.Logger) *Gate {
	g := &Gate{
		tokens: tokens,
		users:  users,
		store:  store,
		logger: logger,
		subs:   make(map[int]func(string)),
	}
	g.stopRemote = store.Subscribe(context.Background(), invalidateChannel, g.onInvalidate)
	return g
}

// Close stops listening for invalidations.
func (g *Gate) Close() {
	g.stopRemote()
}

// Resolve reads the session cookie and returns the caller's session.
//
// A missing, expired or revoked token, or a token for a deleted account, is
// apperror.ErrUnauthorized. A failed privilege lookup is not an error: the
// session is simply not elevated.
func (g *Gate) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	token, ok := auth.SessionToken(r)
	if !ok {
		return nil, apperror.Unauthorized("sign in required")
	}

	userID, issued, err := g.tokens.ValidateSession(token)
	if err != nil {
		return nil, apperror.Unauthorized("session expired, please sign in again")
	}

	if g.revoked(ctx, userID, issued) {
		return nil, apperror.Unauthorized("session ended, please sign in again")
	}

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("session: loading user %s: %w", userID, err)
	}

	return &Session{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Superuser: g.privileged(ctx, user.ID),
	}, nil
}

// privileged reads the elevated flag, through the cache. Lookup failures are
// logged, treated as "not privileged" and never cached.
func (g *Gate) privileged(ctx context.Context, userID string) bool {
	key := privilegeKey(userID)

	if v, ok, err := g.store.Get(ctx, key); err == nil && ok {
		return string(v) == "1"
	} else if err != nil {
		g.logger.Warn("privilege cache read failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	flag, err := g.users.IsSuperuser(ctx, userID)
	if err != nil {
		g.logger.Warn("privilege lookup failed, treating as not privileged",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return false
	}

	v := "0"
	if flag {
		v = "1"
	}
	if err := g.store.Set(ctx, key, []byte(v), privilegeTTL); err != nil {
		g.logger.Warn("privilege cache write failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
	return flag
}

// Invalidate drops everything cached for userID, here and in every process
// subscribed to the same store.
func (g *Gate) Invalidate(ctx context.Context, userID string) error {
	if err := g.store.Delete(ctx, privilegeKey(userID)); err != nil {
		return fmt.Errorf("session: dropping privilege for %s: %w", userID, err)
	}
	if err := g.store.Publish(ctx, invalidateChannel, userID); err != nil {
		return fmt.Errorf("session: publishing invalidation for %s: %w", userID, err)
	}
	return nil
}

// Revoke ends every session of userID issued before now, then invalidates.
// Used on sign-out and password changes.
func (g *Gate) Revoke(ctx context.Context, userID string) error {
	stamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := g.store.Set(ctx, revokedKey(userID), []byte(stamp), g.tokens.SessionTTL()); err != nil {
		return fmt.Errorf("session: revoking sessions of %s: %w", userID, err)
	}
	return g.Invalidate(ctx, userID)
}

// revoked reports whether a token issued at issued is not newer than the
// user's last revocation. Both sides are compared in nanoseconds.
func (g *Gate) revoked(ctx context.Context, userID string, issued time.Time) bool {
	v, ok, err := g.store.Get(ctx, revokedKey(userID))
	if err != nil || !ok {
		return false
	}
	at, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return false
	}
	return issued.UnixNano() <= at
}

// Subscribe registers fn for invalidation events and returns its cancel func.
func (g *Gate) Subscribe(fn func(userID string)) (cancel func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// onInvalidate runs for every invalidation, local or remote.
func (g *Gate) onInvalidate(userID string) {
	// A remote process already deleted the shared key; with an in-memory
	// store this drops the local copy.
	if err := g.store.Delete(context.Background(), privilegeKey(userID)); err != nil {
		g.logger.Warn("dropping privilege on invalidation",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	g.mu.Lock()
	fns := make([]func(string), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(userID)
	}
}

func privilegeKey(userID string) string { return "privilege:" + userID }
func revokedKey(userID string) string   { return "revoked:" + userID }
