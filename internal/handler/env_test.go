package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/wedding-rsvp/internal/auth"
	"github.com/sakif/wedding-rsvp/internal/cache"
	"github.com/sakif/wedding-rsvp/internal/handler"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/notify"
	"github.com/sakif/wedding-rsvp/internal/repository/sqlite"
	"github.com/sakif/wedding-rsvp/internal/service"
	"github.com/sakif/wedding-rsvp/internal/session"
	"github.com/sakif/wedding-rsvp/internal/storage"
)

const testSecret = "handler-test-secret-0123456789"

// testEnv is the real service stack over an in-memory database. Handlers
// are called directly, with the session placed in the request context the
// way the gate middleware would.
type testEnv struct {
	db         *sqlite.DB
	tokens     *auth.TokenService
	gate       *session.Gate
	dispatcher *notify.Dispatcher
	accounts   *service.AuthService
	rsvps      *service.RSVPService
	dashboard  *service.DashboardService
	messages   *service.MessageService
	logger     *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cache.NewMemory()
	gate := session.NewGate(tokens, db, store, logger)
	t.Cleanup(gate.Close)

	dispatcher := notify.NewDispatcher(nil, notify.Config{Workers: 1}, logger)
	dispatcher.Start()
	t.Cleanup(dispatcher.Stop)

	accounts := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), gate, dispatcher,
		service.AuthOptions{
			BaseURL:          "http://wedding.test",
			IsSuperuserEmail: func(email string) bool { return email == "admin@wedding.test" },
		}, logger)

	return &testEnv{
		db:         db,
		tokens:     tokens,
		gate:       gate,
		dispatcher: dispatcher,
		accounts:   accounts,
		rsvps:      service.NewRSVPService(db, dispatcher, logger),
		dashboard:  service.NewDashboardService(db),
		messages:   service.NewMessageService(db, time.UTC, logger),
		logger:     logger,
	}
}

// signUp creates an account and returns its session.
func (e *testEnv) signUp(t *testing.T, email, fullName string) *session.Session {
	t.Helper()
	res, err := e.accounts.SignUp(context.Background(), service.SignUpInput{
		Email:    email,
		Password: "correct-horse",
		FullName: fullName,
	})
	require.NoError(t, err)
	return &session.Session{
		UserID:    res.User.ID,
		Email:     res.User.Email,
		FullName:  res.User.FullName,
		Superuser: res.User.IsSuperuser,
	}
}

func (e *testEnv) authHandler() *handler.AuthHandler {
	return handler.NewAuthHandler(e.accounts, nil, handler.CookieOptions{TTL: time.Hour}, e.logger)
}

func (e *testEnv) mediaService(p storage.Provider) *service.MediaService {
	return service.NewMediaService(p, service.MediaFolders{
		Photos:   "photos",
		Videos:   "videos",
		Messages: "messages",
	}, time.UTC, e.logger)
}

// jsonRequest builds a request with a JSON body and, when s is non-nil, a
// session in its context.
func jsonRequest(method, target string, body any, s *session.Session) *http.Request {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		buf, _ := json.Marshal(b)
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if s != nil {
		req = req.WithContext(session.WithSession(req.Context(), s))
	}
	return req
}

func withSession(req *http.Request, s *session.Session) *http.Request {
	return req.WithContext(session.WithSession(req.Context(), s))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// fakeProvider is an in-memory storage.Provider.
type fakeProvider struct {
	files    map[string][]storage.File
	listErr  error
	uploaded []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{files: map[string][]storage.File{}}
}

func (p *fakeProvider) List(_ context.Context, folder string) ([]storage.File, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.files[folder], nil
}

func (p *fakeProvider) Upload(_ context.Context, folder, name, contentType string, r io.Reader) (*storage.File, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	f := storage.File{
		ID:        folder + "/" + name,
		Name:      name,
		MimeType:  contentType,
		ViewURL:   "https://files.test/" + folder + "/" + name,
		CreatedAt: time.Date(2026, 2, 21, 18, 0, 0, 0, time.UTC),
	}
	p.files[folder] = append(p.files[folder], f)
	p.uploaded = append(p.uploaded, name)
	return &f, nil
}

func (p *fakeProvider) add(folder, name string, created time.Time) {
	p.files[folder] = append(p.files[folder], storage.File{
		ID:        folder + "/" + name,
		Name:      name,
		ViewURL:   "https://files.test/" + name,
		CreatedAt: created,
	})
}

// decodeRSVP reads a single record from a response body.
func decodeRSVP(t *testing.T, rr *httptest.ResponseRecorder) model.RSVP {
	t.Helper()
	var r model.RSVP
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&r))
	return r
}
