package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/notify"
	"github.com/sakif/wedding-rsvp/internal/repository"
	"github.com/sakif/wedding-rsvp/internal/storage"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	nextID  int
	getErr  error
	saveErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("user", u.Email)
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.CreatedAt = time.Now().UTC()
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserRepo) IsSuperuser(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	return ok && u.IsSuperuser, nil
}

func (f *fakeUserRepo) SetSuperuser(_ context.Context, id string, v bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.IsSuperuser = v
	return nil
}

// fakeSessions records revocations and invalidations.
type fakeSessions struct {
	mu          sync.Mutex
	revoked     []string
	invalidated []string
}

func (f *fakeSessions) Revoke(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, userID)
	return nil
}

func (f *fakeSessions) Invalidate(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
	return nil
}

// fakeNotifier collects notifications instead of sending them.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Submit(n notify.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, n)
	return fmt.Sprintf("task-%d", len(f.sent)), nil
}

// fakeRSVPRepo keeps records in insertion order.
type fakeRSVPRepo struct {
	mu      sync.Mutex
	records []*model.RSVP
	nextID  int
	clock   time.Time
	saveErr error
}

var _ repository.RSVPRepository = (*fakeRSVPRepo)(nil)

func newFakeRSVPRepo() *fakeRSVPRepo {
	return &fakeRSVPRepo{clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeRSVPRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeRSVPRepo) add(r model.RSVP) *model.RSVP {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = fmt.Sprintf("rsvp-%d", f.nextID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = f.tick()
	}
	f.records = append(f.records, &r)
	return &r
}

func (f *fakeRSVPRepo) SaveSubmission(_ context.Context, own *model.RSVP, onBehalf []*model.RSVP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if own != nil {
		replaced := false
		for _, r := range f.records {
			if r.UserID != nil && *r.UserID == *own.UserID {
				own.ID, own.CreatedAt = r.ID, r.CreatedAt
				*r = *own
				replaced = true
			}
		}
		if !replaced {
			f.nextID++
			own.ID = fmt.Sprintf("rsvp-%d", f.nextID)
			own.CreatedAt = f.tick()
			copied := *own
			f.records = append(f.records, &copied)
		}
	}
	for _, r := range onBehalf {
		f.nextID++
		r.ID = fmt.Sprintf("rsvp-%d", f.nextID)
		r.UserID = nil
		r.CreatedAt = f.tick()
		copied := *r
		f.records = append(f.records, &copied)
	}
	return nil
}

func (f *fakeRSVPRepo) find(pred func(*model.RSVP) bool) *model.RSVP {
	for _, r := range f.records {
		if pred(r) {
			return r
		}
	}
	return nil
}

func (f *fakeRSVPRepo) GetRSVPByID(_ context.Context, id string) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(func(r *model.RSVP) bool { return r.ID == id })
	if r == nil {
		return nil, apperror.NotFound("rsvp", id)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRSVPRepo) GetRSVPByOwner(_ context.Context, userID string) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(func(r *model.RSVP) bool { return r.UserID != nil && *r.UserID == userID })
	if r == nil {
		return nil, apperror.NotFoundMessage("RSVP not found")
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRSVPRepo) ListRSVPs(_ context.Context) ([]model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RSVP, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRSVPRepo) UpdateRSVP(_ context.Context, id string, patch model.RSVPPatch) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(func(r *model.RSVP) bool { return r.ID == id })
	if r == nil {
		return nil, apperror.NotFound("rsvp", id)
	}
	patch.Apply(r)
	copied := *r
	return &copied, nil
}

func (f *fakeRSVPRepo) DeleteRSVP(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("rsvp", id)
}

func (f *fakeRSVPRepo) CountAttending(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.Attending {
			n++
		}
	}
	return n, nil
}

// fakeMessageRepo applies the same visibility rule as the store.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []model.GuestMessage
	clock    time.Time
}

func (f *fakeMessageRepo) CreateMessage(_ context.Context, m *model.GuestMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clock.IsZero() {
		f.clock = time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	}
	f.clock = f.clock.Add(time.Minute)
	m.ID = fmt.Sprintf("msg-%d", len(f.messages)+1)
	m.CreatedAt = f.clock
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeMessageRepo) GetMessageByID(_ context.Context, id string) (*model.GuestMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, apperror.NotFound("message", id)
}

func (f *fakeMessageRepo) ListVisibleMessages(_ context.Context, opts repository.ListOptions) ([]model.GuestMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.GuestMessage
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].Visible() {
			out = append(out, f.messages[i])
		}
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// fakeProvider is an in-memory storage.Provider.
type fakeProvider struct {
	mu        sync.Mutex
	folders   map[string][]storage.File
	uploads   map[string]string
	listErr   error
	uploadErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{folders: make(map[string][]storage.File), uploads: make(map[string]string)}
}

func (f *fakeProvider) List(_ context.Context, folder string) ([]storage.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]storage.File(nil), f.folders[folder]...), nil
}

func (f *fakeProvider) Upload(_ context.Context, folder, name, contentType string, r io.Reader) (*storage.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	file := storage.File{
		ID:        folder + "/" + name,
		Name:      name,
		MimeType:  contentType,
		ViewURL:   "https://files.example/" + folder + "/" + name,
		CreatedAt: time.Date(2026, 2, 21, 15, 0, 0, 0, time.UTC),
	}
	f.folders[folder] = append(f.folders[folder], file)
	f.uploads[file.ID] = string(body)
	return &file, nil
}
