package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/config"
	"github.com/picketly/api/internal/mailer"
	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory PromiseStore and ArtworkRepository.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User // by email
	promises map[string]*model.Promise
	artworks []model.Artwork
	nextID   int

	upsertErr  error
	getErr     error
	createErr  error
	confirmErr error
	listErr    error

	lastFilter repository.ArtworkFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		promises: make(map[string]*model.Promise),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) UpsertUserByEmail(_ context.Context, email, fullName string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	u, ok := f.users[email]
	if !ok {
		u = &model.User{ID: f.id("user"), Email: email, CreatedAt: time.Now()}
		f.users[email] = u
	}
	u.FullName = fullName
	u.UpdatedAt = time.Now()
	out := *u
	return &out, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeStore) CreatePromise(_ context.Context, p *model.Promise) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = f.id("promise")
	p.Status = model.PromiseStatusPending
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	f.promises[p.ID] = &stored
	return nil
}

func (f *fakeStore) promiseByID(_ context.Context, id string) (*model.Promise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promises[id]
	if !ok {
		return nil, apperror.NotFound("promise", id)
	}
	out := *p
	return &out, nil
}

func (f *fakeStore) ConfirmEmail(_ context.Context, userID, promiseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	var user *model.User
	for _, u := range f.users {
		if u.ID == userID {
			user = u
		}
	}
	p, ok := f.promises[promiseID]
	if user == nil || !ok {
		return errors.New("fake: no rows")
	}
	user.EmailVerified = true
	p.Status = model.PromiseStatusSubmitted
	return nil
}

func (f *fakeStore) ListArtworks(_ context.Context, key string, filter repository.ArtworkFilter) ([]model.Artwork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Artwork
	for _, a := range f.artworks {
		if a.OpportunityKey != key {
			continue
		}
		for _, v := range filter.Visibilities {
			if a.Visibility == v {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) user(email string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email]
}

// =========================================================================
// FAKE SENDER
// =========================================================================

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

const testSecret = "test-secret-that-is-long-enough"

// captureLogger records log output so tests can inspect logged links.
type captureLogger struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *captureLogger) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *captureLogger) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		Env:             "development",
		AppBaseURL:      "https://api.picketly.test",
		ThankYouURL:     "https://picketly.test/thanks",
		JWTSecret:       testSecret,
		MagicLinkExpiry: time.Hour,
		DB: config.DBConfig{
			Driver: config.DriverPostgres,
			URL:    "postgres://localhost/picketly",
		},
		Mail: config.MailConfig{
			FromEmail: "no-reply@picketly.test",
			FromName:  "Picketly",
		},
	}
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return tokens
}
