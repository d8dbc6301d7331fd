package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

// =========================================================================
// STUBS
// =========================================================================

type stubPromises struct {
	gotInput service.SubmitInput
	gotToken string
	submit   *service.SubmitResult
	confirm  *service.ConfirmResult
	err      error
	secure   bool
}

func (s *stubPromises) Submit(_ context.Context, in service.SubmitInput) (*service.SubmitResult, error) {
	s.gotInput = in
	return s.submit, s.err
}

func (s *stubPromises) Confirm(_ context.Context, token string) (*service.ConfirmResult, error) {
	s.gotToken = token
	return s.confirm, s.err
}

func (s *stubPromises) SecureCookies() bool { return s.secure }

type stubOpportunities struct {
	gotCategory string
	opps        []model.Opportunity
	err         error
}

func (s *stubOpportunities) List(_ context.Context, category string) ([]model.Opportunity, error) {
	s.gotCategory = category
	return s.opps, s.err
}

type stubArtworks struct {
	gotKey      string
	gotSignedIn bool
	arts        []model.Artwork
	err         error
}

func (s *stubArtworks) List(_ context.Context, key string, signedIn bool) ([]model.Artwork, error) {
	s.gotKey, s.gotSignedIn = key, signedIn
	return s.arts, s.err
}

type stubAccounts struct {
	gotUserID string
	user      *model.User
	err       error
}

func (s *stubAccounts) Me(_ context.Context, userID string) (*model.User, error) {
	s.gotUserID = userID
	return s.user, s.err
}

// =========================================================================
// RESPONSE HELPERS
// =========================================================================

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("email", "Invalid email address."), 400, "validation_error", "Invalid email address."},
		{"token", apperror.InvalidToken("Invalid or expired token."), 400, "invalid_token", "Invalid or expired token."},
		{"unauthorized", apperror.Unauthorized("Not signed in."), 401, "unauthorized", "Not signed in."},
		{"not found", apperror.NotFound("promise", "p1"), 404, "not_found", "promise not found with id p1"},
		{"rate limited", apperror.RateLimited("slow down"), 429, "rate_limited", "slow down"},
		{"config", apperror.ConfigMissing("JWT_SECRET", ""), 500, "config_error", "JWT_SECRET is not configured."},
		{"internal wrapped", fmt.Errorf("step: %w", apperror.Internal("Failed to submit promise.")), 500, "internal_error", "Failed to submit promise."},
		{"unknown", errors.New(`pq: relation "users" does not exist`), 500, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

// =========================================================================
// PROMISES
// =========================================================================

func TestHandleSubmit_Success(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubPromises{submit: &service.SubmitResult{
		Promise: model.PromiseSummary{
			ID:             "p1",
			Status:         model.PromiseStatusPending,
			OpportunityKey: "launch-1",
			CreatedAt:      created,
		},
		Message: service.MsgLinkLogged,
	}}
	h := NewPromiseHandler(stub, discardLogger())

	body := `{"opportunity_key":"launch-1","email":"a@b.com","full_name":"A B","payload":{"x":1}}`
	req := httptest.NewRequest(http.MethodPost, "/api/promises", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:51234"
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"promise": {"id":"p1","status":"pending_email_verification","opportunity_key":"launch-1","created_at":"2026-03-01T12:00:00Z"},
		"message": "Magic-link generated (logged on server)."
	}`, rec.Body.String())

	assert.Equal(t, "launch-1", stub.gotInput.OpportunityKey)
	assert.Equal(t, "a@b.com", stub.gotInput.Email)
	assert.Equal(t, "A B", stub.gotInput.FullName)
	assert.JSONEq(t, `{"x":1}`, string(stub.gotInput.Payload))
	assert.Equal(t, "192.0.2.10", stub.gotInput.ClientIP)
}

func TestHandleSubmit_ClientCannotChooseIP(t *testing.T) {
	stub := &stubPromises{submit: &service.SubmitResult{}}
	h := NewPromiseHandler(stub, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/promises", strings.NewReader(`{"ClientIP":"1.2.3.4"}`))
	req.RemoteAddr = "192.0.2.10:51234"
	h.HandleSubmit(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.10", stub.gotInput.ClientIP)
}

func TestHandleSubmit_InvalidJSON(t *testing.T) {
	h := NewPromiseHandler(&stubPromises{}, discardLogger())

	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, httptest.NewRequest(http.MethodPost, "/api/promises", strings.NewReader(`{"email":`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Code)
}

func TestHandleSubmit_BodyTooLarge(t *testing.T) {
	h := NewPromiseHandler(&stubPromises{}, discardLogger())

	big := `{"payload":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, httptest.NewRequest(http.MethodPost, "/api/promises", bytes.NewBufferString(big)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, rec).Code)
}

func TestHandleSubmit_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"missing fields", apperror.ValidationFailed("", service.MsgMissingFields), http.StatusBadRequest},
		{"cooldown", apperror.RateLimited(service.MsgCooldown), http.StatusTooManyRequests},
		{"config", apperror.ConfigMissing("APP_BASE_URL", ""), http.StatusInternalServerError},
		{"db", apperror.Internal(service.MsgSubmitFailed), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPromiseHandler(&stubPromises{err: tt.err}, discardLogger())

			rec := httptest.NewRecorder()
			h.HandleSubmit(rec, httptest.NewRequest(http.MethodPost, "/api/promises", strings.NewReader(`{}`)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var appErr *apperror.AppError
			require.True(t, errors.As(tt.err, &appErr))
			assert.Equal(t, appErr.Message, decodeError(t, rec).Error)
		})
	}
}

func TestHandleConfirm_SetsCookieAndRedirects(t *testing.T) {
	stub := &stubPromises{
		confirm: &service.ConfirmResult{
			SessionToken: "session-token",
			RedirectURL:  "https://picketly.test/thanks",
		},
		secure: true,
	}
	h := NewPromiseHandler(stub, discardLogger())

	rec := httptest.NewRecorder()
	h.HandleConfirm(rec, httptest.NewRequest(http.MethodGet, "/api/promises/confirm?token=a%2Bb", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://picketly.test/thanks", rec.Header().Get("Location"))
	assert.Equal(t, "a+b", stub.gotToken)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, auth.SessionCookieName, c.Name)
	assert.Equal(t, "session-token", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestHandleConfirm_InvalidToken(t *testing.T) {
	stub := &stubPromises{err: apperror.InvalidToken(service.MsgInvalidToken)}
	h := NewPromiseHandler(stub, discardLogger())

	rec := httptest.NewRecorder()
	h.HandleConfirm(rec, httptest.NewRequest(http.MethodGet, "/api/promises/confirm?token=bad", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgInvalidToken, decodeError(t, rec).Error)
	assert.Empty(t, rec.Result().Cookies())
}

// =========================================================================
// OPPORTUNITIES
// =========================================================================

func TestHandleList(t *testing.T) {
	opps := &stubOpportunities{opps: []model.Opportunity{
		{"key": "launch-1", "title": "Launch", "categories": []any{"art"}},
	}}
	h := NewOpportunityHandler(opps, &stubArtworks{}, discardLogger())

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities?category=art", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "art", opps.gotCategory)
	assert.JSONEq(t, `{"opportunities":[{"key":"launch-1","title":"Launch","categories":["art"]}]}`, rec.Body.String())
}

func TestHandleList_Failure(t *testing.T) {
	opps := &stubOpportunities{err: apperror.Internal("Failed to load opportunities.")}
	h := NewOpportunityHandler(opps, &stubArtworks{}, discardLogger())

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to load opportunities.", decodeError(t, rec).Error)
}

func serveArtwork(t *testing.T, h *OpportunityHandler, path string, viewer *auth.Viewer) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/opportunities/{key}/artwork", h.HandleArtwork)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if viewer != nil {
		req = req.WithContext(auth.WithViewer(req.Context(), *viewer))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleArtwork_Anonymous(t *testing.T) {
	url := "https://cdn.picketly.test/a1.png"
	arts := &stubArtworks{arts: []model.Artwork{{
		ID:             "a1",
		OpportunityKey: "launch-1",
		Type:           "image",
		Title:          "First",
		Visibility:     model.VisibilityPublic,
		ContentURL:     &url,
		ExhibitedBy:    model.ExhibitedBySeller,
		CreatedAt:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}}}
	h := NewOpportunityHandler(&stubOpportunities{}, arts, discardLogger())

	rec := serveArtwork(t, h, "/api/opportunities/launch-1/artwork", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "launch-1", arts.gotKey)
	assert.False(t, arts.gotSignedIn)
	assert.JSONEq(t, `{"artworks":[{
		"id":"a1","type":"image","title":"First","visibility":"public",
		"content_url":"https://cdn.picketly.test/a1.png","content_text":null,
		"created_at":"2026-02-01T00:00:00Z"
	}]}`, rec.Body.String())
}

func TestHandleArtwork_SignedIn(t *testing.T) {
	arts := &stubArtworks{arts: []model.Artwork{}}
	h := NewOpportunityHandler(&stubOpportunities{}, arts, discardLogger())

	rec := serveArtwork(t, h, "/api/opportunities/launch-1/artwork", &auth.Viewer{UserID: "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, arts.gotSignedIn)
	assert.JSONEq(t, `{"artworks":[]}`, rec.Body.String())
}

func TestHandleArtwork_ConfigError(t *testing.T) {
	arts := &stubArtworks{err: apperror.ConfigMissing("DATABASE_URL", "")}
	h := NewOpportunityHandler(&stubOpportunities{}, arts, discardLogger())

	rec := serveArtwork(t, h, "/api/opportunities/launch-1/artwork", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "config_error", decodeError(t, rec).Code)
}

// =========================================================================
// ACCOUNT
// =========================================================================

func TestHandleMe_SignedIn(t *testing.T) {
	stub := &stubAccounts{user: &model.User{ID: "u1", Email: "a@b.com", FullName: "A B", EmailVerified: true}}
	h := NewAccountHandler(stub, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(auth.WithViewer(req.Context(), auth.Viewer{UserID: "u1"}))
	rec := httptest.NewRecorder()
	h.HandleMe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", stub.gotUserID)
	assert.Contains(t, rec.Body.String(), `"email":"a@b.com"`)
	assert.Contains(t, rec.Body.String(), `"email_verified":true`)
}

func TestHandleMe_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"anonymous", apperror.Unauthorized(service.MsgNotSignedIn), http.StatusUnauthorized, "unauthorized"},
		{"user deleted", apperror.NotFound("user", "u1"), http.StatusNotFound, "not_found"},
		{"store down", apperror.Internal(service.MsgAccountFailed), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAccounts{err: tt.err}
			h := NewAccountHandler(stub, discardLogger())

			rec := httptest.NewRecorder()
			h.HandleMe(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			assert.Empty(t, stub.gotUserID, "anonymous viewer passes an empty id")
		})
	}
}
