package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/service"
)

// MaxBodyBytes caps a JSON request body.
const MaxBodyBytes = 1 << 20

// PromiseWorkflow is satisfied by *service.PromiseService.
type PromiseWorkflow interface {
	Submit(ctx context.Context, in service.SubmitInput) (*service.SubmitResult, error)
	Confirm(ctx context.Context, token string) (*service.ConfirmResult, error)
	SecureCookies() bool
}

// PromiseHandler serves the magic-link flow.
//
//   - HandleSubmit  → record a pending promise, mail the confirmation link
//   - HandleConfirm → consume the link, set the session cookie, redirect
type PromiseHandler struct {
	promises PromiseWorkflow
	logger   *slog.Logger
}

func NewPromiseHandler(promises PromiseWorkflow, logger *slog.Logger) *PromiseHandler {
	return &PromiseHandler{promises: promises, logger: logger}
}

// HandleSubmit records a promise.
//
// HTTP: POST /api/promises
// REQUEST BODY: {"opportunity_key": "...", "email": "...", "full_name": "...", "payload": {...}}
// RESPONSE:     {"promise": {"id", "status", "opportunity_key", "created_at"}, "message": "..."}
func (h *PromiseHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var in service.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "Request body too large.",
				Code:  "payload_too_large",
			})
			return
		}
		h.logger.Debug("invalid promise JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("", "Invalid JSON body."))
		return
	}
	in.ClientIP = clientIP(r)

	res, err := h.promises.Submit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleConfirm is the target of the mailed link.
//
// HTTP: GET /api/promises/confirm?token=...
//
// On success it sets the picketly_session cookie and answers 303 See Other,
// so the browser follows with a GET to the thank-you page. Failures are
// JSON with status 400 (token) or 500 (configuration).
func (h *PromiseHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := h.promises.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.SessionToken, h.promises.SecureCookies())
	http.Redirect(w, r, res.RedirectURL, http.StatusSeeOther)
}

// clientIP returns the caller's address without its port. Behind trusted
// proxies, middleware.ClientIP has already replaced RemoteAddr with the
// address they forwarded.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
