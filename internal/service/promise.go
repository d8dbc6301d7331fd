// Package service holds the business rules of the API.
//
// THE LAYERS:
//
//	Handler (HTTP)   → decodes requests, writes JSON, sets cookies
//	Service          → validates, rate limits, orchestrates, classifies errors
//	Repository (SQL) → reads and writes rows
//
// Services never see an http.Request and never pick a status code. They
// return *apperror.AppError values (wrapping a sentinel) whose Message is
// safe to show a client. Anything else that goes wrong (SQL, SMTP, signing)
// is logged here with full detail and replaced by a generic AppError before
// it leaves the package.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/config"
	"github.com/picketly/api/internal/mailer"
	"github.com/picketly/api/internal/metrics"
	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/ratelimit"
	"github.com/picketly/api/internal/repository"
	"github.com/picketly/api/internal/validate"
)

// Client-facing messages.
const (
	MsgMissingFields   = "Missing required fields."
	MsgInvalidEmail    = "Invalid email address."
	MsgTooManyAttempts = "Too many attempts from this network. Please wait and try again."
	MsgCooldown        = "Please wait a moment before requesting another confirmation email."
	MsgTooManyEmails   = "Too many confirmation emails requested for this address. Please wait and try again."
	MsgSubmitFailed    = "Failed to submit promise."
	MsgMissingToken    = "Missing token."
	MsgInvalidToken    = "Invalid or expired token."
	MsgConfirmFailed   = "Failed to confirm promise."

	MsgEmailSent  = "Magic-link email sent."
	MsgLinkLogged = "Magic-link generated (logged on server)."

	ConfirmSubject = "Confirm your founding promise for the League"
	confirmPath    = "/api/promises/confirm"
)

// PromiseStore is the slice of repository.Store the promise workflow needs.
type PromiseStore interface {
	repository.UserRepository
	repository.PromiseRepository
}

// Limiter gates magic-link sends. *ratelimit.Limiter satisfies it.
type Limiter interface {
	CheckIP(ctx context.Context, ip string) error
	Admit(ctx context.Context, ip, email string) error
}

var _ Limiter = (*ratelimit.Limiter)(nil)

// TokenIssuer signs and checks the workflow's tokens. *auth.TokenService
// satisfies it.
type TokenIssuer interface {
	IssueMagicLink(userID, promiseID string) (string, error)
	VerifyMagicLink(token string) (*auth.MagicLinkClaims, error)
	IssueSession(userID string) (string, error)
	MagicLinkTTL() time.Duration
}

var _ TokenIssuer = (*auth.TokenService)(nil)

// PromiseService runs the two halves of the magic-link flow: Submit records a
// pending promise and sends its confirmation link, Confirm consumes the link.
//
// DEPENDENCIES:
//   - store    may be nil when no database is configured; every call then
//     fails with a configuration error before touching it
//   - tokens   may be nil when JWT_SECRET is unset, same treatment. Pass an
//     untyped nil, not a nil *auth.TokenService
//   - sender   nil means "log the link instead of mailing it"
//   - metrics  nil records nothing
type PromiseService struct {
	cfg     config.Config
	store   PromiseStore
	limiter Limiter
	tokens  TokenIssuer
	sender  mailer.Sender
	metrics *metrics.Registry
	logger  *slog.Logger
}

func NewPromiseService(
	cfg config.Config,
	store PromiseStore,
	limiter Limiter,
	tokens TokenIssuer,
	sender mailer.Sender,
	m *metrics.Registry,
	logger *slog.Logger,
) *PromiseService {
	return &PromiseService{
		cfg:     cfg,
		store:   store,
		limiter: limiter,
		tokens:  tokens,
		sender:  sender,
		metrics: m,
		logger:  logger,
	}
}

// SubmitInput is a decoded POST /api/promises body plus the caller's IP.
type SubmitInput struct {
	OpportunityKey string          `json:"opportunity_key"`
	Email          string          `json:"email"`
	FullName       string          `json:"full_name"`
	Payload        json.RawMessage `json:"payload"`
	ClientIP       string          `json:"-"`
}

// SubmitResult is what the handler sends back on success.
type SubmitResult struct {
	Promise model.PromiseSummary `json:"promise"`
	Message string               `json:"message"`
}

// Submit validates in, applies the rate limits, stores the user and a
// pending promise, and dispatches a confirmation link.
//
// ORDER MATTERS:
//  1. configuration (database, JWT secret, base URL)
//  2. the IP cap, without counting the request
//  3. required fields, then the email address
//  4. Admit, which counts the request only if it passes every limit
//  5. writes, token, delivery
//
// A request that fails validation never consumes rate-limit budget.
func (s *PromiseService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := s.requireSubmitConfig(); err != nil {
		s.metrics.Submitted(metrics.OutcomeError)
		return nil, err
	}

	if err := s.limiter.CheckIP(ctx, in.ClientIP); err != nil {
		return nil, s.rateLimitError(err, in.ClientIP, "")
	}

	if strings.TrimSpace(in.OpportunityKey) == "" ||
		strings.TrimSpace(in.Email) == "" ||
		strings.TrimSpace(in.FullName) == "" ||
		blankPayload(in.Payload) {
		s.metrics.Submitted(metrics.OutcomeRejected)
		return nil, apperror.ValidationFailed("", MsgMissingFields)
	}
	if !validate.IsSafeEmailAddress(in.Email) {
		s.metrics.Submitted(metrics.OutcomeRejected)
		return nil, apperror.ValidationFailed("email", MsgInvalidEmail)
	}

	email := strings.ToLower(in.Email)

	if err := s.limiter.Admit(ctx, in.ClientIP, email); err != nil {
		return nil, s.rateLimitError(err, in.ClientIP, email)
	}

	user, err := s.store.UpsertUserByEmail(ctx, email, in.FullName)
	if err != nil {
		return nil, s.submitFailed("upserting user", err)
	}

	p := &model.Promise{
		UserID:         user.ID,
		OpportunityKey: in.OpportunityKey,
		Payload:        in.Payload,
	}
	if err := s.store.CreatePromise(ctx, p); err != nil {
		return nil, s.submitFailed("inserting promise", err, slog.String("userID", user.ID))
	}

	token, err := s.tokens.IssueMagicLink(user.ID, p.ID)
	if err != nil {
		return nil, s.submitFailed("issuing magic link", err, slog.String("promiseID", p.ID))
	}
	link := s.ConfirmURL(token)

	message, err := s.deliver(ctx, in.FullName, email, link, p.ID)
	if err != nil {
		return nil, s.submitFailed("sending magic link", err, slog.String("promiseID", p.ID))
	}

	s.metrics.Submitted(metrics.OutcomeOK)
	s.logger.Info("promise submitted",
		slog.String("promiseID", p.ID),
		slog.String("userID", user.ID),
		slog.String("opportunityKey", p.OpportunityKey),
	)

	return &SubmitResult{Promise: p.Summary(), Message: message}, nil
}

// ConfirmURL builds the link mailed to the user.
func (s *PromiseService) ConfirmURL(token string) string {
	return s.cfg.AppBaseURL + confirmPath + "?token=" + url.QueryEscape(token)
}

// deliver mails the link, or logs it when no sender is configured.
func (s *PromiseService) deliver(ctx context.Context, fullName, email, link, promiseID string) (string, error) {
	if s.sender == nil {
		s.metrics.MagicLink(metrics.DeliveryLogged)
		s.logger.Warn("magic link generated, SMTP not configured",
			slog.String("promiseID", promiseID),
			slog.String("url", link),
		)
		return MsgLinkLogged, nil
	}

	msg := mailer.Message{
		From:    mailer.Address{Name: s.cfg.Mail.FromName, Address: s.cfg.Mail.FromEmail},
		To:      mailer.Address{Name: validate.SafeName(fullName), Address: email},
		Subject: ConfirmSubject,
		Body:    confirmBody(link, s.tokens.MagicLinkTTL().String()),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.MagicLink(metrics.DeliveryFailed)
		return "", err
	}
	s.metrics.MagicLink(metrics.DeliveryEmail)
	return MsgEmailSent, nil
}

func confirmBody(link, expiry string) string {
	var b strings.Builder
	b.WriteString("Thanks for making a founding promise.\n\n")
	b.WriteString("Confirm your email address to submit it:\n\n")
	b.WriteString(link)
	b.WriteString("\n\nThis link expires in ")
	b.WriteString(expiry)
	b.WriteString(". If you did not request it, you can ignore this message.\n")
	return b.String()
}

// ConfirmResult tells the handler which cookie to set and where to send
// the browser.
type ConfirmResult struct {
	UserID       string
	PromiseID    string
	SessionToken string
	RedirectURL  string
}

// Confirm consumes a magic-link token: it verifies the user's email and
// submits the promise in one transaction, then issues a session.
//
// Every token problem, including a transaction that finds no rows to
// update, produces the same "Invalid or expired token." error so a caller
// can't probe which part was wrong.
func (s *PromiseService) Confirm(ctx context.Context, token string) (*ConfirmResult, error) {
	if err := s.requireConfirmConfig(); err != nil {
		s.metrics.Confirmed(metrics.OutcomeError)
		return nil, err
	}

	if token == "" {
		s.metrics.Confirmed(metrics.OutcomeInvalid)
		return nil, apperror.InvalidToken(MsgMissingToken)
	}

	claims, err := s.tokens.VerifyMagicLink(token)
	if err != nil {
		s.metrics.Confirmed(metrics.OutcomeInvalid)
		s.logger.Info("magic link rejected", slog.String("error", err.Error()))
		return nil, apperror.InvalidToken(MsgInvalidToken)
	}

	if err := s.store.ConfirmEmail(ctx, claims.UserID, claims.PromiseID); err != nil {
		s.metrics.Confirmed(metrics.OutcomeInvalid)
		s.logger.Warn("confirmation transaction failed",
			slog.String("userID", claims.UserID),
			slog.String("promiseID", claims.PromiseID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.InvalidToken(MsgInvalidToken)
	}

	session, err := s.tokens.IssueSession(claims.UserID)
	if err != nil {
		s.metrics.Confirmed(metrics.OutcomeError)
		s.logger.Error("issuing session failed",
			slog.String("userID", claims.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/promise: issuing session: %w", apperror.Internal(MsgConfirmFailed))
	}

	s.metrics.Confirmed(metrics.OutcomeOK)
	s.logger.Info("promise confirmed",
		slog.String("promiseID", claims.PromiseID),
		slog.String("userID", claims.UserID),
	)

	return &ConfirmResult{
		UserID:       claims.UserID,
		PromiseID:    claims.PromiseID,
		SessionToken: session,
		RedirectURL:  s.cfg.ThankYouURL,
	}, nil
}

// SecureCookies reports whether session cookies should carry Secure.
func (s *PromiseService) SecureCookies() bool {
	return s.cfg.IsProduction()
}

// =========================================================================
// HELPERS
// =========================================================================

func (s *PromiseService) requireSubmitConfig() error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if err := s.requireTokens(); err != nil {
		return err
	}
	return s.cfg.RequireBaseURL()
}

func (s *PromiseService) requireConfirmConfig() error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if err := s.requireTokens(); err != nil {
		return err
	}
	return s.cfg.RequireThankYouURL()
}

func (s *PromiseService) requireStore() error {
	if err := s.cfg.RequireDatabase(); err != nil {
		return err
	}
	if s.store == nil {
		return apperror.ConfigMissing("database", "no connection available")
	}
	return nil
}

func (s *PromiseService) requireTokens() error {
	if err := s.cfg.RequireJWTSecret(); err != nil {
		return err
	}
	if s.tokens == nil {
		return apperror.ConfigMissing("JWT_SECRET", "")
	}
	return nil
}

// rateLimitError maps a limiter rejection to its 429 message. Limiter
// failures that are not rejections (a Redis outage) are internal errors:
// the request is refused rather than waved through.
func (s *PromiseService) rateLimitError(err error, ip, email string) error {
	var msg, reason string
	switch {
	case errors.Is(err, ratelimit.ErrTooManyAttempts):
		msg, reason = MsgTooManyAttempts, "ip"
	case errors.Is(err, ratelimit.ErrCooldown):
		msg, reason = MsgCooldown, "cooldown"
	case errors.Is(err, ratelimit.ErrTooManyEmails):
		msg, reason = MsgTooManyEmails, "email"
	default:
		return s.submitFailed("checking rate limit", err, slog.String("ip", ip))
	}

	s.metrics.RateLimited(reason)
	s.metrics.Submitted(metrics.OutcomeRejected)
	s.logger.Info("magic link rate limited",
		slog.String("reason", reason),
		slog.String("ip", ip),
		slog.String("email", email),
	)
	return apperror.RateLimited(msg)
}

func (s *PromiseService) submitFailed(step string, err error, attrs ...any) error {
	s.metrics.Submitted(metrics.OutcomeError)
	args := append([]any{slog.String("step", step), slog.String("error", err.Error())}, attrs...)
	s.logger.Error("promise submission failed", args...)
	return fmt.Errorf("service/promise: %s: %w", step, apperror.Internal(MsgSubmitFailed))
}

// blankPayload reports an absent, empty or null payload.
func blankPayload(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) == 0 || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte(`""`))
}
