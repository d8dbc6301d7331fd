package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/picketly/api/internal/apperror"
	"github.com/picketly/api/internal/config"
	"github.com/picketly/api/internal/model"
	"github.com/picketly/api/internal/repository"
)

const (
	MsgNotSignedIn   = "Not signed in."
	MsgAccountFailed = "Failed to load account."
)

// AccountService answers "who is signed in" for the session cookie set by
// Confirm.
type AccountService struct {
	cfg    config.Config
	users  repository.UserRepository
	logger *slog.Logger
}

func NewAccountService(cfg config.Config, users repository.UserRepository, logger *slog.Logger) *AccountService {
	return &AccountService{cfg: cfg, users: users, logger: logger}
}

// Me returns the user behind a verified session. An empty userID is an
// anonymous viewer. A session whose user row no longer exists is not found.
func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(MsgNotSignedIn)
	}
	if err := s.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	if s.users == nil {
		return nil, apperror.ConfigMissing("database", "no connection available")
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("loading account failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/account: %w", apperror.Internal(MsgAccountFailed))
	}
	return u, nil
}
