package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/model"
)

// AccountReader is satisfied by *service.AccountService.
type AccountReader interface {
	Me(ctx context.Context, userID string) (*model.User, error)
}

type AccountHandler struct {
	accounts AccountReader
	logger   *slog.Logger
}

func NewAccountHandler(accounts AccountReader, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me
// Auth: session cookie (see auth.OptionalSession). Without one → 401.
//
// The frontend calls this on load to learn whether the visitor has already
// confirmed a promise in this browser.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.ViewerFromContext(r.Context())

	user, err := h.accounts.Me(r.Context(), viewer.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
