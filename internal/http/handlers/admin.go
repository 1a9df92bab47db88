package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendly/spendly/internal/domain/user"
)

type UserLister interface {
	List(ctx context.Context) ([]user.User, error)
}

// AdminHandler is the only surface gated by role rather than ownership.
type AdminHandler struct {
	users UserLister
	log   *slog.Logger
}

func NewAdminHandler(users UserLister, log *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, log: log}
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	users, err := h.users.List(cctx)

	if err != nil {
		h.log.Error("list users", "err", err)
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(users),
		"data":    users,
	})
}
