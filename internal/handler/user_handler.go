package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// refresh_tokens、cart_items、wishlist_items等は外部キーのCASCADEで一括削除される。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/profile
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	if err := h.service.Withdraw(r.Context(), principal.ID); err != nil {
		slog.Error("failed to withdraw user",
			slog.String("user_id", principal.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
