package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/model"
)

// WishlistStore はウィッシュリストハンドラーが必要とするストアインターフェース。
// repository.WishlistRepositoryの部分集合として定義する。
type WishlistStore interface {
	ListByUserID(ctx context.Context, userID string) ([]model.StoredWishlistItem, error)
	AddItem(ctx context.Context, userID string, item model.WishlistItem) error
	RemoveItem(ctx context.Context, userID string, key model.ItemKey) error
}

// WishlistHandler はウィッシュリスト管理のHTTPハンドラー。
type WishlistHandler struct {
	store WishlistStore
}

// NewWishlistHandler はWishlistHandlerを生成する。
func NewWishlistHandler(store WishlistStore) *WishlistHandler {
	return &WishlistHandler{store: store}
}

// wishlistItemResponse はウィッシュリストエントリのAPIレスポンス。
type wishlistItemResponse struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant,omitempty"`
}

// List はウィッシュリストの全エントリを返す。
// GET /api/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	h.respondWithList(w, r, principal.ID)
}

// Add はウィッシュリストへエントリを追加する。同一キーへの追加はno-opとなる。
// POST /api/wishlist
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	var req struct {
		ProductID string `json:"productId"`
		Variant   string `json:"variant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	item := model.WishlistItem{ProductID: req.ProductID, Variant: req.Variant}
	if err := h.store.AddItem(r.Context(), principal.ID, item); err != nil {
		slog.Error("failed to add wishlist item", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondWithList(w, r, principal.ID)
}

// Remove は指定エントリを削除する。キーはクエリパラメータで受け取る。
// DELETE /api/wishlist?productId=xxx&variant=yyy
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	productID := r.URL.Query().Get("productId")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	key := model.ItemKey{ProductID: productID, Variant: r.URL.Query().Get("variant")}
	if err := h.store.RemoveItem(r.Context(), principal.ID, key); err != nil {
		slog.Error("failed to remove wishlist item", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondWithList(w, r, principal.ID)
}

// respondWithList は最新のウィッシュリスト内容を{success, items}形式で返す。
func (h *WishlistHandler) respondWithList(w http.ResponseWriter, r *http.Request, userID string) {
	stored, err := h.store.ListByUserID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list wishlist items", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]wishlistItemResponse, 0, len(stored))
	for _, item := range stored {
		items = append(items, wishlistItemResponse{
			ProductID: item.ProductID,
			Variant:   item.Variant,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
	})
}
