package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/model"
)

// CartStore はカートハンドラーが必要とするストアインターフェース。
// repository.CartRepositoryの部分集合として定義する。
type CartStore interface {
	ListByUserID(ctx context.Context, userID string) ([]model.StoredCartItem, error)
	AddItem(ctx context.Context, userID string, item model.CartItem) error
	SetQuantity(ctx context.Context, userID string, key model.ItemKey, quantity int) error
	RemoveItem(ctx context.Context, userID string, key model.ItemKey) error
}

// CartHandler はカート管理のHTTPハンドラー。
type CartHandler struct {
	store CartStore
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(store CartStore) *CartHandler {
	return &CartHandler{store: store}
}

// cartItemResponse はカートラインのAPIレスポンス。
type cartItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

// cartUpdateRequest はカート更新リクエストのボディ。
type cartUpdateRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant"`
}

// List はカートの全ラインを返す。
// GET /api/cart
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	h.respondWithList(w, r, principal.ID)
}

// Add はカートへラインを追加する。同一(productId, variant)への追加は数量加算となる。
// POST /api/cart
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	var req cartUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	item := model.CartItem{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Variant:   req.Variant,
	}
	if err := h.store.AddItem(r.Context(), principal.ID, item); err != nil {
		slog.Error("failed to add cart item", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondWithList(w, r, principal.ID)
}

// Update は指定ラインの数量を置き換える。数量0以下は削除として扱う。
// PUT /api/cart
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	var req cartUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	key := model.ItemKey{ProductID: req.ProductID, Variant: req.Variant}
	if req.Quantity <= 0 {
		err = h.store.RemoveItem(r.Context(), principal.ID, key)
	} else {
		err = h.store.SetQuantity(r.Context(), principal.ID, key, req.Quantity)
	}
	if err != nil {
		slog.Error("failed to update cart item", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondWithList(w, r, principal.ID)
}

// Remove は指定ラインを削除する。キーはクエリパラメータで受け取る。
// DELETE /api/cart?productId=xxx&variant=yyy
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
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
		slog.Error("failed to remove cart item", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondWithList(w, r, principal.ID)
}

// respondWithList は最新のカート内容を{success, items}形式で返す。
func (h *CartHandler) respondWithList(w http.ResponseWriter, r *http.Request, userID string) {
	stored, err := h.store.ListByUserID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list cart items", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]cartItemResponse, 0, len(stored))
	for _, item := range stored {
		items = append(items, cartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Variant:   item.Variant,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
	})
}
