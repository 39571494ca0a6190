package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/ichiba/internal/model"
)

// mockWishlistStore はインメモリのウィッシュリストストア。
type mockWishlistStore struct {
	items map[model.ItemKey]*model.StoredWishlistItem
}

func newMockWishlistStore() *mockWishlistStore {
	return &mockWishlistStore{items: make(map[model.ItemKey]*model.StoredWishlistItem)}
}

func (m *mockWishlistStore) ListByUserID(ctx context.Context, userID string) ([]model.StoredWishlistItem, error) {
	var out []model.StoredWishlistItem
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockWishlistStore) AddItem(ctx context.Context, userID string, item model.WishlistItem) error {
	key := item.Key()
	if existing, ok := m.items[key]; ok && existing.UserID == userID {
		return nil // ON CONFLICT DO NOTHING相当
	}
	m.items[key] = &model.StoredWishlistItem{
		UserID:    userID,
		ProductID: item.ProductID,
		Variant:   item.Variant,
	}
	return nil
}

func (m *mockWishlistStore) RemoveItem(ctx context.Context, userID string, key model.ItemKey) error {
	if existing, ok := m.items[key]; ok && existing.UserID == userID {
		delete(m.items, key)
	}
	return nil
}

var _ WishlistStore = (*mockWishlistStore)(nil)

// TestWishlistHandler_Add はエントリの追加を検証する。
func TestWishlistHandler_Add(t *testing.T) {
	h := NewWishlistHandler(newMockWishlistStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/wishlist", `{"productId":"prod-1","variant":"blue"}`))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	items := itemsFromBody(t, resp)
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1", len(items))
	}
	if items[0]["productId"] != "prod-1" {
		t.Errorf("productId = %v, want prod-1", items[0]["productId"])
	}
	if items[0]["variant"] != "blue" {
		t.Errorf("variant = %v, want blue", items[0]["variant"])
	}
}

// TestWishlistHandler_Add_DuplicateIsNoop は同一キーの再追加が重複を生まないことを検証する。
func TestWishlistHandler_Add_DuplicateIsNoop(t *testing.T) {
	h := NewWishlistHandler(newMockWishlistStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/wishlist", `{"productId":"prod-1"}`))
	w = httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/wishlist", `{"productId":"prod-1"}`))

	if items := itemsFromBody(t, w.Result()); len(items) != 1 {
		t.Errorf("items length = %d, want 1", len(items))
	}
}

// TestWishlistHandler_Add_MissingProductID はproductIdなしで400が返ることを検証する。
func TestWishlistHandler_Add_MissingProductID(t *testing.T) {
	h := NewWishlistHandler(newMockWishlistStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/wishlist", `{"variant":"blue"}`))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestWishlistHandler_Remove はエントリの削除を検証する。
func TestWishlistHandler_Remove(t *testing.T) {
	h := NewWishlistHandler(newMockWishlistStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/wishlist", `{"productId":"prod-1"}`))

	w = httptest.NewRecorder()
	h.Remove(w, authedRequest(http.MethodDelete, "/api/wishlist?productId=prod-1", ""))

	if items := itemsFromBody(t, w.Result()); len(items) != 0 {
		t.Errorf("items length = %d, want 0", len(items))
	}
}

// TestWishlistHandler_NoPrincipal はプリンシパルなしで401が返ることを検証する。
func TestWishlistHandler_NoPrincipal(t *testing.T) {
	h := NewWishlistHandler(newMockWishlistStore())

	req := httptest.NewRequest(http.MethodGet, "/api/wishlist", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
