package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/model"
)

// mockCartStore はインメモリのカートストア。
type mockCartStore struct {
	items   map[model.ItemKey]*model.StoredCartItem
	listErr error
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{items: make(map[model.ItemKey]*model.StoredCartItem)}
}

func (m *mockCartStore) ListByUserID(ctx context.Context, userID string) ([]model.StoredCartItem, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.StoredCartItem
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *mockCartStore) AddItem(ctx context.Context, userID string, item model.CartItem) error {
	key := item.Key()
	if existing, ok := m.items[key]; ok && existing.UserID == userID {
		existing.Quantity += item.Quantity
		return nil
	}
	m.items[key] = &model.StoredCartItem{
		UserID:    userID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Variant:   item.Variant,
	}
	return nil
}

func (m *mockCartStore) SetQuantity(ctx context.Context, userID string, key model.ItemKey, quantity int) error {
	if existing, ok := m.items[key]; ok && existing.UserID == userID {
		existing.Quantity = quantity
	}
	return nil
}

func (m *mockCartStore) RemoveItem(ctx context.Context, userID string, key model.ItemKey) error {
	if existing, ok := m.items[key]; ok && existing.UserID == userID {
		delete(m.items, key)
	}
	return nil
}

var _ CartStore = (*mockCartStore)(nil)

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	principal := &model.Principal{
		ID:    "user-1",
		Email: "taro@example.com",
		Name:  "Taro",
		Role:  model.RoleCustomer,
	}
	return req.WithContext(middleware.ContextWithPrincipal(req.Context(), principal))
}

func itemsFromBody(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("success = %v, want true", body["success"])
	}
	raw, ok := body["items"].([]any)
	if !ok {
		t.Fatalf("expected items array, got %T", body["items"])
	}
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		items = append(items, entry.(map[string]any))
	}
	return items
}

// TestCartHandler_List_Empty は空カートで空のitems配列が返ることを検証する。
func TestCartHandler_List_Empty(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.List(w, authedRequest(http.MethodGet, "/api/cart", ""))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if items := itemsFromBody(t, resp); len(items) != 0 {
		t.Errorf("items length = %d, want 0", len(items))
	}
}

// TestCartHandler_List_NoPrincipal はプリンシパルなしで401が返ることを検証する。
func TestCartHandler_List_NoPrincipal(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestCartHandler_Add はラインの追加と更新後リストの返却を検証する。
func TestCartHandler_Add(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart",
		`{"productId":"prod-1","quantity":2,"variant":"red"}`))

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
	if items[0]["quantity"] != float64(2) {
		t.Errorf("quantity = %v, want 2", items[0]["quantity"])
	}
	if items[0]["variant"] != "red" {
		t.Errorf("variant = %v, want red", items[0]["variant"])
	}
}

// TestCartHandler_Add_AccumulatesQuantity は同一キーへの追加が数量加算になることを検証する。
func TestCartHandler_Add_AccumulatesQuantity(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"productId":"prod-1","quantity":2}`))
	w = httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"productId":"prod-1","quantity":3}`))

	items := itemsFromBody(t, w.Result())
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1", len(items))
	}
	if items[0]["quantity"] != float64(5) {
		t.Errorf("quantity = %v, want 5", items[0]["quantity"])
	}
}

// TestCartHandler_Add_DefaultQuantity は数量未指定で1が使われることを検証する。
func TestCartHandler_Add_DefaultQuantity(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"productId":"prod-1"}`))

	items := itemsFromBody(t, w.Result())
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1", len(items))
	}
	if items[0]["quantity"] != float64(1) {
		t.Errorf("quantity = %v, want 1", items[0]["quantity"])
	}
}

// TestCartHandler_Add_MissingProductID はproductIdなしで400が返ることを検証する。
func TestCartHandler_Add_MissingProductID(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"quantity":2}`))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestCartHandler_Update_ReplacesQuantity は数量の置き換えを検証する。
func TestCartHandler_Update_ReplacesQuantity(t *testing.T) {
	store := newMockCartStore()
	h := NewCartHandler(store)

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"productId":"prod-1","quantity":2}`))

	w = httptest.NewRecorder()
	h.Update(w, authedRequest(http.MethodPut, "/api/cart", `{"productId":"prod-1","quantity":7}`))

	items := itemsFromBody(t, w.Result())
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1", len(items))
	}
	if items[0]["quantity"] != float64(7) {
		t.Errorf("quantity = %v, want 7", items[0]["quantity"])
	}
}

// TestCartHandler_Update_ZeroRemoves は数量0が削除として扱われることを検証する。
func TestCartHandler_Update_ZeroRemoves(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"productId":"prod-1","quantity":2}`))

	w = httptest.NewRecorder()
	h.Update(w, authedRequest(http.MethodPut, "/api/cart", `{"productId":"prod-1","quantity":0}`))

	if items := itemsFromBody(t, w.Result()); len(items) != 0 {
		t.Errorf("items length = %d, want 0", len(items))
	}
}

// TestCartHandler_Remove はクエリパラメータ指定での削除を検証する。
func TestCartHandler_Remove(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"productId":"prod-1","quantity":2,"variant":"red"}`))
	w = httptest.NewRecorder()
	h.Add(w, authedRequest(http.MethodPost, "/api/cart", `{"productId":"prod-2","quantity":1}`))

	w = httptest.NewRecorder()
	h.Remove(w, authedRequest(http.MethodDelete, "/api/cart?productId=prod-1&variant=red", ""))

	items := itemsFromBody(t, w.Result())
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1", len(items))
	}
	if items[0]["productId"] != "prod-2" {
		t.Errorf("remaining productId = %v, want prod-2", items[0]["productId"])
	}
}

// TestCartHandler_Remove_MissingProductID はproductIdなしで400が返ることを検証する。
func TestCartHandler_Remove_MissingProductID(t *testing.T) {
	h := NewCartHandler(newMockCartStore())

	w := httptest.NewRecorder()
	h.Remove(w, authedRequest(http.MethodDelete, "/api/cart", ""))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
