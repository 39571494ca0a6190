package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

type mockEventLister struct {
	listRecentFn func(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error)
}

func (m *mockEventLister) ListRecent(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, eventType, limit)
	}
	return nil, nil
}

var _ SecurityEventLister = (*mockEventLister)(nil)

// TestAdminHandler_ListSecurityEvents は最近のイベントが返ることを検証する。
func TestAdminHandler_ListSecurityEvents(t *testing.T) {
	userID := "user-1"
	lister := &mockEventLister{
		listRecentFn: func(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error) {
			if limit != defaultEventLimit {
				t.Errorf("limit = %d, want %d", limit, defaultEventLimit)
			}
			return []*model.SecurityEvent{
				{
					ID:        "event-1",
					UserID:    &userID,
					Type:      model.EventFailedLogin,
					IPAddress: "203.0.113.10",
					CreatedAt: time.Now(),
				},
				{
					ID:        "event-2",
					UserID:    nil, // 退会済みユーザーのイベントは匿名化される
					Type:      model.EventUnauthorizedAccess,
					CreatedAt: time.Now(),
				},
			}, nil
		},
	}
	h := NewAdminHandler(lister)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/security-events", nil)
	w := httptest.NewRecorder()
	h.ListSecurityEvents(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body := decodeBody(t, resp)
	events, ok := body["events"].([]any)
	if !ok {
		t.Fatal("expected events array in response")
	}
	if len(events) != 2 {
		t.Fatalf("events length = %d, want 2", len(events))
	}

	first := events[0].(map[string]any)
	if first["type"] != "failed_login" {
		t.Errorf("events[0].type = %v, want failed_login", first["type"])
	}
	if first["userId"] != "user-1" {
		t.Errorf("events[0].userId = %v, want user-1", first["userId"])
	}

	second := events[1].(map[string]any)
	if second["userId"] != nil {
		t.Errorf("events[1].userId = %v, want null", second["userId"])
	}
}

// TestAdminHandler_ListSecurityEvents_FilterAndLimit はtype・limitパラメータの伝搬を検証する。
func TestAdminHandler_ListSecurityEvents_FilterAndLimit(t *testing.T) {
	var gotType model.SecurityEventType
	var gotLimit int
	lister := &mockEventLister{
		listRecentFn: func(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error) {
			gotType = eventType
			gotLimit = limit
			return nil, nil
		},
	}
	h := NewAdminHandler(lister)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/security-events?type=account_locked&limit=100", nil)
	w := httptest.NewRecorder()
	h.ListSecurityEvents(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotType != model.EventAccountLocked {
		t.Errorf("event type = %q, want %q", gotType, model.EventAccountLocked)
	}
	if gotLimit != 100 {
		t.Errorf("limit = %d, want 100", gotLimit)
	}
}

// TestAdminHandler_ListSecurityEvents_LimitCapped は過大なlimitが上限に丸められることを検証する。
func TestAdminHandler_ListSecurityEvents_LimitCapped(t *testing.T) {
	var gotLimit int
	lister := &mockEventLister{
		listRecentFn: func(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	h := NewAdminHandler(lister)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/security-events?limit=10000", nil)
	w := httptest.NewRecorder()
	h.ListSecurityEvents(w, req)

	if gotLimit != maxEventLimit {
		t.Errorf("limit = %d, want %d", gotLimit, maxEventLimit)
	}
}

// TestAdminHandler_ListSecurityEvents_InvalidLimit は不正なlimitで400が返ることを検証する。
func TestAdminHandler_ListSecurityEvents_InvalidLimit(t *testing.T) {
	h := NewAdminHandler(&mockEventLister{})

	for _, limit := range []string{"abc", "-1", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/security-events?limit="+limit, nil)
		w := httptest.NewRecorder()
		h.ListSecurityEvents(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", limit, w.Result().StatusCode, http.StatusBadRequest)
		}
	}
}

// TestAdminHandler_ListSecurityEvents_StoreError はストア障害で500が返ることを検証する。
func TestAdminHandler_ListSecurityEvents_StoreError(t *testing.T) {
	lister := &mockEventLister{
		listRecentFn: func(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := NewAdminHandler(lister)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/security-events", nil)
	w := httptest.NewRecorder()
	h.ListSecurityEvents(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
