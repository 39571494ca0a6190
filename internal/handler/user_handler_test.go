package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

var _ UserServiceInterface = (*mockUserService)(nil)

// TestUserHandler_Withdraw_Success は退会成功で204が返ることを検証する。
func TestUserHandler_Withdraw_Success(t *testing.T) {
	var withdrawnID string
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawnID = userID
			return nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Withdraw(w, authedRequest(http.MethodDelete, "/api/profile", ""))

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if withdrawnID != "user-1" {
		t.Errorf("withdrawn user ID = %q, want %q", withdrawnID, "user-1")
	}
}

// TestUserHandler_Withdraw_NoPrincipal はプリンシパルなしで401が返ることを検証する。
func TestUserHandler_Withdraw_NoPrincipal(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/profile", nil)
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestUserHandler_Withdraw_ServiceError はサービス障害で500が返ることを検証する。
func TestUserHandler_Withdraw_ServiceError(t *testing.T) {
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return errors.New("database unreachable")
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Withdraw(w, authedRequest(http.MethodDelete, "/api/profile", ""))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
