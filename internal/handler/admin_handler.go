package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// SecurityEventLister は管理ハンドラーが必要とするイベント照会インターフェース。
// repository.SecurityEventRepositoryの部分集合として定義する。
type SecurityEventLister interface {
	ListRecent(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error)
}

// AdminHandler は管理者向けセキュリティダッシュボードのHTTPハンドラー。
// ルーティング側でadmin:read権限が要求されるため、ここでは権限を再検査しない。
type AdminHandler struct {
	events SecurityEventLister
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(events SecurityEventLister) *AdminHandler {
	return &AdminHandler{events: events}
}

// securityEventResponse はセキュリティイベントのAPIレスポンス。
type securityEventResponse struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"userId"`
	Type      string         `json:"type"`
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// ListSecurityEvents は最近のセキュリティイベントを新しい順で返す。
// GET /api/admin/security-events?type=failed_login&limit=100
func (h *AdminHandler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxEventLimit {
			parsed = maxEventLimit
		}
		limit = parsed
	}

	eventType := model.SecurityEventType(r.URL.Query().Get("type"))

	events, err := h.events.ListRecent(r.Context(), eventType, limit)
	if err != nil {
		slog.Error("failed to list security events", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	responses := make([]securityEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, securityEventResponse{
			ID:        event.ID,
			UserID:    event.UserID,
			Type:      string(event.Type),
			IPAddress: event.IPAddress,
			UserAgent: event.UserAgent,
			Details:   event.Details,
			CreatedAt: event.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"events":  responses,
	})
}
