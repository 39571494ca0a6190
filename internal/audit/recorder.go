// Package audit はセキュリティ監査イベントの記録を提供する。
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// EventCounter はイベント種別ごとの計数インターフェース。
// metrics.Collectorの部分集合として定義する。
type EventCounter interface {
	IncSecurityEvent(eventType string)
}

// Recorder はセキュリティイベントをDBと構造化ログの両方へ記録する。
// 記録はリクエスト処理の付帯動作であり、失敗してもリクエスト自体は
// 失敗させない。エラーはログにのみ残す。
type Recorder struct {
	repo    repository.SecurityEventRepository
	logger  *slog.Logger
	counter EventCounter
}

// NewRecorder はRecorderを生成する。counterはnilでもよい。
func NewRecorder(repo repository.SecurityEventRepository, logger *slog.Logger, counter EventCounter) *Recorder {
	return &Recorder{
		repo:    repo,
		logger:  logger,
		counter: counter,
	}
}

// Record はイベントを記録する。IDが未設定の場合は新規生成する。
func (r *Recorder) Record(ctx context.Context, event *model.SecurityEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
		slog.String("ip_address", event.IPAddress),
	}
	if event.UserID != nil {
		attrs = append(attrs, slog.String("user_id", *event.UserID))
	}
	r.logger.Warn("security_event", attrs...)

	if r.counter != nil {
		r.counter.IncSecurityEvent(string(event.Type))
	}

	if err := r.repo.Create(ctx, event); err != nil {
		r.logger.Error("failed to persist security event",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}
