package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// mockSecurityEventRepo はSecurityEventRepositoryのモック実装。
type mockSecurityEventRepo struct {
	createFn func(ctx context.Context, event *model.SecurityEvent) error
	created  []*model.SecurityEvent
}

func (m *mockSecurityEventRepo) Create(ctx context.Context, event *model.SecurityEvent) error {
	m.created = append(m.created, event)
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockSecurityEventRepo) ListRecent(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error) {
	return nil, nil
}

// mockEventCounter はEventCounterのモック実装。
type mockEventCounter struct {
	counts map[string]int
}

func (m *mockEventCounter) IncSecurityEvent(eventType string) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[eventType]++
}

// TestRecorder_Record はイベントがDB・ログ・カウンターへ届くことを検証する。
func TestRecorder_Record(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	repo := &mockSecurityEventRepo{}
	counter := &mockEventCounter{}

	recorder := NewRecorder(repo, logger, counter)

	userID := "user-1"
	recorder.Record(context.Background(), &model.SecurityEvent{
		UserID:    &userID,
		Type:      model.EventUnauthorizedAccess,
		IPAddress: "203.0.113.1",
		UserAgent: "test-agent",
		Details:   map[string]any{"path": "/api/admin/products"},
	})

	if len(repo.created) != 1 {
		t.Fatalf("created events = %d, want 1", len(repo.created))
	}
	event := repo.created[0]
	if event.ID == "" {
		t.Error("expected event ID to be generated")
	}
	if event.Type != model.EventUnauthorizedAccess {
		t.Errorf("event type = %q, want %q", event.Type, model.EventUnauthorizedAccess)
	}

	if counter.counts[string(model.EventUnauthorizedAccess)] != 1 {
		t.Errorf("counter = %d, want 1", counter.counts[string(model.EventUnauthorizedAccess)])
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["event_type"] != string(model.EventUnauthorizedAccess) {
		t.Errorf("logged event_type = %q, want %q", entry["event_type"], model.EventUnauthorizedAccess)
	}
	if entry["user_id"] != userID {
		t.Errorf("logged user_id = %q, want %q", entry["user_id"], userID)
	}
}

// TestRecorder_Record_RepoError は永続化失敗がRecord呼び出し側へ
// 伝播しないことを検証する。
func TestRecorder_Record_RepoError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	repo := &mockSecurityEventRepo{
		createFn: func(ctx context.Context, event *model.SecurityEvent) error {
			return context.DeadlineExceeded
		},
	}

	recorder := NewRecorder(repo, logger, nil)

	// panicせず、エラーも返さない
	recorder.Record(context.Background(), &model.SecurityEvent{
		Type:      model.EventFailedLogin,
		IPAddress: "203.0.113.2",
		CreatedAt: time.Now(),
	})

	if !bytes.Contains(buf.Bytes(), []byte("failed to persist security event")) {
		t.Error("expected persistence failure to be logged")
	}
}

// TestRecorder_Record_NilCounter はカウンターなしでも動作することを検証する。
func TestRecorder_Record_NilCounter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	recorder := NewRecorder(&mockSecurityEventRepo{}, logger, nil)

	recorder.Record(context.Background(), &model.SecurityEvent{
		Type:      model.EventAccountLocked,
		IPAddress: "203.0.113.3",
	})
}
