package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresSecurityEventRepo はPostgreSQLを使用したセキュリティイベントリポジトリ。
// Detailsカラムはjsonbとして保存する。
type PostgresSecurityEventRepo struct {
	db *sql.DB
}

// NewPostgresSecurityEventRepo はPostgresSecurityEventRepoを生成する。
func NewPostgresSecurityEventRepo(db *sql.DB) *PostgresSecurityEventRepo {
	return &PostgresSecurityEventRepo{db: db}
}

// Create はイベントを記録する。IDが未設定の場合は新規生成する。
func (r *PostgresSecurityEventRepo) Create(ctx context.Context, event *model.SecurityEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO security_events (id, user_id, event_type, ip_address, user_agent, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		event.ID, event.UserID, string(event.Type), event.IPAddress, event.UserAgent, details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// ListRecent は新しい順にイベントを返す。eventTypeが空の場合は全種別を対象とする。
func (r *PostgresSecurityEventRepo) ListRecent(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, event_type, ip_address, user_agent, details, created_at
		 FROM security_events
		 WHERE ($1 = '' OR event_type = $1)
		 ORDER BY created_at DESC
		 LIMIT $2`,
		string(eventType), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	defer rows.Close()

	events := []*model.SecurityEvent{}
	for rows.Next() {
		event := &model.SecurityEvent{}
		var eventTypeRaw string
		var detailsRaw []byte
		if err := rows.Scan(
			&event.ID, &event.UserID, &eventTypeRaw, &event.IPAddress,
			&event.UserAgent, &detailsRaw, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		event.Type = model.SecurityEventType(eventTypeRaw)

		if len(detailsRaw) > 0 {
			if err := json.Unmarshal(detailsRaw, &event.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event details: %w", err)
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate security events: %w", err)
	}

	return events, nil
}

// compile-time interface check
var _ SecurityEventRepository = (*PostgresSecurityEventRepo)(nil)
