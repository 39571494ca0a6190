package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresVerificationTokenRepo はPostgreSQLを使用した検証トークンリポジトリ。
type PostgresVerificationTokenRepo struct {
	db *sql.DB
}

// NewPostgresVerificationTokenRepo はPostgresVerificationTokenRepoを生成する。
func NewPostgresVerificationTokenRepo(db *sql.DB) *PostgresVerificationTokenRepo {
	return &PostgresVerificationTokenRepo{db: db}
}

// Create はトークンレコードを作成する。
func (r *PostgresVerificationTokenRepo) Create(ctx context.Context, token *model.VerificationToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (id, user_id, token_hash, token_type, expires_at, used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.UserID, token.TokenHash, string(token.Type),
		token.ExpiresAt, token.UsedAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification token: %w", err)
	}
	return nil
}

// FindByHash はトークンハッシュと用途種別でレコードを検索する。見つからない場合はnilを返す。
func (r *PostgresVerificationTokenRepo) FindByHash(ctx context.Context, tokenHash string, tokenType model.VerificationTokenType) (*model.VerificationToken, error) {
	token := &model.VerificationToken{}
	var typeRaw string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, token_type, expires_at, used_at, created_at
		 FROM verification_tokens WHERE token_hash = $1 AND token_type = $2`,
		tokenHash, string(tokenType),
	).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &typeRaw,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find verification token by hash: %w", err)
	}
	token.Type = model.VerificationTokenType(typeRaw)

	return token, nil
}

// MarkUsed はトークンを使用済みにする。
func (r *PostgresVerificationTokenRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE verification_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark verification token used: %w", err)
	}
	return nil
}

// DeleteExpired は失効期限を過ぎたレコードを削除し、削除件数を返す。
func (r *PostgresVerificationTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification tokens: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ VerificationTokenRepository = (*PostgresVerificationTokenRepo)(nil)
