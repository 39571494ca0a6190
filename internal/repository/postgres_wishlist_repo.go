package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresWishlistRepo はPostgreSQLを使用したウィッシュリストリポジトリ。
type PostgresWishlistRepo struct {
	db *sql.DB
}

// NewPostgresWishlistRepo はPostgresWishlistRepoを生成する。
func NewPostgresWishlistRepo(db *sql.DB) *PostgresWishlistRepo {
	return &PostgresWishlistRepo{db: db}
}

// ListByUserID はユーザーのウィッシュリストを作成順で返す。
func (r *PostgresWishlistRepo) ListByUserID(ctx context.Context, userID string) ([]model.StoredWishlistItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, product_id, variant, created_at
		 FROM wishlist_items WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist items: %w", err)
	}
	defer rows.Close()

	items := []model.StoredWishlistItem{}
	for rows.Next() {
		var item model.StoredWishlistItem
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.Variant, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wishlist items: %w", err)
	}

	return items, nil
}

// AddItem はエントリを冪等に追加する。
// 同一(product_id, variant)が既に存在する場合は何もしない（集合のOR結合）。
func (r *PostgresWishlistRepo) AddItem(ctx context.Context, userID string, item model.WishlistItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlist_items (id, user_id, product_id, variant, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id, product_id, variant) DO NOTHING`,
		uuid.New().String(), userID, item.ProductID, item.Variant,
	)
	if err != nil {
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}
	return nil
}

// RemoveItem は指定キーのエントリを削除する。
func (r *PostgresWishlistRepo) RemoveItem(ctx context.Context, userID string, key model.ItemKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2 AND variant = $3`,
		userID, key.ProductID, key.Variant,
	)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全エントリを削除する。
func (r *PostgresWishlistRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist items for user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WishlistRepository = (*PostgresWishlistRepo)(nil)
