package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresCartRepo はPostgreSQLを使用したカートリポジトリ。
type PostgresCartRepo struct {
	db *sql.DB
}

// NewPostgresCartRepo はPostgresCartRepoを生成する。
func NewPostgresCartRepo(db *sql.DB) *PostgresCartRepo {
	return &PostgresCartRepo{db: db}
}

// ListByUserID はユーザーのカートラインを作成順で返す。
func (r *PostgresCartRepo) ListByUserID(ctx context.Context, userID string) ([]model.StoredCartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, product_id, quantity, variant, created_at, updated_at
		 FROM cart_items WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []model.StoredCartItem{}
	for rows.Next() {
		var item model.StoredCartItem
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.Quantity,
			&item.Variant, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}

	return items, nil
}

// AddItem はカートラインを冪等に追加する。
// 同一(product_id, variant)が既に存在する場合は数量を加算する。
// マージを2回実行しても同一ラインが二重に現れないことをこのUPSERTが保証する。
func (r *PostgresCartRepo) AddItem(ctx context.Context, userID string, item model.CartItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cart_items (id, user_id, product_id, quantity, variant, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (user_id, product_id, variant)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`,
		uuid.New().String(), userID, item.ProductID, item.Quantity, item.Variant,
	)
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

// SetQuantity は指定キーのラインの数量を置き換える。対象が存在しない場合は何もしない。
func (r *PostgresCartRepo) SetQuantity(ctx context.Context, userID string, key model.ItemKey, quantity int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $4, updated_at = now()
		 WHERE user_id = $1 AND product_id = $2 AND variant = $3`,
		userID, key.ProductID, key.Variant, quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to set cart item quantity: %w", err)
	}
	return nil
}

// RemoveItem は指定キーのラインを削除する。
func (r *PostgresCartRepo) RemoveItem(ctx context.Context, userID string, key model.ItemKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND variant = $3`,
		userID, key.ProductID, key.Variant,
	)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全カートラインを削除する。
func (r *PostgresCartRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cart items for user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CartRepository = (*PostgresCartRepo)(nil)
