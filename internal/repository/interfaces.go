// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はmodel.ErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// RecordFailedLogin は連続ログイン失敗回数をインクリメントする。
	// lockUntilが非nilの場合はlocked_untilも同時に設定する。
	RecordFailedLogin(ctx context.Context, id string, lockUntil *time.Time) error

	// RecordSuccessfulLogin は連続失敗回数とロックをリセットし、最終ログイン時刻を記録する。
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// MarkEmailVerified はメールアドレス確認済み時刻を記録する。
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するrefresh_tokens、cart_items、wishlist_itemsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
// 生トークンは保存せず、SHA-256ハッシュのみを扱う。
type RefreshTokenRepository interface {
	// Create はリフレッシュトークンのレコードを作成する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// FindByHash はトークンハッシュでレコードを検索する。見つからない場合はnilを返す。
	FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)

	// Revoke は指定jtiのトークンを取り消す。
	Revoke(ctx context.Context, jti string, at time.Time) error

	// RevokeAllByUserID は指定ユーザーの有効な全トークンを取り消す。
	RevokeAllByUserID(ctx context.Context, userID string, at time.Time) error

	// DeleteExpired は失効期限を過ぎたレコードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CartRepository はカートデータの永続化インターフェース。
type CartRepository interface {
	// ListByUserID はユーザーのカートラインを作成順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.StoredCartItem, error)

	// AddItem はカートラインを冪等に追加する。
	// 同一(product_id, variant)が既に存在する場合は数量を加算する。
	AddItem(ctx context.Context, userID string, item model.CartItem) error

	// SetQuantity は指定キーのラインの数量を置き換える。
	// 対象が存在しない場合は何もしない。
	SetQuantity(ctx context.Context, userID string, key model.ItemKey, quantity int) error

	// RemoveItem は指定キーのラインを削除する。
	RemoveItem(ctx context.Context, userID string, key model.ItemKey) error

	// DeleteByUserID はユーザーの全カートラインを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// WishlistRepository はウィッシュリストデータの永続化インターフェース。
type WishlistRepository interface {
	// ListByUserID はユーザーのウィッシュリストを作成順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.StoredWishlistItem, error)

	// AddItem はエントリを冪等に追加する。同一(product_id, variant)が
	// 既に存在する場合は何もしない。
	AddItem(ctx context.Context, userID string, item model.WishlistItem) error

	// RemoveItem は指定キーのエントリを削除する。
	RemoveItem(ctx context.Context, userID string, key model.ItemKey) error

	// DeleteByUserID はユーザーの全エントリを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SecurityEventRepository はセキュリティ監査イベントの永続化インターフェース。
type SecurityEventRepository interface {
	// Create はイベントを記録する。
	Create(ctx context.Context, event *model.SecurityEvent) error

	// ListRecent は新しい順にイベントを返す。eventTypeが空の場合は全種別を対象とする。
	ListRecent(ctx context.Context, eventType model.SecurityEventType, limit int) ([]*model.SecurityEvent, error)
}

// VerificationTokenRepository はメール確認・パスワード再設定トークンの
// 永続化インターフェース。生トークンは保存せず、ハッシュのみを扱う。
type VerificationTokenRepository interface {
	// Create はトークンレコードを作成する。
	Create(ctx context.Context, token *model.VerificationToken) error

	// FindByHash はトークンハッシュと用途種別でレコードを検索する。
	// 見つからない場合はnilを返す。
	FindByHash(ctx context.Context, tokenHash string, tokenType model.VerificationTokenType) (*model.VerificationToken, error)

	// MarkUsed はトークンを使用済みにする。
	MarkUsed(ctx context.Context, id string, at time.Time) error

	// DeleteExpired は失効期限を過ぎたレコードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
