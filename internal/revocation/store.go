// Package revocation は失効済みトークンの照会ストアを提供する。
package revocation

import (
	"context"
	"time"
)

// Store はjtiをキーとするトークン失効ストアのインターフェース。
// リモートサービス（Redis等）を実装として差し替えられるよう、
// 全操作はコンテキストを受け取る。
type Store interface {
	// Revoke はjtiをexpiresAtまで失効済みとして登録する。
	// expiresAt以降のエントリは照会対象から外れてよい（トークン自体が
	// 期限切れになるため保持する意味がない）。
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked はjtiが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
