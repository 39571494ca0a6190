// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/ichiba/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みプリンシパルを
// 格納するためのキー。
var principalContextKey = contextKey("principal")

// accessJTIContextKey はアクセストークンのJTIを格納するためのキー。
// ログアウト時の失効登録に使用する。
var accessJTIContextKey = contextKey("access_jti")

// PrincipalFromContext はリクエストコンテキストから認証済みプリンシパルを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || p == nil {
		return nil, fmt.Errorf("principal not found in context")
	}
	return p, nil
}

// ContextWithPrincipal はコンテキストにプリンシパルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// AccessJTIFromContext はリクエストコンテキストからアクセストークンのJTIを取得する。
func AccessJTIFromContext(ctx context.Context) (string, error) {
	jti, ok := ctx.Value(accessJTIContextKey).(string)
	if !ok || jti == "" {
		return "", fmt.Errorf("access token JTI not found in context")
	}
	return jti, nil
}

// ContextWithAccessJTI はコンテキストにアクセストークンのJTIを注入する。
func ContextWithAccessJTI(ctx context.Context, jti string) context.Context {
	return context.WithValue(ctx, accessJTIContextKey, jti)
}
