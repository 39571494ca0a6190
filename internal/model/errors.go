// Package model はドメインモデルを定義する。
package model

import "errors"

// 認証・認可の失敗タクソノミー。
// 暗号・ストア起因の例外は最下層（token、repository）でこのタクソノミーに
// 変換され、生のエラーがミドルウェア境界を越えることはない。
var (
	// ErrInvalidToken は署名不正・期限切れ・iss/aud不一致・不正形式のいずれか。
	// オラクル攻撃を避けるため、検証失敗の理由は呼び出し側に区別させない。
	ErrInvalidToken = errors.New("invalid or expired access token")

	// ErrTokenRevoked は署名は有効だがjtiが失効リストに載っている。
	ErrTokenRevoked = errors.New("token has been revoked")

	// ErrUnknownPrincipal はトークンのsubに対応するユーザーが存在しない。
	ErrUnknownPrincipal = errors.New("user not found")

	// ErrAccountLocked はアカウントが一時ロック中。
	ErrAccountLocked = errors.New("account is locked")

	// ErrPolicyDenied は認証済みだが権限不足。唯一監査ログを伴う失敗。
	ErrPolicyDenied = errors.New("access denied")
)

// 認証フローで使用するエラー。
var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードの不一致。
	// どちらが誤っているかは区別しない。
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken は登録済みメールアドレスでの再登録。
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInvalidRefreshToken はリフレッシュトークンが無効・失効・取り消し済み。
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrVerificationTokenInvalid は検証トークンが無効・使用済み・期限切れ。
	ErrVerificationTokenInvalid = errors.New("invalid or expired verification token")
)

// ミドルウェアがクライアントへ返す拒否メッセージ。
// レスポンスボディは {"error": "<message>"} の形を取る。
const (
	DenyNoToken       = "No access token provided"
	DenyInvalidToken  = "Invalid or expired access token"
	DenyRevokedToken  = "Token has been revoked"
	DenyUserNotFound  = "User not found"
	DenyAccountLocked = "Account is locked"
	DenyAccessDenied  = "Access denied"
)
