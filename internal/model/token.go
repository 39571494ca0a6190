// Package model はドメインモデルを定義する。
package model

import "time"

// RefreshToken は長命のリフレッシュトークンのサーバー側レコード。
// 生トークンは発行時に一度だけクライアントへ返され、ここにはSHA-256
// ハッシュのみを保持する。ストアが漏洩しても再利用可能なトークンは漏れない。
type RefreshToken struct {
	JTI       string
	UserID    string
	TokenHash string
	UserAgent string
	IPAddress string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsExpired は指定時刻においてトークンが失効しているかを返す。
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsRevoked は明示的に取り消されているかを返す。
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// VerificationTokenType は検証トークンの用途種別。
type VerificationTokenType string

const (
	// TokenTypeEmailVerification はメールアドレス確認用。
	TokenTypeEmailVerification VerificationTokenType = "email_verification"
	// TokenTypePasswordReset はパスワード再設定用。
	TokenTypePasswordReset VerificationTokenType = "password_reset"
)

// VerificationToken はメール確認・パスワード再設定用の使い捨てトークン。
// 生トークンはメール等で届けられ、DBにはハッシュのみを保持する。
type VerificationToken struct {
	ID        string
	UserID    string
	TokenHash string
	Type      VerificationTokenType
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsUsable は未使用かつ未失効であるかを返す。
func (t *VerificationToken) IsUsable(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}
