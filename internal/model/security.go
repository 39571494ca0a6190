// Package model はドメインモデルを定義する。
package model

import "time"

// SecurityEventType はセキュリティ監査イベントの種別。
type SecurityEventType string

const (
	// EventUnauthorizedAccess は認可拒否（権限不足でのアクセス試行）。
	EventUnauthorizedAccess SecurityEventType = "unauthorized_access"
	// EventFailedLogin はログイン失敗。
	EventFailedLogin SecurityEventType = "failed_login"
	// EventAccountLocked は連続失敗によるアカウントロック。
	EventAccountLocked SecurityEventType = "account_locked"
	// EventTokenRefreshed はリフレッシュトークンのローテーション。
	EventTokenRefreshed SecurityEventType = "token_refreshed"
	// EventPasswordReset はパスワード再設定の完了。
	EventPasswordReset SecurityEventType = "password_reset"
)

// SecurityEvent はセキュリティ監査ログの1レコード。
// 認可拒否時のみミドルウェアから書き込まれる。認証失敗（期限切れトークン等）は
// 日常的なノイズであるため監査ログには残さない。
type SecurityEvent struct {
	ID string
	// UserID はイベントの主体。ログイン失敗等で特定できない場合はnil。
	UserID    *string
	Type      SecurityEventType
	IPAddress string
	UserAgent string
	// Details はイベント固有の付帯情報（メソッド、パス、不足権限等）のJSON。
	Details   map[string]any
	CreatedAt time.Time
}
