// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す閉じた列挙型。
// 未知の文字列roleは値として存在し得ないよう、ParseRole経由でのみ生成する。
type Role string

const (
	// RoleCustomer は一般購入者。
	RoleCustomer Role = "customer"
	// RoleAdmin は運営管理者。
	RoleAdmin Role = "admin"
	// RoleSuperAdmin は全権限を持つ最上位管理者。
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole は文字列をRoleに変換する。未知の値はfalseを返す。
// DBやトークンから読み取ったroleの検証に使用する。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleAdmin, RoleSuperAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// IsAdmin はadminまたはsuper_adminであればtrueを返す。
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Name                string
	Role                Role
	EmailVerifiedAt     *time.Time
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked は現時点でアカウントがロック中かどうかを返す。
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Principal は認証済みリクエストに紐付く最小限のユーザー情報。
// リクエストコンテキストに格納され、ロード後は不変として扱う。
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// PrincipalOf はUserからPrincipalを構築する。
func PrincipalOf(u *User) Principal {
	return Principal{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}
