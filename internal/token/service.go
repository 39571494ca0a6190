// Package token はセッショントークンの発行と検証を提供する。
// アクセストークンはHS256署名のJWT、リフレッシュトークンは構造を持たない
// 不透明なランダム文字列として発行する。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
)

const (
	// Issuer は発行者クレーム。検証時にも毎回照合する。
	Issuer = "ichiba-marketplace"
	// Audience は対象者クレーム。別アプリ向けトークンの流用を防ぐ。
	Audience = "ichiba-users"

	// refreshTokenBytes はリフレッシュトークンの乱数長（384ビット）。
	refreshTokenBytes = 48
)

// AccessClaims はアクセストークンのクレームセット。
type AccessClaims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// ServiceConfig はTokenServiceの設定。
type ServiceConfig struct {
	// Secret はHS256署名用の共有シークレット。
	Secret []byte
	// AccessTTL はアクセストークンの有効期間。
	AccessTTL time.Duration
	// RefreshTTL はリフレッシュトークンの有効期間。
	RefreshTTL time.Duration
}

// Service は署名付きセッショントークンの発行・検証を行う。
// シークレットと時計以外の状態を持たず、検証はトークンと現在時刻の純関数となる。
type Service struct {
	config ServiceConfig
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(config ServiceConfig) *Service {
	return &Service{
		config: config,
		now:    time.Now,
	}
}

// NewServiceWithClock は時計を注入してServiceを生成する。
// 期限境界のテスト用。
func NewServiceWithClock(config ServiceConfig, now func() time.Time) *Service {
	return &Service{
		config: config,
		now:    now,
	}
}

// AccessTTL は設定されたアクセストークンの有効期間を返す。
func (s *Service) AccessTTL() time.Duration {
	return s.config.AccessTTL
}

// RefreshTTL は設定されたリフレッシュトークンの有効期間を返す。
func (s *Service) RefreshTTL() time.Duration {
	return s.config.RefreshTTL
}

// IssueAccessToken はprincipalに対する短命のアクセストークンを発行する。
// iat=now、exp=now+AccessTTL、jtiは毎回新規生成される。副作用はない。
func (s *Service) IssueAccessToken(p model.Principal) (string, error) {
	now := s.now()

	claims := AccessClaims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTTL)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// IssueRefreshToken は不透明なリフレッシュトークンと失効管理用jtiを発行する。
// 生トークンは呼び出し側へ一度だけ返され、永続化にはHashOpaqueTokenの
// ダイジェストのみを使用すること。
func (s *Service) IssueRefreshToken() (token, jti string, err error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), uuid.New().String(), nil
}

// VerifyAccessToken はアクセストークンを検証し、クレームを返す。
// 署名検証に加え、iss・aud・expをここで明示的に再検証する。ライブラリ側の
// 設定ミスに備えた多重チェックであり、意図的な冗長である。
// すべての失敗はmodel.ErrInvalidTokenひとつに収斂し、失敗理由は返さない。
func (s *Service) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.config.Secret, nil
		},
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidToken
	}

	// ライブラリ検証とは独立した明示的な再検証
	if claims.Issuer != Issuer {
		return nil, model.ErrInvalidToken
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != Audience {
		return nil, model.ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(s.now()) {
		return nil, model.ErrInvalidToken
	}
	if _, ok := model.ParseRole(string(claims.Role)); !ok {
		return nil, model.ErrInvalidToken
	}

	return claims, nil
}

// HashOpaqueToken は不透明トークンの一方向ダイジェストを返す。
// リフレッシュトークン・検証トークンの永続化に使用する。
func (s *Service) HashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyOpaqueTokenHash は生トークンと保存済みダイジェストを定数時間で照合する。
func (s *Service) VerifyOpaqueTokenHash(token, digest string) bool {
	sum := s.HashOpaqueToken(token)
	return subtle.ConstantTimeCompare([]byte(sum), []byte(digest)) == 1
}
