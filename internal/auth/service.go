// Package auth はパスワード認証、トークン発行・更新、アカウント保護を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
	"github.com/hitoshi/ichiba/internal/security"
	"github.com/hitoshi/ichiba/internal/token"
)

// RevocationStore はアクセストークンの失効登録に必要なインターフェース。
// revocation.Storeの部分集合として定義する。
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// SecurityRecorder はセキュリティイベントの記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type SecurityRecorder interface {
	Record(ctx context.Context, event *model.SecurityEvent)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AccessTTL            time.Duration // アクセストークン有効期間。既定15分
	RefreshTTL           time.Duration // リフレッシュトークン有効期間。既定14日
	MaxFailedLogins      int           // ロック発動までの連続失敗回数。既定5
	LockoutDuration      time.Duration // ロック継続時間。既定30分
	EmailVerificationTTL time.Duration // メール確認トークン有効期間。既定24時間
	PasswordResetTTL     time.Duration // パスワード再設定トークン有効期間。既定1時間
	MinPasswordLength    int           // パスワード最小長。既定8
}

// DefaultServiceConfig はデフォルトの認証設定を返す。
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		AccessTTL:            15 * time.Minute,
		RefreshTTL:           14 * 24 * time.Hour,
		MaxFailedLogins:      5,
		LockoutDuration:      30 * time.Minute,
		EmailVerificationTTL: 24 * time.Hour,
		PasswordResetTTL:     1 * time.Hour,
		MinPasswordLength:    8,
	}
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	tokens        *token.Service
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	verifications repository.VerificationTokenRepository
	revocations   RevocationStore
	audit         SecurityRecorder
	names         *security.ProfileSanitizer
	config        ServiceConfig
	now           func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	tokens *token.Service,
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	verifications repository.VerificationTokenRepository,
	revocations RevocationStore,
	audit SecurityRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		tokens:        tokens,
		users:         users,
		refreshTokens: refreshTokens,
		verifications: verifications,
		revocations:   revocations,
		audit:         audit,
		names:         security.NewProfileSanitizer(),
		config:        config,
		now:           time.Now,
	}
}

// RequestMeta はログ・監査用のリクエスト付帯情報。
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// TokenPair は発行済みのアクセス・リフレッシュトークンの組。
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult はログイン・リフレッシュ成功時の結果。
type LoginResult struct {
	Principal model.Principal
	Tokens    TokenPair
}

// RegisterInput は新規登録の入力。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register は新規ユーザーを作成し、メール確認トークンを発行する。
// 返される生トークンは確認メールに載せる一度きりの値で、DBにはハッシュのみ残る。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, string, error) {
	if len(input.Password) < s.config.MinPasswordLength {
		return nil, "", fmt.Errorf("password must be at least %d characters", s.config.MinPasswordLength)
	}

	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", model.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hash),
		// 表示名は格納前にタグを剥がしプレーンテキストに正規化する。
		Name:         s.names.SanitizeName(input.Name),
		Role:         model.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	verification, err := s.issueVerificationToken(ctx, user.ID, model.TokenTypeEmailVerification, s.config.EmailVerificationTTL)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, verification, nil
}

// LoginInput はログインの入力。
type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// Login はメールアドレスとパスワードを検証し、トークンペアを発行する。
// メールアドレス不明とパスワード不一致はどちらもErrInvalidCredentialsに
// 集約し、アカウントの存在を漏らさない。連続失敗が閾値に達すると
// アカウントを一定時間ロックする。
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.recordEvent(ctx, nil, model.EventFailedLogin, input.Meta, map[string]any{
			"email":  input.Email,
			"reason": "unknown_email",
		})
		return nil, model.ErrInvalidCredentials
	}

	if user.IsLocked(s.now()) {
		return nil, model.ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, s.handleFailedLogin(ctx, user, input.Meta)
	}

	now := s.now()
	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record successful login: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	tokens, err := s.issueTokenPair(ctx, user, input.Meta)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &LoginResult{
		Principal: model.PrincipalOf(user),
		Tokens:    *tokens,
	}, nil
}

// handleFailedLogin は失敗回数を加算し、閾値到達時にアカウントをロックする。
// 呼び出し側へは常にErrInvalidCredentialsを返す。
func (s *Service) handleFailedLogin(ctx context.Context, user *model.User, meta RequestMeta) error {
	attempts := user.FailedLoginAttempts + 1

	var lockUntil *time.Time
	if attempts >= s.config.MaxFailedLogins {
		until := s.now().Add(s.config.LockoutDuration)
		lockUntil = &until
	}

	if err := s.users.RecordFailedLogin(ctx, user.ID, lockUntil); err != nil {
		slog.Error("failed to record failed login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.recordEvent(ctx, &user.ID, model.EventFailedLogin, meta, map[string]any{
		"attempts": attempts,
	})

	if lockUntil != nil {
		s.recordEvent(ctx, &user.ID, model.EventAccountLocked, meta, map[string]any{
			"locked_until": lockUntil.Format(time.RFC3339),
		})
		slog.Warn("account locked",
			slog.String("user_id", user.ID),
			slog.Time("locked_until", *lockUntil),
		)
	}

	return model.ErrInvalidCredentials
}

// Refresh はリフレッシュトークンを検証し、新しいトークンペアへ
// ローテーションする。古いリフレッシュトークンは即座に取り消される。
// 取り消し済みトークンの再提示は盗難の兆候とみなし、そのユーザーの
// 全リフレッシュトークンを取り消す。
func (s *Service) Refresh(ctx context.Context, rawToken string, meta RequestMeta) (*LoginResult, error) {
	if rawToken == "" {
		return nil, model.ErrInvalidRefreshToken
	}

	record, err := s.refreshTokens.FindByHash(ctx, s.tokens.HashOpaqueToken(rawToken))
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if record == nil {
		return nil, model.ErrInvalidRefreshToken
	}

	now := s.now()

	if record.IsRevoked() {
		// ローテーション済みトークンの再利用。セッション全体を無効化する
		if err := s.refreshTokens.RevokeAllByUserID(ctx, record.UserID, now); err != nil {
			slog.Error("failed to revoke refresh tokens after reuse",
				slog.String("user_id", record.UserID),
				slog.String("error", err.Error()),
			)
		}
		slog.Warn("revoked refresh token reused",
			slog.String("user_id", record.UserID),
			slog.String("jti", record.JTI),
		)
		return nil, model.ErrInvalidRefreshToken
	}

	if record.IsExpired(now) {
		return nil, model.ErrInvalidRefreshToken
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.ErrInvalidRefreshToken
	}
	if user.IsLocked(now) {
		return nil, model.ErrAccountLocked
	}

	if err := s.refreshTokens.Revoke(ctx, record.JTI, now); err != nil {
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	tokens, err := s.issueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, &user.ID, model.EventTokenRefreshed, meta, nil)

	return &LoginResult{
		Principal: model.PrincipalOf(user),
		Tokens:    *tokens,
	}, nil
}

// Logout はアクセストークンのjtiを失効リストへ登録し、
// 提示されたリフレッシュトークンを取り消す。
// 失効登録の期限はアクセストークンの最大残存期間とする。
func (s *Service) Logout(ctx context.Context, accessJTI, rawRefreshToken string) error {
	now := s.now()

	if accessJTI != "" {
		if err := s.revocations.Revoke(ctx, accessJTI, now.Add(s.config.AccessTTL)); err != nil {
			return fmt.Errorf("failed to revoke access token: %w", err)
		}
	}

	if rawRefreshToken != "" {
		record, err := s.refreshTokens.FindByHash(ctx, s.tokens.HashOpaqueToken(rawRefreshToken))
		if err != nil {
			return fmt.Errorf("failed to find refresh token: %w", err)
		}
		if record != nil {
			if err := s.refreshTokens.Revoke(ctx, record.JTI, now); err != nil {
				return fmt.Errorf("failed to revoke refresh token: %w", err)
			}
		}
	}

	slog.Info("user logged out", slog.String("jti", accessJTI))
	return nil
}

// VerifyEmail はメール確認トークンを検証し、アカウントを確認済みにする。
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	record, err := s.findUsableToken(ctx, rawToken, model.TokenTypeEmailVerification)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.users.MarkEmailVerified(ctx, record.UserID, now); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	if err := s.verifications.MarkUsed(ctx, record.ID, now); err != nil {
		return fmt.Errorf("failed to mark verification token used: %w", err)
	}

	slog.Info("email verified", slog.String("user_id", record.UserID))
	return nil
}

// RequestPasswordReset はパスワード再設定トークンを発行する。
// メールアドレスが未登録でもエラーにせず空文字列を返し、
// アカウントの存在を漏らさない。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", nil
	}

	return s.issueVerificationToken(ctx, user.ID, model.TokenTypePasswordReset, s.config.PasswordResetTTL)
}

// ResetPassword は再設定トークンを検証し、新しいパスワードを設定する。
// 既存の全リフレッシュトークンを取り消し、他端末のセッションを無効化する。
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string, meta RequestMeta) error {
	if len(newPassword) < s.config.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", s.config.MinPasswordLength)
	}

	record, err := s.findUsableToken(ctx, rawToken, model.TokenTypePasswordReset)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	if err := s.users.UpdatePasswordHash(ctx, record.UserID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.verifications.MarkUsed(ctx, record.ID, now); err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}
	if err := s.refreshTokens.RevokeAllByUserID(ctx, record.UserID, now); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	s.recordEvent(ctx, &record.UserID, model.EventPasswordReset, meta, nil)
	slog.Info("password reset", slog.String("user_id", record.UserID))
	return nil
}

// issueTokenPair はアクセス・リフレッシュトークンの組を発行し、
// リフレッシュトークンのハッシュを永続化する。
func (s *Service) issueTokenPair(ctx context.Context, user *model.User, meta RequestMeta) (*TokenPair, error) {
	now := s.now()

	accessToken, err := s.tokens.IssueAccessToken(model.PrincipalOf(user))
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	rawRefresh, jti, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	refreshExpiresAt := now.Add(s.config.RefreshTTL)
	record := &model.RefreshToken{
		JTI:       jti,
		UserID:    user.ID,
		TokenHash: s.tokens.HashOpaqueToken(rawRefresh),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		IssuedAt:  now,
		ExpiresAt: refreshExpiresAt,
	}
	if err := s.refreshTokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(s.config.AccessTTL),
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// issueVerificationToken は使い捨てトークンを発行し、ハッシュを永続化する。
func (s *Service) issueVerificationToken(ctx context.Context, userID string, tokenType model.VerificationTokenType, ttl time.Duration) (string, error) {
	raw, _, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}

	now := s.now()
	record := &model.VerificationToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: s.tokens.HashOpaqueToken(raw),
		Type:      tokenType,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.verifications.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}

	return raw, nil
}

// findUsableToken は生トークンから未使用・未失効の検証レコードを引く。
func (s *Service) findUsableToken(ctx context.Context, rawToken string, tokenType model.VerificationTokenType) (*model.VerificationToken, error) {
	if rawToken == "" {
		return nil, model.ErrVerificationTokenInvalid
	}

	record, err := s.verifications.FindByHash(ctx, s.tokens.HashOpaqueToken(rawToken), tokenType)
	if err != nil {
		return nil, fmt.Errorf("failed to find verification token: %w", err)
	}
	if record == nil || !record.IsUsable(s.now()) {
		return nil, model.ErrVerificationTokenInvalid
	}

	return record, nil
}

// recordEvent は監査レコーダーが設定されている場合のみイベントを記録する。
func (s *Service) recordEvent(ctx context.Context, userID *string, eventType model.SecurityEventType, meta RequestMeta, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, &model.SecurityEvent{
		UserID:    userID,
		Type:      eventType,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Details:   details,
	})
}
