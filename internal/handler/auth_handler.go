// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ichiba/internal/auth"
	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/model"
)

const (
	accessTokenCookieName  = "token"
	refreshTokenCookieName = "refreshToken"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, input auth.RegisterInput) (*model.User, string, error)
	Login(ctx context.Context, input auth.LoginInput) (*auth.LoginResult, error)
	Refresh(ctx context.Context, rawToken string, meta auth.RequestMeta) (*auth.LoginResult, error)
	Logout(ctx context.Context, accessJTI, rawRefreshToken string) error
	VerifyEmail(ctx context.Context, rawToken string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, rawToken, newPassword string, meta auth.RequestMeta) error
}

// AuthMetrics は認証ハンドラーが記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type AuthMetrics interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordTokenIssued(tokenType string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	AccessMaxAge  int // アクセストークンCookieの有効期間（秒）
	RefreshMaxAge int // リフレッシュトークンCookieの有効期間（秒）
}

// AuthHandler はパスワード認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: metrics,
	}
}

// registerRequest は新規登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenRequest はトークンを1つ受け取るリクエストのボディ。
type tokenRequest struct {
	Token string `json:"token"`
}

// Register は新規ユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Email, password and name are required")
		return
	}

	user, _, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "Email is already registered")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 確認トークンの配送（メール送信）はスコープ外。サービス層がログに残す。
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    model.PrincipalOf(user),
	})
}

// Login はログインを処理し、トークンをHttpOnly Cookieへ設定する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(r),
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLoginFailure()
		}
		switch {
		case errors.Is(err, model.ErrAccountLocked):
			writeError(w, http.StatusUnauthorized, model.DenyAccountLocked)
		case errors.Is(err, model.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		default:
			slog.Error("login failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
		h.metrics.RecordTokenIssued("access")
		h.metrics.RecordTokenIssued("refresh")
	}

	h.setTokenCookies(w, result.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    result.Principal,
	})
}

// Refresh はリフレッシュトークンをローテーションする。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := refreshTokenFromRequest(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "No refresh token provided")
		return
	}

	result, err := h.service.Refresh(r.Context(), raw, requestMeta(r))
	if err != nil {
		if errors.Is(err, model.ErrAccountLocked) {
			writeError(w, http.StatusUnauthorized, model.DenyAccountLocked)
			return
		}
		if errors.Is(err, model.ErrInvalidRefreshToken) {
			h.clearTokenCookies(w)
			writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		slog.Error("token refresh failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenIssued("access")
		h.metrics.RecordTokenIssued("refresh")
	}

	h.setTokenCookies(w, result.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    result.Principal,
	})
}

// Logout はアクセストークンを失効させ、リフレッシュトークンを取り消す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accessJTI, _ := middleware.AccessJTIFromContext(r.Context())

	if err := h.service.Logout(r.Context(), accessJTI, refreshTokenFromRequest(r)); err != nil {
		slog.Error("logout failed", slog.String("error", err.Error()))
		// ログアウト失敗してもCookieはクリアする
	}

	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.DenyNoToken)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    principal,
	})
}

// VerifyEmail はメールアドレス確認トークンを消費する。
// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "Verification token is required")
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, model.ErrVerificationTokenInvalid) {
			writeError(w, http.StatusBadRequest, "Invalid or expired verification token")
			return
		}
		slog.Error("email verification failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RequestPasswordReset はパスワード再設定トークンを発行する。
// メールアドレスの登録有無に関わらず同じレスポンスを返す。
// POST /api/auth/request-password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	if _, err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		slog.Error("password reset request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ResetPassword は再設定トークンを検証し、新しいパスワードを設定する。
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Token and password are required")
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password, requestMeta(r)); err != nil {
		if errors.Is(err, model.ErrVerificationTokenInvalid) {
			writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// setTokenCookies はアクセス・リフレッシュトークンをHttpOnly Cookieへ設定する。
func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, tokens auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.AccessMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    tokens.RefreshToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.RefreshMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookies はトークンCookieを失効させる。
func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookieName, refreshTokenCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// refreshTokenFromRequest はCookie、無ければボディからリフレッシュトークンを取り出す。
func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

// requestMeta はリクエストから監査用の付帯情報を取り出す。
func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	}
}
