package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/rbac"
	"github.com/hitoshi/ichiba/internal/token"
)

// AccessTokenCookieName はアクセストークンを保持するCookie名。
const AccessTokenCookieName = "token"

// timeNow はテストで差し替えるための時刻取得関数。
var timeNow = time.Now

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
// token.Serviceの部分集合として定義する。
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*token.AccessClaims, error)
}

// RevocationChecker はトークン失効の照会に必要なインターフェース。
// revocation.Storeの部分集合として定義する。
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// PrincipalFinder はプリンシパルの取得に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type PrincipalFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SecurityRecorder はセキュリティイベントの記録に必要なインターフェース。
// audit.Recorderの部分集合として定義する。
type SecurityRecorder interface {
	Record(ctx context.Context, event *model.SecurityEvent)
}

// NewAuthMiddleware は認証・認可ミドルウェアを返す。
// 処理は次の順序で行う:
//  1. 公開エンドポイントは素通しする
//  2. AuthorizationヘッダーまたはCookieからトークンを取り出す
//  3. トークンの署名・有効期限・発行者を検証する
//  4. 失効済みトークンを拒否する
//  5. プリンシパルを取得し、ロック中アカウントを拒否する
//  6. RBACテーブルで認可判定を行う
//  7. プリンシパルをコンテキストに注入して後続へ渡す
//
// API宛の拒否はJSONの401/403、ページ宛の拒否はログイン画面への302となる。
// 失効照会が失敗した場合は安全側に倒し、トークンを失効済みとして扱う。
func NewAuthMiddleware(
	verifier TokenVerifier,
	revocations RevocationChecker,
	users PrincipalFinder,
	audit SecurityRecorder,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 公開エンドポイントは認証をバイパス
			if rbac.IsPublic(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 2. トークンの取り出し。Bearerヘッダーを優先し、Cookieにフォールバック
			tokenString := extractToken(r)
			if tokenString == "" {
				deny(w, r, http.StatusUnauthorized, "missing_token", model.DenyNoToken)
				return
			}

			// 3. 署名・有効期限・発行者・オーディエンスの検証
			claims, err := verifier.VerifyAccessToken(tokenString)
			if err != nil {
				deny(w, r, http.StatusUnauthorized, "invalid_token", model.DenyInvalidToken)
				return
			}

			// 4. 失効チェック。照会に失敗した場合も拒否する
			revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				slog.Error("revocation check failed",
					slog.String("error", err.Error()),
					slog.String("jti", claims.ID),
				)
				revoked = true
			}
			if revoked {
				deny(w, r, http.StatusUnauthorized, "revoked_token", model.DenyRevokedToken)
				return
			}

			// 5. プリンシパルの取得とアカウント状態の検証
			user, err := users.FindByID(r.Context(), claims.Subject)
			if err != nil {
				slog.Error("failed to find user",
					slog.String("error", err.Error()),
					slog.String("user_id", claims.Subject),
				)
				deny(w, r, http.StatusUnauthorized, "user_not_found", model.DenyUserNotFound)
				return
			}
			if user == nil {
				deny(w, r, http.StatusUnauthorized, "user_not_found", model.DenyUserNotFound)
				return
			}
			// ロック中は認可以前の認証失敗として401で拒否する
			if user.IsLocked(timeNow()) {
				deny(w, r, http.StatusUnauthorized, "account_locked", model.DenyAccountLocked)
				return
			}

			// 6. 認可判定。トークンのロールではなくDB上の現在のロールで判定する
			decision := rbac.Authorize(user.Role, r.Method, r.URL.Path)
			if !decision.Allowed {
				if audit != nil {
					recordDenied(r, audit, user.ID, decision.Missing)
				}

				// 管理者が顧客向けページへ来た場合は管理ダッシュボードへ誘導する
				if !isAPIPath(r.URL.Path) && user.Role.IsAdmin() {
					http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
					return
				}
				deny(w, r, http.StatusForbidden, "forbidden", model.DenyAccessDenied)
				return
			}

			// 7. プリンシパルとJTIをコンテキストに注入
			principal := model.PrincipalOf(user)
			ctx := ContextWithPrincipal(r.Context(), &principal)
			ctx = ContextWithAccessJTI(ctx, claims.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken はAuthorizationヘッダーのBearerトークン、なければ
// Cookieからアクセストークンを取り出す。
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(auth, prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
		return ""
	}
	if cookie, err := r.Cookie(AccessTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// deny は拒否レスポンスを書き込む。API宛はJSON、ページ宛はリダイレクト。
func deny(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	if isAPIPath(r.URL.Path) {
		WriteJSONError(w, statusCode, message)
		return
	}
	redirectToLogin(w, r, code, message)
}

// recordDenied は認可拒否のセキュリティイベントを記録する。
func recordDenied(r *http.Request, audit SecurityRecorder, userID string, missing []rbac.Permission) {
	perms := make([]string, len(missing))
	for i, p := range missing {
		perms[i] = string(p)
	}
	audit.Record(r.Context(), &model.SecurityEvent{
		UserID:    &userID,
		Type:      model.EventUnauthorizedAccess,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
		Details: map[string]any{
			"method":              r.Method,
			"path":                r.URL.Path,
			"missing_permissions": perms,
		},
	})
}
