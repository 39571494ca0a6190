package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/ichiba/internal/metrics"
	"github.com/hitoshi/ichiba/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier      middleware.TokenVerifier
	Revocations        middleware.RevocationChecker
	Users              middleware.PrincipalFinder
	Audit              middleware.SecurityRecorder
	RateLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string
	EnableHSTS         bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	AuthMetrics AuthMetrics

	// カート・ウィッシュリスト
	CartStore     CartStore
	WishlistStore WishlistStore

	// 管理ダッシュボード
	SecurityEvents SecurityEventLister

	// ユーザー
	UserService UserServiceInterface

	// /metrics用。nilの場合はルートを公開しない
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → RateLimit
//
// 公開エンドポイントの素通しはAuthミドルウェア内のメソッド付き許可リストが行うため、
// Authは全ルートに適用する。ログイン・登録には専用のIP別レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(nil))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.EnableHSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.Revocations, deps.Users, deps.Audit))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.AuthMetrics)
	cartHandler := NewCartHandler(deps.CartStore)
	wishlistHandler := NewWishlistHandler(deps.WishlistStore)
	adminHandler := NewAdminHandler(deps.SecurityEvents)
	userHandler := NewUserHandler(deps.UserService)

	// --- 運用エンドポイント（公開） ---

	r.Get("/health", handleHealth)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証ルート ---
	// login/register/refresh等は公開、logout/meはAuthミドルウェアで保護される

	r.Route("/api/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.RegisterMiddleware()).Post("/register", authHandler.Register)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/verify-email", authHandler.VerifyEmail)
		r.Post("/request-password-reset", authHandler.RequestPasswordReset)
		r.Post("/reset-password", authHandler.ResetPassword)

		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証必須のルート ---
	// ユーザー別の一般レート制限を追加で適用する

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.List)
			r.Post("/", cartHandler.Add)
			r.Put("/", cartHandler.Update)
			r.Delete("/", cartHandler.Remove)
		})

		r.Route("/api/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.List)
			r.Post("/", wishlistHandler.Add)
			r.Delete("/", wishlistHandler.Remove)
		})

		r.Get("/api/admin/security-events", adminHandler.ListSecurityEvents)

		r.Delete("/api/profile", userHandler.Withdraw)
	})

	return r
}

// handleHealth はヘルスチェックに応答する。
// GET /health
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
