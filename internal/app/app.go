// Package app はアプリケーションの起動・初期化・ワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/ichiba/internal/audit"
	"github.com/hitoshi/ichiba/internal/auth"
	"github.com/hitoshi/ichiba/internal/config"
	"github.com/hitoshi/ichiba/internal/database"
	"github.com/hitoshi/ichiba/internal/handler"
	"github.com/hitoshi/ichiba/internal/logger"
	"github.com/hitoshi/ichiba/internal/metrics"
	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/repository"
	"github.com/hitoshi/ichiba/internal/revocation"
	"github.com/hitoshi/ichiba/internal/token"
	"github.com/hitoshi/ichiba/internal/user"
	"github.com/hitoshi/ichiba/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 10*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	refreshTokenRepo := repository.NewPostgresRefreshTokenRepo(db)
	verificationTokenRepo := repository.NewPostgresVerificationTokenRepo(db)
	cartRepo := repository.NewPostgresCartRepo(db)
	wishlistRepo := repository.NewPostgresWishlistRepo(db)
	securityEventRepo := repository.NewPostgresSecurityEventRepo(db)

	// 3. メトリクスと監査
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	auditRecorder := audit.NewRecorder(securityEventRepo, slog.Default(), collector)

	// 4. トークンと失効ストア
	tokenService := token.NewService(token.ServiceConfig{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	revocationStore := revocation.NewMemoryStore(5 * time.Minute)
	defer revocationStore.Stop()

	// 5. ドメインサービスの初期化
	authService := auth.NewService(
		tokenService, userRepo, refreshTokenRepo, verificationTokenRepo,
		revocationStore, auditRecorder,
		auth.ServiceConfig{
			AccessTTL:            cfg.AccessTTL,
			RefreshTTL:           cfg.RefreshTTL,
			MaxFailedLogins:      cfg.MaxFailedLogins,
			LockoutDuration:      cfg.LockoutDuration,
			EmailVerificationTTL: cfg.EmailVerificationTTL,
			PasswordResetTTL:     cfg.PasswordResetTTL,
			MinPasswordLength:    8,
		},
	)
	userService := user.NewService(userRepo, refreshTokenRepo)

	// 6. レート制限。configはreq/min等の単位なのでreq/secへ変換する
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		LoginRate:       rate.Limit(float64(cfg.RateLimitLogin) / (15.0 * 60.0)),
		LoginBurst:      cfg.RateLimitLogin,
		RegisterRate:    rate.Limit(float64(cfg.RateLimitRegister) / 3600.0),
		RegisterBurst:   cfg.RateLimitRegister,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		TokenVerifier:      tokenService,
		Revocations:        revocationStore,
		Users:              userRepo,
		Audit:              auditRecorder,
		RateLimiter:        rateLimiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		EnableHSTS:         cfg.EnableHSTS,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			AccessMaxAge:  int(cfg.AccessTTL.Seconds()),
			RefreshMaxAge: int(cfg.RefreshTTL.Seconds()),
		},
		AuthMetrics: collector,

		CartStore:      cartRepo,
		WishlistStore:  wishlistRepo,
		SecurityEvents: securityEventRepo,
		UserService:    userService,

		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 8. バックグラウンドワーカーとHTTPサーバーの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewJob(refreshTokenRepo, verificationTokenRepo, slog.Default())
	go cleanupJob.RunPeriodically(ctx, cfg.TokenCleanupInterval)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.Version(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
