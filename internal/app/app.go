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

	"github.com/minami/naraigoto/internal/authgw"
	"github.com/minami/naraigoto/internal/config"
	"github.com/minami/naraigoto/internal/database"
	"github.com/minami/naraigoto/internal/filestore"
	"github.com/minami/naraigoto/internal/handler"
	"github.com/minami/naraigoto/internal/logger"
	"github.com/minami/naraigoto/internal/metrics"
	"github.com/minami/naraigoto/internal/middleware"
	"github.com/minami/naraigoto/internal/parent"
	"github.com/minami/naraigoto/internal/provider"
	"github.com/minami/naraigoto/internal/repository"
	"github.com/minami/naraigoto/internal/resolve"
	"github.com/minami/naraigoto/internal/security"
	"github.com/minami/naraigoto/internal/worker/cleanup"
	"github.com/minami/naraigoto/internal/worker/logofetch"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
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

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	providerRepo := repository.NewPostgresProviderRepo(db)
	childRepo := repository.NewPostgresChildRepo(db)

	// 3. 計測の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プロフィール解決レイヤの初期化
	resolver := resolve.NewResolver(providerRepo, childRepo, slog.Default())
	bootstrapper := resolve.NewBootstrapper(resolver, slog.Default(), func(identityID string) {
		collector.RecordForcedLogout()
	})
	bootstrapper.SetResolutionRecorder(collector.RecordResolution)

	// 5. 認証コラボレーターのクライアント。セッション変更通知はブートストラッパーへ流す
	authClient := authgw.NewClient(authgw.Config{
		BaseURL: cfg.AuthBaseURL,
		AnonKey: cfg.AuthAnonKey,
		Timeout: cfg.AuthTimeout,
	}, bootstrapper)

	verifier := authgw.NewHMACVerifier(cfg.AuthJWTSecret)

	// 6. ファイルストレージ
	fileStore := filestore.NewClient(filestore.Config{
		BaseURL:    cfg.StorageBaseURL,
		ServiceKey: cfg.StorageServiceKey,
		Bucket:     cfg.StorageBucket,
	})

	// 7. ドメインサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewDescriptionSanitizer()

	providerService := provider.NewService(providerRepo, sanitizer, ssrfGuard, bootstrapper)
	mediaService := provider.NewMediaService(providerRepo, fileStore, cfg.UploadMaxSize)
	childService := parent.NewService(childRepo, bootstrapper)

	// 8. ルーターの構築
	rlCfg := middleware.DefaultRateLimiterConfig()
	// 設定値はreq/min単位のためreq/secに変換する
	rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rlCfg.GeneralBurst = cfg.RateLimitGeneral
	rlCfg.OTPRate = rate.Limit(float64(cfg.RateLimitOTP) / 60.0)
	rlCfg.OTPBurst = cfg.RateLimitOTP
	rateLimiter := middleware.NewRateLimiter(rlCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		Logger:        slog.Default(),
		TokenVerifier: verifier,
		UserResolver:  bootstrapper,
		RateLimiter:   rateLimiter,

		AuthHandler:     handler.NewAuthHandler(authClient, bootstrapper, collector, cfg.DemoMode, cfg.AuthJWTSecret),
		ProviderHandler: handler.NewProviderHandler(providerService, fileStore),
		MediaHandler:    handler.NewMediaHandler(mediaService, fileStore),
		ChildHandler:    handler.NewChildHandler(childService),
		AdminHandler:    handler.NewAdminHandler(providerService, fileStore),

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AdminAPIKey:       cfg.AdminAPIKey,

		StatusRecorder: collector,
		MetricsHandler: metrics.SetupMetricsRoute(registry),
	})

	// 9. HTTPサーバーの起動
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、ロゴ取得スケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリと計測の初期化
	providerRepo := repository.NewPostgresProviderRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ロゴフェッチャーの初期化
	ssrfGuard := security.NewSSRFGuard()
	fetcher := logofetch.NewFetcher(
		providerRepo, ssrfGuard, collector,
		slog.Default(), cfg.LogoFetchTimeout, cfg.LogoMaxSize,
	)

	// 4. スケジューラの初期化。取得間隔をそのまま再取得の閾値とする
	scheduler := logofetch.NewScheduler(
		providerRepo, fetcher, slog.Default(),
		cfg.LogoFetchInterval, cfg.LogoFetchMaxConcurrent,
	)

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.RetentionDays = cfg.RejectedRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("logo_fetch_interval", cfg.LogoFetchInterval),
		slog.Int("max_concurrent", cfg.LogoFetchMaxConcurrent),
	)

	// 計測エンドポイントをバックグラウンドで公開
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// ロゴ取得スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.LogoFetchInterval)

	slog.Info("worker stopped gracefully")
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

	slog.Info("database migrations completed successfully")
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
