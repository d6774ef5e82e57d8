// Package app はアプリケーションの初期化と起動を提供する。
// 設定読み込み・依存関係のワイヤリング・サブコマンドのディスパッチを担う。
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hitoshi/voteman/internal/auth"
	"github.com/hitoshi/voteman/internal/cache"
	"github.com/hitoshi/voteman/internal/candidate"
	"github.com/hitoshi/voteman/internal/config"
	"github.com/hitoshi/voteman/internal/database"
	"github.com/hitoshi/voteman/internal/handler"
	"github.com/hitoshi/voteman/internal/logger"
	"github.com/hitoshi/voteman/internal/metrics"
	"github.com/hitoshi/voteman/internal/middleware"
	"github.com/hitoshi/voteman/internal/notify"
	"github.com/hitoshi/voteman/internal/repository"
	"github.com/hitoshi/voteman/internal/storage"
	"github.com/hitoshi/voteman/internal/token"
	"github.com/hitoshi/voteman/internal/user"
	"github.com/hitoshi/voteman/internal/vote"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、.envがあれば読み込んだうえで
// 環境変数からConfigをロードする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. ローカル開発用の.envを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	// 3. 環境変数から設定を読み込む
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
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB・Redis・AWSクライアントを準備し、全依存関係をワイヤリングして
// HTTPサーバーを起動する。
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

	// 2. Redis接続（キャッシュ層）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelPing()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))

	cacheStore := cache.NewRedisStore(redisClient, cfg.CacheTTL)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	candidateRepo := repository.NewPostgresCandidateRepo(db)
	voteRepo := repository.NewPostgresVoteRepo(db)
	resetRepo := repository.NewPostgresResetRepo(db)

	// 4. 外部サービスクライアントの初期化
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	objectStore := storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.AWSRegion)
	smsSender := notify.NewSNSSender(sns.NewFromConfig(awsCfg))

	mailer, err := notify.NewSMTPMailer(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	// 5. メトリクスとトークンサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	tokenService := token.NewService(cfg.JWTSecret)

	// 6. ドメインサービスの初期化
	userService := user.NewService(
		userRepo, resetRepo, tokenService, cacheStore,
		objectStore, mailer, smsSender, collector, cfg.BaseURL,
	)
	authService := auth.NewService(userService, tokenService, userRepo)
	candidateService := candidate.NewService(candidateRepo, cacheStore, collector)
	voteService := vote.NewService(userRepo, candidateRepo, voteRepo, cacheStore, collector)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.ResetRequestInterval > 0 {
		rateLimiterCfg.ResetRate = rate.Limit(1.0 / cfg.ResetRequestInterval.Seconds())
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger: slog.Default(),

		SessionVerifier:    tokenService,
		TokenVersionFinder: userRepo,
		UserFinder:         userRepo,
		RateLimiter:        rateLimiter,
		Metrics:            collector,

		UserService:      userService,
		AuthService:      authService,
		CandidateService: candidateService,
		VoteService:      voteService,

		DB:       db,
		Gatherer: registry,

		CookieSettings: token.CookieSettings{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
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
