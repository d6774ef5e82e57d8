package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/voteman/internal/metrics"
	"github.com/hitoshi/voteman/internal/middleware"
	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/token"
)

// Pinger はヘルスチェックに必要なデータベース接続のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionVerifier    middleware.SessionVerifier
	TokenVersionFinder middleware.TokenVersionFinder
	UserFinder         middleware.UserFinder
	RateLimiter        *middleware.RateLimiter
	Metrics            middleware.StatusRecorder

	// サービス
	UserService      UserServiceInterface
	AuthService      AuthServiceInterface
	CandidateService CandidateServiceInterface
	VoteService      VoteServiceInterface

	// 運用エンドポイント
	DB       Pinger
	Gatherer prometheus.Gatherer

	CookieSettings token.CookieSettings
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成した
// chi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → (Auth → RateLimit)
//
// /health・/metrics・signup・loginは認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))

	userHandler := NewUserHandler(deps.UserService, deps.AuthService, deps.CookieSettings)
	candidateHandler := NewCandidateHandler(deps.CandidateService, deps.VoteService)

	authMw := middleware.NewAuthMiddleware(deps.SessionVerifier, deps.TokenVersionFinder)
	adminMw := middleware.NewAdminMiddleware(deps.UserFinder)
	noQuery := middleware.NewNoQueryParamsMiddleware()

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- ユーザー ---
	r.Route("/user", func(r chi.Router) {
		// 認証不要のルート
		r.With(noQuery).Post("/signup", userHandler.Signup)
		r.With(noQuery).Post("/login", userHandler.Login)

		// 認証が必要なルート
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/logout", userHandler.Logout)
			r.With(noQuery).Get("/profile", userHandler.Profile)
			r.With(noQuery).Put("/updateUser", userHandler.UpdateUser)
			r.With(noQuery).Put("/update-password", userHandler.UpdatePassword)
			r.With(noQuery, deps.RateLimiter.ResetRequestMiddleware()).
				Post("/request-password-reset", userHandler.RequestPasswordReset)
			r.With(noQuery).Post("/password-reset", userHandler.PasswordReset)
		})
	})

	// --- 立候補者・投票 ---
	r.Route("/candidate", func(r chi.Router) {
		r.Use(authMw)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", candidateHandler.List)
		r.With(noQuery).Get("/vote-count", candidateHandler.VoteCount)
		r.With(noQuery).Get("/vote/{candidateID}", candidateHandler.Vote)

		// 登録と削除は管理者専用。更新はフィールド制限のみで全ユーザーに開放する
		r.With(adminMw, noQuery).Post("/", candidateHandler.Add)
		r.With(noQuery).Put("/update-candidate/{candidateID}", candidateHandler.Update)
		r.With(adminMw, noQuery).Delete("/delete-candidate/{candidateID}", candidateHandler.Delete)
	})

	return r
}

// healthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeAPIErrorResponse(w, http.StatusServiceUnavailable,
				model.NewDependencyError("データベースに接続できません。"))
			return
		}

		writeSuccessResponse(w, http.StatusOK, "ok", nil)
	}
}
