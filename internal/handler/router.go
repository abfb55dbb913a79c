package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/authgw"
	"github.com/minami/naraigoto/internal/middleware"
	"github.com/minami/naraigoto/internal/model"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	Logger        *slog.Logger
	TokenVerifier authgw.TokenVerifier
	UserResolver  middleware.UserResolver
	RateLimiter   *middleware.RateLimiter

	AuthHandler     *AuthHandler
	ProviderHandler *ProviderHandler
	MediaHandler    *MediaHandler
	ChildHandler    *ChildHandler
	AdminHandler    *AdminHandler

	CORSAllowedOrigin string
	// AdminAPIKey が空の場合、管理ルートはマウントされない
	AdminAPIKey string

	// StatusRecorder はレスポンスステータスの計測フック。nil可。
	StatusRecorder middleware.HTTPStatusRecorder
	// MetricsHandler が非nilの場合、/metricsにマウントされる
	MetricsHandler http.Handler
}

// NewRouter はAPI全体のルーターを構築する。
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	session := middleware.NewSessionMiddleware(deps.TokenVerifier)

	r.Get("/health", handleHealth)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証不要: セッション確立と公開カタログ
	r.Group(func(r chi.Router) {
		SetupAuthRoutes(r, deps.AuthHandler)
		SetupPublicProviderRoutes(r, deps.ProviderHandler)
	})

	// OTP送信は認証前のため、クライアントIP単位の専用レート制限のみを通す
	r.With(deps.RateLimiter.OTPMiddleware()).
		Post("/api/auth/otp/send", deps.AuthHandler.HandleOTPSend)

	// 認証必須: セッション共通ルート
	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/auth/logout", deps.AuthHandler.HandleLogout)
		r.Get("/api/auth/me", deps.AuthHandler.HandleMe)
	})

	// 保護者ロール必須
	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewRoleMiddleware(deps.UserResolver, model.RoleParent))

		SetupChildRoutes(r, deps.ChildHandler)
	})

	// 運営者ロール必須
	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewRoleMiddleware(deps.UserResolver, model.RoleProvider))

		SetupProviderRoutes(r, deps.ProviderHandler, deps.MediaHandler)
	})

	// 管理ルート: 管理キーが設定されている場合のみマウントする
	if deps.AdminAPIKey != "" {
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAdminKeyMiddleware(deps.AdminAPIKey))
			SetupAdminRoutes(r, deps.AdminHandler)
		})
	}

	return r
}

// handleHealth は死活監視用のエンドポイント。
// GET /health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
