package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/go-identity-api/internal/application/auth"
	oauthapp "github.com/go-identity-api/internal/application/oauth"
	"github.com/go-identity-api/internal/application/session"
	"github.com/go-identity-api/internal/application/twofactor"
	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/keylock"
	"github.com/go-identity-api/internal/transport/http/handler"
	appmiddleware "github.com/go-identity-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	stepUpMw := appmiddleware.StepUp(deps.JWTProvider)

	// 5 requests/second, burst of 10 — applied to credential endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	// One lock registry shared by every flow that serializes per account.
	locks := keylock.New()

	sessionSvc := session.NewService(session.ServiceDeps{
		Signer:    deps.JWTProvider,
		Blacklist: deps.BlacklistRepo,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Accounts:    deps.AccountRepo,
		Sessions:    sessionSvc,
		Notifier:    deps.Mailer,
		Locks:       locks,
		FrontendURL: cfg.FrontendURL,
		ResetTTL:    cfg.PasswordResetTTL,
		VerifyTTL:   cfg.EmailVerificationTTL,
	})
	twofactorSvc := twofactor.NewService(twofactor.ServiceDeps{
		Accounts: deps.AccountRepo,
		Locks:    locks,
		Issuer:   cfg.TOTPIssuer,
	})
	oauthSvc := oauthapp.NewService(oauthapp.ServiceDeps{
		Providers: deps.OAuthClients,
		Accounts:  deps.AccountRepo,
		Sessions:  sessionSvc,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	twofactorH := handler.NewTwoFactorHandler(twofactorSvc)
	oauthH := handler.NewOAuthHandler(oauthSvc)
	roleH := handler.NewRoleHandler(authSvc)
	userH := handler.NewUserHandler(authSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/forgot-password", authH.ForgotPassword)
		r.With(sensitiveRL.Limit).Post("/auth/reset-password", authH.ResetPassword)
		r.Post("/auth/verify-email", authH.VerifyEmail)
		r.With(sensitiveRL.Limit).Post("/auth/resend-verification", authH.ResendVerification)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.Get("/oauth/{provider}/authorize", oauthH.Authorize)
		r.Get("/oauth/{provider}/callback", oauthH.Callback)

		// ── Step-up routes (2FA challenge token only) ────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(stepUpMw)
			r.With(sensitiveRL.Limit).Post("/auth/2fa/verify", authH.VerifyStepUp)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/me", userH.Me)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Post("/auth/change-password", authH.ChangePassword)
			r.Post("/2fa/setup", twofactorH.Setup)
			r.Post("/2fa/enable", twofactorH.Enable)
			r.Post("/2fa/disable", twofactorH.Disable)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))

				r.Get("/roles", roleH.List)
				r.Put("/users/{id}/role", roleH.Change)
			})
		})
	})

	return r
}
