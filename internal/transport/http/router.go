package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/idgate/internal/application/auth"
	"github.com/idgate/internal/application/password"
	"github.com/idgate/internal/application/session"
	"github.com/idgate/internal/application/verification"
	"github.com/idgate/internal/config"
	"github.com/idgate/internal/notify"
	"github.com/idgate/internal/pkg/linktoken"
	"github.com/idgate/internal/transport/http/handler"
	appmiddleware "github.com/idgate/internal/transport/http/middleware"
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.CaptchaHeader},
		AllowCredentials: true,
	}))

	verifier := verification.NewManager(deps.Store, cfg.OTPTTL, cfg.ResendCooldown, cfg.VerifyFlagTTL)
	links := linktoken.NewCodec(cfg.SecretKey)
	sessions := session.NewService(deps.JWTProvider, deps.Store)
	notifier := notify.NewDispatcher(deps.Mailer, deps.SMSSender)

	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:    deps.UserRepo,
		Verifier:    verifier,
		LinkCodec:   links,
		Sessions:    sessions,
		Notifier:    notifier,
		LinkMaxAge:  cfg.LinkMaxAge,
		LinkBaseURL: cfg.LinkBaseURL,
	})
	passwordSvc := password.NewService(password.ServiceDeps{
		UserRepo:    deps.UserRepo,
		Verifier:    verifier,
		LinkCodec:   links,
		Tokens:      deps.JWTProvider,
		Notifier:    notifier,
		LinkMaxAge:  cfg.LinkMaxAge,
		LinkBaseURL: cfg.LinkBaseURL,
	})

	authHandler := handler.NewAuthHandler(authSvc, sessions)
	passwordHandler := handler.NewPasswordHandler(passwordSvc)
	healthHandler := handler.NewHealthHandler()

	gate := appmiddleware.NewGate(sessions, deps.UserRepo)
	captcha := appmiddleware.Captcha(deps.Captcha)

	// Code and password endpoints get a tight per-IP budget, refresh a looser one.
	sensitive := appmiddleware.NewRateLimiter(rate.Limit(1), 5)
	refresh := appmiddleware.NewRateLimiter(rate.Limit(5), 20)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", healthHandler.Ping)

		r.Group(func(r chi.Router) {
			r.Use(gate.RequireAnonymous)
			r.Use(captcha)
			r.Use(sensitive.Limit)

			r.Post("/auth/identity", authHandler.SubmitIdentity)
			r.Post("/auth/verify-code", authHandler.VerifyCode)
			r.Post("/auth/verify-link", authHandler.VerifyLink)
			r.Post("/auth/resend", authHandler.Resend)
			r.Post("/auth/login", authHandler.Login)

			r.Post("/password/request", passwordHandler.RequestReset)
			r.Post("/password/verify-code", passwordHandler.VerifyResetCode)
			r.Post("/password/verify-link", passwordHandler.VerifyResetLink)
			r.Post("/password/reset", passwordHandler.ApplyReset)
		})

		r.With(refresh.Limit).Post("/auth/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(gate.RequireAuthenticated)

			r.Post("/auth/logout", authHandler.Logout)
			r.With(gate.RequireNoPasswordSet).Post("/password/first-time", passwordHandler.SetFirstPassword)
			r.With(gate.RequirePasswordSet).Post("/password/change", passwordHandler.ChangePassword)
		})
	})

	return r
}
