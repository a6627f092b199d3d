package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-session-auth/internal/application/auth"
	"github.com/go-session-auth/internal/application/credential"
	"github.com/go-session-auth/internal/application/notification"
	"github.com/go-session-auth/internal/application/otp"
	"github.com/go-session-auth/internal/application/reset"
	"github.com/go-session-auth/internal/application/session"
	"github.com/go-session-auth/internal/config"
	"github.com/go-session-auth/internal/infrastructure/smtp"
	"github.com/go-session-auth/internal/infrastructure/sns"
	"github.com/go-session-auth/internal/observability"
	"github.com/go-session-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-session-auth/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo     UserRepository
	SessionStore SessionRepository
	Signer       CookieSigner
	Mailer       smtp.Mailer
	Templates    TemplateStore // optional
	Events       sns.Publisher // optional
	Metrics      *observability.Metrics
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitRPS > 0 {
		limit = appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst).Limit
	}

	credentialSvc := credential.NewService(credential.ServiceDeps{
		UserRepo:   deps.UserRepo,
		BcryptCost: cfg.BcryptCost,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		Store:  deps.SessionStore,
		Users:  deps.UserRepo,
		Signer: deps.Signer,
		TTL:    cfg.SessionTTL,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		UserRepo: deps.UserRepo,
		Verifier: credentialSvc,
		TTL:      cfg.OTPTTL,
	})
	resetSvc := reset.NewService(reset.ServiceDeps{
		UserRepo:  deps.UserRepo,
		Passwords: credentialSvc,
		Sessions:  sessionSvc,
		TTL:       cfg.ResetTokenTTL,
	})
	notifSvc := notification.NewService(notification.ServiceDeps{
		Mailer:    deps.Mailer,
		Templates: deps.Templates,
		BaseURL:   cfg.AppBaseURL,
		OTPTTL:    cfg.OTPTTL,
		ResetTTL:  cfg.ResetTokenTTL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Credentials: credentialSvc,
		OTPs:        otpSvc,
		Resets:      resetSvc,
		Sessions:    sessionSvc,
		Notifier:    notifSvc,
		Events:      deps.Events,
		Metrics:     deps.Metrics,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, handler.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.CookieSecure,
	}, cfg.IsDevelopment())
	requireSession := appmiddleware.RequireSession(sessionSvc, cfg.SessionCookieName)

	r.Get("/health", healthH.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/register", authH.Register)
			r.Post("/verify-otp", authH.VerifyOTP)
			r.Post("/resend-otp", authH.ResendOTP)
			r.Post("/login", authH.Login)
			r.Post("/forgot-password", authH.ForgotPassword)
			r.Post("/reset-password", authH.ResetPassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/logout", authH.Logout)
			r.Get("/dashboard", authH.Dashboard)
		})
	})

	return r
}
