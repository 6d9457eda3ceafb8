package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Emperor1p/nclexkeysinternational/internal/auth"
	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/service"
	"github.com/Emperor1p/nclexkeysinternational/pkg/health"
	"github.com/Emperor1p/nclexkeysinternational/pkg/middleware"
)

// RouterConfig carries the services and policies the router wires together.
type RouterConfig struct {
	Users       *service.UserService
	Payments    *service.PaymentService
	Enrollments *service.EnrollmentService
	Codes       *service.CodeService
	Courses     *service.CourseService

	JWTManager      *auth.JWTManager
	WebhookVerifier WebhookVerifier
	Health          *health.Handler
	CORS            middleware.CORSConfig
	RateLimit       middleware.RateLimitConfig
	PprofCIDRs      []string
	Logger          *slog.Logger
}

// NewRouter creates a chi router with all platform routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Tracing("nclex"))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("nclex"))

	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)
	}

	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := cfg.JWTManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	authHandler := NewAuthHandler(cfg.Users, cfg.Logger)
	paymentHandler := NewPaymentHandler(cfg.Payments, cfg.WebhookVerifier, cfg.Logger)
	enrollmentHandler := NewEnrollmentHandler(cfg.Enrollments, cfg.Logger)
	codeHandler := NewCodeHandler(cfg.Codes, cfg.Logger)
	courseHandler := NewCourseHandler(cfg.Courses, cfg.Logger)

	// Auth endpoints (public).
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(limiter.Handler)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/refresh", authHandler.RefreshToken)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Post("/verify-email", authHandler.VerifyEmail)
	})

	// Enrollment flow endpoints (public: prospects have no account yet).
	r.Route("/api/enrollment", func(r chi.Router) {
		r.Use(limiter.Handler)

		r.Get("/", enrollmentHandler.GetFlow)
		r.Delete("/", enrollmentHandler.Discard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Post("/start", enrollmentHandler.Start)
			r.Post("/plan", enrollmentHandler.SelectPlan)
			r.Post("/initiate", enrollmentHandler.InitiatePayment)
			r.Post("/collected", enrollmentHandler.CompleteCollection)
			r.Post("/verify", enrollmentHandler.Verify)
		})
	})

	// Plan catalogue; immutable, so cacheable.
	r.With(middleware.CacheControl(3600)).Get("/api/plans", enrollmentHandler.ListPlans)

	// Payment endpoints (public: charged before any account exists).
	r.Route("/api/payments", func(r chi.Router) {
		r.With(middleware.ContentTypeJSON, limiter.Handler).Post("/initialize", paymentHandler.Initialize)
		r.With(limiter.Handler).Post("/verify/{reference}", paymentHandler.Verify)
		r.Get("/{reference}", paymentHandler.Get)
		r.Get("/{reference}/checkout", paymentHandler.CheckoutParams)

		// Provider webhooks authenticate by signature, not by session.
		r.Post("/webhook/paystack", paymentHandler.PaystackWebhook)
	})

	// Authenticated user endpoints.
	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me", authHandler.GetProfile)
	})

	// Course catalogue (students) and content/code administration.
	r.Route("/api/courses", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/", courseHandler.List)
		r.Get("/{id}", courseHandler.Get)

		r.With(middleware.RequireRole(domain.RoleAdmin, domain.RoleInstructor)).
			Post("/", courseHandler.Upload)
	})

	r.Route("/api/codes", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(domain.RoleAdmin))
		r.Use(middleware.ContentTypeJSON)

		r.Get("/", codeHandler.ListCodes)
		r.Post("/generate", codeHandler.Generate)
		r.Post("/validate", codeHandler.Validate)
	})

	return r
}
