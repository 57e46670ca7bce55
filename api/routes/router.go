package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/revofy/revofy-backend/api/controllers"
	webhookcontrollers "github.com/revofy/revofy-backend/api/controllers/webhooks"
	"github.com/revofy/revofy-backend/api/middleware"
	"github.com/revofy/revofy-backend/internal/admission"
	"github.com/revofy/revofy-backend/internal/auth"
	"github.com/revofy/revofy-backend/internal/completions"
	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/internal/subscriptions"
	"github.com/revofy/revofy-backend/internal/webhooks/lemonsqueezy"
	"github.com/revofy/revofy-backend/pkg/config"
	"github.com/revofy/revofy-backend/pkg/logger"
	"github.com/revofy/revofy-backend/pkg/metrics"
	"github.com/revofy/revofy-backend/pkg/redis"
)

// Params carries every collaborator the HTTP surface needs.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	Metrics       *metrics.BillingMetrics
	Auth          auth.Service
	Gate          *admission.Gate
	Ledger        *quota.Ledger
	Subscriptions *subscriptions.Repository
	Completions   *completions.Client
	Webhooks      *lemonsqueezy.Service
	ReplayGuard   *lemonsqueezy.ReplayGuard
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.AuthRateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}
	signupPolicy := middleware.AuthRateLimitPolicy{
		Name:       "signup",
		Window:     cfg.AuthRateLimit.SignupWindow,
		IPLimit:    cfg.AuthRateLimit.SignupIPLimit,
		EmailLimit: cfg.AuthRateLimit.SignupEmailLimit,
	}

	var limiter middleware.WindowLimiter
	var redisPinger controllers.Pinger
	if p.Redis != nil {
		limiter = p.Redis
		redisPinger = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": redisPinger,
		}))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	var guard webhookcontrollers.ReplayGuard
	if p.ReplayGuard != nil {
		guard = p.ReplayGuard
	}
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/lemonsqueezy", webhookcontrollers.LemonSqueezyWebhook(p.Webhooks, cfg.LemonSqueezy.WebhookSecret, guard, p.Metrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(signupPolicy, limiter, logg)).Post("/signup", controllers.AuthSignup(p.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/me", controllers.Me(p.Subscriptions, p.Ledger, p.Gate.Limits(), logg))
		r.Post("/billing/checkout", controllers.Checkout(cfg.LemonSqueezy.CheckoutURL, logg))
		r.Post("/chat", controllers.Chat(p.Gate, p.Completions, p.Metrics, logg))
	})

	return r
}
