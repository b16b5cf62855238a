package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/medelle/practice-api/internal/handler/appointment"
	"github.com/medelle/practice-api/internal/handler/auth"
	"github.com/medelle/practice-api/internal/handler/consultation"
	"github.com/medelle/practice-api/internal/handler/health"
	"github.com/medelle/practice-api/internal/handler/patient"
	"github.com/medelle/practice-api/internal/handler/payment"
	"github.com/medelle/practice-api/internal/handler/prometheus"
	"github.com/medelle/practice-api/internal/handler/user"
	"github.com/medelle/practice-api/internal/middleware"
	"github.com/medelle/practice-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers groups every route handler the API mounts
type Handlers struct {
	Health       *health.Handler
	Prometheus   *prometheus.Handler
	Auth         *auth.Handler
	User         *user.Handler
	Patient      *patient.Handler
	Appointment  *appointment.Handler
	Consultation *consultation.Handler
	Payment      *payment.Handler
}

type RouterConfig struct {
	Production     bool
	RateLimit      rate.Limit
	RateBurst      int
	RateLimitOff   bool
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	limiter  *middleware.RateLimiter
}

func NewRouter(
	logger zerolog.Logger,
	m *metrics.Metrics,
	auth *middleware.AuthMiddleware,
	handlers Handlers,
	config RouterConfig,
) *Router {
	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	security := middleware.DefaultSecurityConfig()
	security.HSTS = config.Production

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(),
		middleware.Metrics(m),
		middleware.SecurityHeaders(security),
		middleware.CORS(config.AllowedOrigins),
		middleware.SizeLimit(config.MaxBodyBytes),
		middleware.Timeout(config.RequestTimeout),
		middleware.ErrorHandler(),
	)

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}
	if !config.RateLimitOff {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
	}
	return r
}

func (r *Router) Setup() {
	r.handlers.Health.RegisterRoutes(r.engine)
	if r.handlers.Prometheus != nil {
		r.handlers.Prometheus.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api")
	guard := r.auth.Authenticate()

	r.handlers.Auth.RegisterRoutes(api, guard, r.authLimit())
	r.handlers.Payment.RegisterRoutes(api, guard)

	protected := api.Group("", guard)
	for _, h := range []Handler{
		r.handlers.User,
		r.handlers.Patient,
		r.handlers.Appointment,
		r.handlers.Consultation,
	} {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) authLimit() gin.HandlerFunc {
	if r.limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return r.limiter.RateLimit()
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
