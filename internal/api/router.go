package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/thibou/auth-api/internal/api/handler"
	"github.com/thibou/auth-api/internal/api/middleware"
	"github.com/thibou/auth-api/internal/core/ports"
)

const metricsSubsystem = "auth_api"

// Per-client request budgets for each rate-limit window.
const (
	limitRegister = 5
	limitLogin    = 10
	limitSystem   = 5
	limitMe       = 30
	limitReauth   = 10
	limitSSOURL   = 20
	limitSSOLogin = 10
	limitSSOLink  = 5
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Auth    ports.AuthService
	Links   ports.LinkService
	Users   ports.UserService
	Tokens  ports.TokenVerifier
	StepUp  middleware.FreshnessChecker
	Limiter ports.RateLimiter // nil disables rate limiting
	Health  map[string]handler.DependencyCheck
	Log     zerolog.Logger

	// MetricsRegistry receives the HTTP metrics. Nil means the default registry.
	MetricsRegistry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(prometheusMiddleware(deps.MetricsRegistry))

	limit := func(route string, n int) echo.MiddlewareFunc {
		return middleware.RateLimit(deps.Limiter, route, n, deps.Log)
	}
	authn := middleware.Auth(deps.Tokens)
	stepUp := middleware.StepUp(deps.StepUp, deps.Log)
	scope := middleware.RequireScope

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register, limit("register", limitRegister))
	auth.POST("/login", authHandler.Login, limit("login", limitLogin))
	auth.POST("/system", authHandler.SystemToken, limit("system", limitSystem))
	auth.GET("/me", authHandler.Me, authn, scope("user:own:read"), limit("me", limitMe))
	auth.POST("/reauthenticate", authHandler.Reauthenticate, authn, limit("reauthenticate", limitReauth))

	// --- SSO routes ---
	ssoHandler := handler.NewSSOHandler(deps.Auth, deps.Links)
	sso := e.Group("/sso")
	sso.GET("/:provider", ssoHandler.LoginURL, limit("sso_url", limitSSOURL))
	sso.POST("/:provider", ssoHandler.Login, limit("sso_login", limitSSOLogin))
	sso.POST("/:provider/link", ssoHandler.Link, authn, scope("sso:own:write"), stepUp, limit("sso_link", limitSSOLink))
	sso.DELETE("/:provider/unlink", ssoHandler.Unlink, authn, scope("sso:own:write"), stepUp, limit("sso_unlink", limitSSOLink))

	// --- User routes ---
	userHandler := handler.NewUserHandler(deps.Users)
	users := e.Group("/user", authn)
	users.GET("", userHandler.List, scope("user:admin"))
	users.GET("/:id", userHandler.Get, scope("user:read", "user:own:read"))
	users.PUT("/:id", userHandler.Update, scope("user:own:write"), stepUp)
	users.DELETE("/:id", userHandler.Delete, scope("user:admin"))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Health)

	e.GET("/health", healthHandler.Liveness)            // liveness
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness

	// --- Operability ---
	e.GET("/metrics", prometheusHandler(deps.MetricsRegistry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func prometheusMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	if reg == nil {
		return echoprometheus.NewMiddleware(metricsSubsystem)
	}
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: reg,
	})
}

func prometheusHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
