package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups what the router dispatches to. Any field may be nil:
// the routes it serves then answer 503.
type Services struct {
	Auth        *service.AuthService
	Users       *service.UserService
	Tenants     *service.TenantService
	Credentials *service.CredentialService
	Mapping     *service.MappingService
	OAuth       *service.OAuthService
	Settings    *service.SettingsService
}

// HealthCheck is a dependency checked by /healthz.
type HealthCheck struct {
	Name   string
	Pinger port.Pinger
}

// Options configures the router.
type Options struct {
	CORSAllowedOrigins []string
	HealthChecks       []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.HealthChecks, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/console", consoleMetricsHandler(metrics))

		// =============================================
		// Autenticação (GoTrue proxy)
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			if svcs.Auth == nil {
				r.Handle("/*", unavailable("auth"))
				return
			}
			r.Post("/signup", authSignUpHandler(svcs.Auth, logger))
			r.Post("/signin", authSignInHandler(svcs.Auth, logger))
			r.Post("/refresh", authRefreshHandler(svcs.Auth, logger))
			r.Post("/password/reset", authPasswordResetHandler(svcs.Auth, logger))
		})

		// =============================================
		// Conta Azul OAuth callback (browser redirect, no bearer)
		// =============================================
		if svcs.OAuth != nil {
			r.Get("/oauth/contaazul/callback", oauthCallbackRedirectHandler(svcs.OAuth, logger))
			r.Post("/oauth/contaazul/callback", oauthCallbackURLHandler(svcs.OAuth, logger))
		} else {
			r.Handle("/oauth/contaazul/callback", unavailable("oauth"))
		}

		if svcs.Auth == nil || svcs.Users == nil {
			return
		}

		// =============================================
		// Console (bearer required)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, svcs.Users, logger))

			r.Get("/me", meHandler())

			r.Route("/users", func(r chi.Router) {
				r.With(RequireAdmin).Get("/", listUsersHandler(svcs.Users, logger))
				r.Get("/{userId}", getUserHandler(svcs.Users, logger))
				r.Put("/{userId}", updateUserHandler(svcs.Users, logger))
				r.With(RequireAdmin).Post("/{userId}/deactivate", deactivateUserHandler(svcs.Users, logger))
			})

			if svcs.Settings != nil {
				r.Get("/settings", getSettingsHandler(svcs.Settings, logger))
				r.Put("/settings", putSettingsHandler(svcs.Settings, logger))
			}

			if svcs.Tenants == nil {
				return
			}
			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", listTenantsHandler(svcs.Tenants, logger))
				r.Post("/", createTenantHandler(svcs.Tenants, logger))

				r.Route("/{tenantId}", func(r chi.Router) {
					r.Get("/", getTenantHandler(svcs.Tenants, logger))
					r.Put("/", updateTenantHandler(svcs.Tenants, logger))
					r.Delete("/", deleteTenantHandler(svcs.Tenants, logger))
					r.Get("/dashboard", tenantDashboardHandler(svcs.Tenants, logger))

					if svcs.Credentials != nil {
						r.Get("/credentials", listCredentialsHandler(svcs.Credentials, logger))
						r.Post("/credentials", createCredentialHandler(svcs.Credentials, logger))
						r.Delete("/credentials/{credentialId}", revokeCredentialHandler(svcs.Credentials, logger))
						r.Post("/credentials/{credentialId}/refresh", refreshCredentialHandler(svcs.Credentials, logger))
					}

					if svcs.OAuth != nil {
						r.Post("/oauth/contaazul/authorize", oauthAuthorizeHandler(svcs.OAuth, logger))
					}

					if svcs.Mapping != nil {
						r.Get("/mapping-rules", listRulesHandler(svcs.Mapping, logger))
						r.Post("/mapping-rules", createRuleHandler(svcs.Mapping, logger))
						r.Post("/mapping-rules/simulate", simulateHandler(svcs.Mapping, logger))
						r.Put("/mapping-rules/{ruleId}", updateRuleHandler(svcs.Mapping, logger))
						r.Delete("/mapping-rules/{ruleId}", deleteRuleHandler(svcs.Mapping, logger))
					}
				})
			})
		})
	})

	return r
}

func unavailable(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusServiceUnavailable, name+" service unavailable: Supabase not configured")
	}
}

// ============================================================
// Métricas & Health
// ============================================================

func healthzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}
		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			start := time.Now()
			err := c.Pinger.Ping(ctx)
			cancel()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("health check failed", zap.String("dependency", c.Name), zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: c.Name, Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func consoleMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetConsoleSnapshot())
	}
}
