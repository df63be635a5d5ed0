package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/config"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/handler"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/cache"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/contaazul"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/secretbox"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/statestore"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/port"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/service"

	"go.uber.org/zap"
)

// stateStore is what the OAuth flow and /healthz need from the state backend.
type stateStore interface {
	port.StateStore
	port.Pinger
	Close() error
}

// app holds the wired services shared by the serve and refresh-tokens commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	supabase *supabase.Client
	states   stateStore
	services handler.Services
	profiles *cache.InMemory[*domain.UserProfile]
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	metrics := observability.NewMetrics()

	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	sb := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		resilience.NewCircuitBreaker("supabase"),
		resilienceCfg,
		metrics,
		logger,
	)

	sealer, err := secretbox.New(cfg.CredentialsMasterKey)
	if err != nil {
		return nil, fmt.Errorf("credentials master key: %w", err)
	}

	caCfg := contaazul.Config{
		ClientID:     cfg.ContaAzulClientID,
		ClientSecret: cfg.ContaAzulClientSecret,
		AuthURL:      cfg.ContaAzulAuthURL,
		TokenURL:     cfg.ContaAzulTokenURL,
		Scope:        cfg.ContaAzulScope,
	}

	var exchanger port.TokenExchanger
	switch cfg.OAuthExchangeMode {
	case config.ExchangeDirect:
		exchanger = contaazul.NewClient(httpClient, caCfg, resilience.NewCircuitBreaker("contaazul"), logger)
	default:
		exchanger = supabase.NewEdgeExchanger(sb)
	}
	logger.Info("token exchange configured", zap.String("mode", cfg.OAuthExchangeMode))

	var states stateStore
	if cfg.RedisURL != "" {
		rs, err := statestore.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("oauth state store: %w", err)
		}
		states = rs
		logger.Info("oauth state stored in redis")
	} else {
		states = statestore.NewMemory(cfg.OAuthStateTTL)
		logger.Warn("oauth state kept in memory; run a single replica or set REDIS_URL")
	}

	profiles := cache.New[*domain.UserProfile](cfg.CacheTTL)

	users := service.NewUserService(sb, profiles, metrics, logger)
	svcs := handler.Services{
		Auth:        service.NewAuthService(sb, users, cfg.SupabaseJWTSecret, cfg.FrontendURL, logger),
		Users:       users,
		Tenants:     service.NewTenantService(sb, sb, sb, logger),
		Credentials: service.NewCredentialService(sb, sb, sealer, exchanger, metrics, logger),
		Mapping:     service.NewMappingService(sb, sb, metrics, logger),
		Settings:    service.NewSettingsService(sb, sb),
		OAuth: service.NewOAuthService(service.OAuthConfig{
			Provider:    caCfg,
			RedirectURI: cfg.ContaAzulRedirectURI,
			FrontendURL: cfg.FrontendURL,
			StateTTL:    cfg.OAuthStateTTL,
		}, sb, sb, users, states, exchanger, sealer, metrics, logger),
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		supabase: sb,
		states:   states,
		services: svcs,
		profiles: profiles,
	}, nil
}

func (a *app) router() http.Handler {
	return handler.NewRouter(a.services, handler.Options{
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		HealthChecks: []handler.HealthCheck{
			{Name: "supabase", Pinger: a.supabase},
			{Name: "oauth-state", Pinger: a.states},
		},
	}, a.metrics, a.logger)
}

func (a *app) Close() error {
	a.profiles.Close()
	return a.states.Close()
}
