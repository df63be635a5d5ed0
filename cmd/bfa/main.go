package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/config"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/jobs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "bfa",
		Short:        "BFA do console de parceiros Conecta Conta Azul",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Sobe o servidor HTTP (padrão)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		newSimulateCmd(),
		newRefreshTokensCmd(),
	)
	return root
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// --- Config ---
	cfg, logger, err := loadConfig()
	defer logger.Sync()
	if err != nil {
		logger.Error("configuration rejected", zap.Error(err))
		return err
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("oauth_exchange_mode", cfg.OAuthExchangeMode),
		zap.Bool("token_refresh_enabled", cfg.TokenRefreshEnabled),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "conecta-contaazul-bfa")
	if err != nil {
		logger.Error("failed to init tracer", zap.Error(err))
		return err
	}
	defer shutdownTracer(context.Background())

	// --- Wiring ---
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire application", zap.Error(err))
		return err
	}
	defer a.Close()

	// --- Background jobs ---
	var refreshJob *jobs.TokenRefreshJob
	if cfg.TokenRefreshEnabled {
		refreshJob, err = jobs.NewTokenRefreshJob(a.services.Credentials, a.metrics, cfg.TokenRefreshInterval, cfg.TokenRefreshWindow, logger)
		if err != nil {
			return err
		}
		if err := refreshJob.Start(ctx); err != nil {
			return err
		}
	}

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	logger.Info("server shutting down...")
	if refreshJob != nil {
		if err := refreshJob.Stop(); err != nil {
			logger.Warn("token refresh job did not stop cleanly", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func newRefreshTokensCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "refresh-tokens",
		Short: "Renova uma vez os tokens Conta Azul que expiram em breve e sai",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			defer logger.Sync()
			if err != nil {
				return err
			}
			if window <= 0 {
				window = cfg.TokenRefreshWindow
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.services.Credentials.RefreshExpiring(ctx, window)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d credential(s) failed to refresh", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "renova credenciais que expiram dentro desta janela (padrão TOKEN_REFRESH_WINDOW)")
	return cmd
}
