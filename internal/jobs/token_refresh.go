// Package jobs holds the background jobs of the BFA.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"

	"github.com/go-co-op/gocron/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("jobs")

// Refresher renews Conta Azul credentials that expire within a window.
type Refresher interface {
	RefreshExpiring(ctx context.Context, window time.Duration) (*domain.RefreshReport, error)
}

// TokenRefreshJob periodically refreshes expiring Conta Azul tokens.
// Runs never overlap: a run that is still going when the next tick fires
// makes the scheduler skip that tick.
type TokenRefreshJob struct {
	scheduler gocron.Scheduler
	refresher Refresher
	metrics   *observability.Metrics
	interval  time.Duration
	window    time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTokenRefreshJob creates the job. It is not scheduled until Start.
// Every completed sweep is published to metrics, where /v1/metrics/console
// reads it.
func NewTokenRefreshJob(refresher Refresher, metrics *observability.Metrics, interval, window time.Duration, logger *zap.Logger) (*TokenRefreshJob, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("token refresh interval must be positive, got %s", interval)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &TokenRefreshJob{
		scheduler: scheduler,
		refresher: refresher,
		metrics:   metrics,
		interval:  interval,
		window:    window,
		timeout:   interval,
		logger:    logger,
	}, nil
}

// Start registers the job and starts the scheduler. The first run happens
// immediately. ctx bounds every run.
func (j *TokenRefreshJob) Start(ctx context.Context) error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() { j.RunOnce(ctx) }),
		gocron.WithName("contaazul-token-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register token refresh job: %w", err)
	}
	j.scheduler.Start()
	j.logger.Info("token refresh job started",
		zap.Duration("interval", j.interval),
		zap.Duration("window", j.window),
	)
	return nil
}

// Stop waits for a running sweep and shuts the scheduler down.
func (j *TokenRefreshJob) Stop() error {
	j.logger.Info("stopping token refresh job")
	return j.scheduler.Shutdown()
}

// RunOnce performs one sweep and publishes its report. A failed sweep
// leaves the previous report in place.
func (j *TokenRefreshJob) RunOnce(ctx context.Context) *domain.RefreshReport {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "TokenRefreshJob.RunOnce")
	defer span.End()

	start := time.Now()
	report, err := j.refresher.RefreshExpiring(ctx, j.window)
	if err != nil {
		span.RecordError(err)
		j.logger.Error("token refresh sweep failed", zap.Error(err))
		return nil
	}

	span.SetAttributes(
		attribute.Int("refresh.checked", report.Checked),
		attribute.Int("refresh.failed", report.Failed),
	)
	j.logger.Info("token refresh sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("failed", report.Failed),
		zap.Int("deactivated", report.Deactivated),
		zap.Duration("took", time.Since(start)),
	)

	finished := time.Now().UTC()
	report.FinishedAt = &finished
	j.metrics.RecordRefreshSweep(report)
	return report
}
