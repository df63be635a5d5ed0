// Package supabase provides a client for Supabase (PostgREST, RPC, edge
// functions and GoTrue). It is the persistence and identity backend of the
// console.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/domain"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/observability"
	"github.com/boddenberg/conecta-contaazul-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Table names.
const (
	tableTenants     = "tenants"
	tableCredentials = "tenant_credentials"
	tableRules       = "mapping_rules"
	tableUsers       = "user_profiles"
	tableSettings    = "user_settings"
)

// Client wraps HTTP calls to the Supabase APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	anonKey        string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewClient creates a Supabase client. metrics may be nil.
func NewClient(httpClient *http.Client, baseURL, anonKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		metrics:        metrics,
		logger:         logger,
	}
}

// StatusError is a non-2xx answer from Supabase.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// statusErr builds the error for a non-2xx response. Client errors are
// permanent: retrying a 4xx never helps.
func statusErr(method, path string, status int, body []byte) error {
	err := &StatusError{Method: method, Path: path, Status: status, Body: string(body)}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return resilience.Permanent(err)
	}
	return err
}

// execute runs fn behind the circuit breaker with retries and maps the
// outcome to domain errors.
func (c *Client) execute(ctx context.Context, service string, fn func() error) error {
	return c.run(ctx, service, func() error {
		return resilience.RetryWithBackoff(ctx, c.cfg, fn)
	})
}

// executeOnce is execute without retries, for non-idempotent calls.
func (c *Client) executeOnce(ctx context.Context, service string, fn func() error) error {
	return c.run(ctx, service, fn)
}

func (c *Client) run(ctx context.Context, service string, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.incrError(service)
		return &domain.ErrCircuitOpen{Service: service}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.incrError(service)
		return &domain.ErrTimeout{Operation: service}
	}

	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusConflict {
		return &domain.ErrConflict{Message: "Registro já existe"}
	}

	c.incrError(service)
	return &domain.ErrExternalService{Service: service, Err: err}
}

func (c *Client) incrError(service string) {
	if c.metrics != nil {
		c.metrics.IncrExternalError(service)
	}
}

// Ping runs a cheap PostgREST query. Used by /healthz.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doRequest(ctx, http.MethodGet, tableTenants+"?select=id&limit=1")
	return err
}

// parseContentRange extracts the total from a PostgREST Content-Range
// header such as "0-19/42" or "*/0".
func parseContentRange(h string) int {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return 0
	}
	return n
}
