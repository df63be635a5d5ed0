package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Frontend (SPA) origin, used for OAuth result redirects and CORS
	FrontendURL        string
	CORSAllowedOrigins []string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Token sealing
	CredentialsMasterKey string

	// Conta Azul OAuth
	ContaAzulClientID     string
	ContaAzulClientSecret string
	ContaAzulRedirectURI  string
	ContaAzulAuthURL      string
	ContaAzulTokenURL     string
	ContaAzulScope        string
	OAuthExchangeMode     string // edge (Supabase function) | direct
	OAuthStateTTL         time.Duration

	// Optional Redis for OAuth state (memory when empty)
	RedisURL string

	// Token refresh job
	TokenRefreshEnabled  bool
	TokenRefreshInterval time.Duration
	TokenRefreshWindow   time.Duration
}

// Exchange modes.
const (
	ExchangeEdge   = "edge"
	ExchangeDirect = "direct"
)

// LoadDotEnv reads a .env file into the environment.
// Existing env vars take precedence.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),

		CredentialsMasterKey: getEnv("CREDENTIALS_MASTER_KEY", ""),

		ContaAzulClientID:     getEnv("CONTAAZUL_CLIENT_ID", ""),
		ContaAzulClientSecret: getEnv("CONTAAZUL_CLIENT_SECRET", ""),
		ContaAzulRedirectURI:  getEnv("CONTAAZUL_REDIRECT_URI", "http://localhost:8080/v1/oauth/contaazul/callback"),
		ContaAzulAuthURL:      getEnv("CONTAAZUL_AUTH_URL", "https://auth.contaazul.com/login"),
		ContaAzulTokenURL:     getEnv("CONTAAZUL_TOKEN_URL", "https://auth.contaazul.com/oauth2/token"),
		ContaAzulScope:        getEnv("CONTAAZUL_SCOPE", "openid profile aws.cognito.signin.user.admin"),
		OAuthExchangeMode:     getEnv("OAUTH_EXCHANGE_MODE", ExchangeEdge),
		OAuthStateTTL:         getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),

		RedisURL: getEnv("REDIS_URL", ""),

		TokenRefreshEnabled:  getEnvBool("TOKEN_REFRESH_ENABLED", true),
		TokenRefreshInterval: getEnvDuration("TOKEN_REFRESH_INTERVAL", 10*time.Minute),
		TokenRefreshWindow:   getEnvDuration("TOKEN_REFRESH_WINDOW", 15*time.Minute),
	}
}

// Validate reports every missing setting required to serve traffic.
func (c *Config) Validate() error {
	var errs []error
	required := []struct{ key, value string }{
		{"SUPABASE_URL", c.SupabaseURL},
		{"SUPABASE_SERVICE_ROLE_KEY", c.SupabaseServiceKey},
		{"SUPABASE_JWT_SECRET", c.SupabaseJWTSecret},
		{"CREDENTIALS_MASTER_KEY", c.CredentialsMasterKey},
		{"CONTAAZUL_CLIENT_ID", c.ContaAzulClientID},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, errors.New(r.key+" is required"))
		}
	}
	switch c.OAuthExchangeMode {
	case ExchangeEdge:
	case ExchangeDirect:
		if c.ContaAzulClientSecret == "" {
			errs = append(errs, errors.New("CONTAAZUL_CLIENT_SECRET is required when OAUTH_EXCHANGE_MODE=direct"))
		}
	default:
		errs = append(errs, errors.New("OAUTH_EXCHANGE_MODE must be edge or direct"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
