package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port        int
	LogLevel    string
	MaxInFlight int

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CompanyCacheTTL time.Duration
	LoginFlowTTL    time.Duration
	SessionStoreTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Cloud backend (primary identity + directory backend)
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	UseSupabase        bool

	// REST fallback consumed by the auth client (POST /api/auth/*)
	AuthAPIURL string

	// Served REST fallback store; empty = fixed local roster
	DatabaseURL string

	// Client-side session persistence
	SessionDBPath string

	// JWT for tokens minted by the local/served identity
	JWTSecret string
	JWTTTL    time.Duration

	// Login wizard
	SuccessRedirectDelay time.Duration
	SecureCookies        bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MaxInFlight: getEnvInt("MAX_IN_FLIGHT", 200),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CompanyCacheTTL: getEnvDuration("COMPANY_CACHE_TTL", 5*time.Minute),
		LoginFlowTTL:    getEnvDuration("LOGIN_FLOW_TTL", 30*time.Minute),
		SessionStoreTTL: getEnvDuration("SESSION_STORE_TTL", 30*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		UseSupabase:        getEnv("USE_SUPABASE", "true") == "true",

		AuthAPIURL: getEnv("AUTH_API_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SessionDBPath: getEnv("SESSION_DB_PATH", "zillo-sessions.db"),

		JWTSecret: getEnv("JWT_SECRET", "zillo-default-dev-secret-change-me"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		SuccessRedirectDelay: getEnvDuration("LOGIN_REDIRECT_DELAY", 1500*time.Millisecond),
		SecureCookies:        getEnv("SECURE_COOKIES", "false") == "true",
	}
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
