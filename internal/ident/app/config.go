package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
)

// Key storage modes.
const (
	KeyModeEphemeral  = "ephemeral"
	KeyModePersistent = "persistent"
)

type Config struct {
	HTTPAddr string // listen address (default: :8080)
	Issuer   string // absolute issuer URL, also the base of the discovery document

	DatabaseFile  string // SQLite database file (default: ident.db)
	PepperFile    string // password hashing pepper, created on first start (default: pepper)
	MasterKey     string // at-rest encryption key material
	MasterKeyFile string // file holding the master key; wins over MasterKey

	KeyMode     string        // ephemeral or persistent (default: ephemeral)
	NumKeys     int           // active signing keys (default: 1)
	RSABits     int           // modulus of new signing keys (default: 3072)
	KeyLifetime time.Duration // persistent keys expire after this (default: 90 days)

	LockoutThreshold int           // failed logins before lockout (default: 5)
	LockoutDuration  time.Duration // lockout length (default: 30m)

	CodeTTL             time.Duration // authorization code lifetime (default: 5m)
	AccessTTL           time.Duration // access token lifetime (default: 15m)
	RefreshTTL          time.Duration // refresh token lifetime (default: 7 days)
	IDTokenTTL          time.Duration // ID token lifetime (default: 1h)
	ResetTTL            time.Duration // password reset token lifetime (default: 1h)
	MfaTokenTTL         time.Duration // mfa_token lifetime (default: 5m)
	MfaTokenMaxAttempts int           // wrong codes an mfa_token survives (default: 5)
	TOTPMaxTimeSteps    int           // accepted TOTP drift in 30s steps (default: 1)
	AllowMfaDisable     bool          // whether users may switch MFA off (default: true)

	LoginURL   string // where authorize sends users without a session
	ConsentURL string // where authorize sends users without consent
	LinkBase   string // optional base URL for links in verification and reset mail

	RedisURL string // optional, shares mfa_tokens between replicas

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLSMode  string // starttls, ssl or none (default: starttls)

	RateLimitEnabled bool
	StrictLimit      httpx.RateLimitConfig
	ModerateLimit    httpx.RateLimitConfig
	PublicLimit      httpx.RateLimitConfig
	TrustProxy       bool // take the client address from X-Forwarded-For

	MetricsEnabled bool // serve /metrics (default: true)

	Env                  string        // dev, staging, prod (default: dev)
	LogLevel             string        // debug, info, warn, error (default: info)
	LogFormat            string        // json, text (default: json)
	ShutdownGracePeriod  time.Duration // graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // cleanup interval (default: 1h)
}

// LoadConfig reads the configuration from the environment. A .env file in the
// working directory is loaded first; variables already set win over it.
func LoadConfig() Config {
	_ = godotenv.Load()

	issuer := strings.TrimSuffix(getEnvOrDefault("IDENT_ISSUER", "http://localhost:8080"), "/")

	cfg := Config{
		HTTPAddr: getEnvOrDefault("IDENT_HTTP_ADDR", ":8080"),
		Issuer:   issuer,

		DatabaseFile:  getEnvOrDefault("IDENT_DATABASE_FILE", "ident.db"),
		PepperFile:    getEnvOrDefault("IDENT_PEPPER_FILE", "pepper"),
		MasterKey:     os.Getenv("IDENT_MASTER_KEY"),
		MasterKeyFile: os.Getenv("IDENT_MASTER_KEY_FILE"),

		KeyMode:     strings.ToLower(getEnvOrDefault("IDENT_KEY_MODE", KeyModeEphemeral)),
		NumKeys:     getEnvIntOrDefault("IDENT_NUM_KEYS", 1),
		RSABits:     getEnvIntOrDefault("IDENT_RSA_BITS", jwtx.DefaultRSABits),
		KeyLifetime: getEnvDurationOrDefault("IDENT_KEY_LIFETIME", jwtx.DefaultKeyLifetime),

		LockoutThreshold: getEnvIntOrDefault("IDENT_LOCKOUT_THRESHOLD", domain.DefaultLockoutPolicy.Threshold),
		LockoutDuration:  getEnvDurationOrDefault("IDENT_LOCKOUT_DURATION", domain.DefaultLockoutPolicy.Duration),

		CodeTTL:             getEnvDurationOrDefault("IDENT_CODE_TTL", 5*time.Minute),
		AccessTTL:           getEnvDurationOrDefault("IDENT_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:          getEnvDurationOrDefault("IDENT_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		IDTokenTTL:          getEnvDurationOrDefault("IDENT_ID_TOKEN_TTL", time.Hour),
		ResetTTL:            getEnvDurationOrDefault("IDENT_RESET_TTL", time.Hour),
		MfaTokenTTL:         getEnvDurationOrDefault("IDENT_MFA_TOKEN_TTL", 5*time.Minute),
		MfaTokenMaxAttempts: getEnvIntOrDefault("IDENT_MFA_TOKEN_MAX_ATTEMPTS", 5),
		TOTPMaxTimeSteps:    getEnvIntOrDefault("IDENT_TOTP_MAX_TIME_STEPS", 1),
		AllowMfaDisable:     getEnvBoolOrDefault("IDENT_ALLOW_MFA_DISABLE", true),

		LoginURL:   getEnvOrDefault("IDENT_LOGIN_URL", issuer+"/login"),
		ConsentURL: getEnvOrDefault("IDENT_CONSENT_URL", issuer+"/consent"),
		LinkBase:   os.Getenv("IDENT_LINK_BASE"),

		RedisURL: os.Getenv("IDENT_REDIS_URL"),

		SMTPHost:     os.Getenv("IDENT_SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("IDENT_SMTP_PORT", 587),
		SMTPUsername: os.Getenv("IDENT_SMTP_USERNAME"),
		SMTPPassword: os.Getenv("IDENT_SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("IDENT_SMTP_FROM"),
		SMTPTLSMode:  getEnvOrDefault("IDENT_SMTP_TLS", "starttls"),

		RateLimitEnabled: getEnvBoolOrDefault("IDENT_RATE_LIMIT_ENABLED", true),
		StrictLimit:      getEnvLimitOrDefault("IDENT_RATE_LIMIT_STRICT", httpx.StrictLimit),
		ModerateLimit:    getEnvLimitOrDefault("IDENT_RATE_LIMIT_MODERATE", httpx.ModerateLimit),
		PublicLimit:      getEnvLimitOrDefault("IDENT_RATE_LIMIT_PUBLIC", httpx.PublicLimit),
		TrustProxy:       getEnvBoolOrDefault("IDENT_TRUST_PROXY", false),

		MetricsEnabled: getEnvBoolOrDefault("IDENT_METRICS_ENABLED", true),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("IDENT_SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("IDENT_HOUSEKEEPING_INTERVAL", time.Hour),
	}
	return cfg
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Issuer)
	if err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("IDENT_ISSUER must be an absolute URL, got %q", c.Issuer))
	} else if u.RawQuery != "" || u.Fragment != "" {
		errs = append(errs, errors.New("IDENT_ISSUER must not carry a query or fragment"))
	}

	switch c.KeyMode {
	case KeyModeEphemeral:
	case KeyModePersistent:
		if c.MasterKey == "" && c.MasterKeyFile == "" {
			errs = append(errs, errors.New("persistent keys need IDENT_MASTER_KEY or IDENT_MASTER_KEY_FILE"))
		}
	default:
		errs = append(errs, fmt.Errorf("IDENT_KEY_MODE must be %s or %s, got %q", KeyModeEphemeral, KeyModePersistent, c.KeyMode))
	}

	if c.LockoutThreshold < 1 {
		errs = append(errs, errors.New("IDENT_LOCKOUT_THRESHOLD must be at least 1"))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("IDENT_SMTP_FROM is required with IDENT_SMTP_HOST"))
	}
	return errors.Join(errs...)
}

// Limits returns the rate limit profiles the router applies. Disabled rate
// limiting yields zero configs, which let everything through.
func (c Config) Limits() (strict, moderate, public httpx.RateLimitConfig) {
	if !c.RateLimitEnabled {
		return
	}
	return c.StrictLimit, c.ModerateLimit, c.PublicLimit
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvLimitOrDefault parses "<requests>/<window>", e.g. "5/1m". The burst
// equals the request count.
func getEnvLimitOrDefault(key string, defaultValue httpx.RateLimitConfig) httpx.RateLimitConfig {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, w, ok := strings.Cut(value, "/")
	if !ok {
		return defaultValue
	}
	requests, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil || requests < 0 {
		return defaultValue
	}
	window, err := time.ParseDuration(strings.TrimSpace(w))
	if err != nil {
		return defaultValue
	}
	return httpx.RateLimitConfig{RequestsPerWindow: requests, Window: window, Burst: requests}
}
