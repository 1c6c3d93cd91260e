// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "ciam-auth"); also served as the OIDC issuer in discovery.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "ciam-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SMSLocalAPIKey is the API key for the OTP SMS/voice delivery provider.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for the delivery provider.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the delivery provider API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// PushGatewayURL is the endpoint push MFA prompts are delivered to. Empty disables push delivery.
	PushGatewayURL string `mapstructure:"PUSH_GATEWAY_URL"`
	// DefaultTrustTTLDays is the device trust TTL in days when no policy overrides it (e.g. 30).
	DefaultTrustTTLDays int `mapstructure:"DEFAULT_TRUST_TTL_DAYS"`
	// MFARequiredAlways forces MFA on every login regardless of device trust.
	MFARequiredAlways bool `mapstructure:"MFA_REQUIRED_ALWAYS"`
	// MFATransactionTTL is the lifetime of an MFA challenge transaction (e.g. "2m").
	MFATransactionTTL string `mapstructure:"MFA_TRANSACTION_TTL"`
	// MFAMaxOTPAttempts is the number of wrong OTP submissions before the transaction is force-expired.
	MFAMaxOTPAttempts int `mapstructure:"MFA_MAX_OTP_ATTEMPTS"`
	// MFAPollRetryAfter is the back-off hint in seconds returned to push polling clients.
	MFAPollRetryAfter int `mapstructure:"MFA_POLL_RETRY_AFTER"`
	// LoginContextTTL is the lifetime of a paused login flow (e.g. "10m").
	LoginContextTTL string `mapstructure:"LOGIN_CONTEXT_TTL"`
	// SessionTTL is the session lifetime (e.g. "720h"); usually matches JWT_REFRESH_TTL.
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// OTPReturnToClient when true enables dev OTP mode: no SMS, OTP readable via GET /dev/mfa/otp. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Security events (optional). When Kafka brokers are set, the server emits security events to Kafka.
	// SecurityEventKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	SecurityEventKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventKafkaTopic is the Kafka topic for security events (default ciam-security-events).
	SecurityEventKafkaTopic string `mapstructure:"SECURITY_EVENT_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// SweepInterval is how often the worker runs expiry sweeps (e.g. "1m").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "ciam-auth")
	v.SetDefault("JWT_AUDIENCE", "ciam-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("PUSH_GATEWAY_URL", "")
	v.SetDefault("DEFAULT_TRUST_TTL_DAYS", 30)
	v.SetDefault("MFA_REQUIRED_ALWAYS", false)
	v.SetDefault("MFA_TRANSACTION_TTL", "2m")
	v.SetDefault("MFA_MAX_OTP_ATTEMPTS", 5)
	v.SetDefault("MFA_POLL_RETRY_AFTER", 3)
	v.SetDefault("LOGIN_CONTEXT_TTL", "10m")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("SECURITY_EVENT_KAFKA_TOPIC", "ciam-security-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "ciam-event-worker")
	v.SetDefault("SWEEP_INTERVAL", "1m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.MFAMaxOTPAttempts <= 0 {
		return nil, errors.New("config: MFA_MAX_OTP_ATTEMPTS must be positive")
	}
	if cfg.MFAPollRetryAfter <= 0 {
		return nil, errors.New("config: MFA_POLL_RETRY_AFTER must be positive")
	}
	if cfg.DefaultTrustTTLDays <= 0 {
		return nil, errors.New("config: DEFAULT_TRUST_TTL_DAYS must be positive")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 720*time.Hour)
}

// TransactionTTL parses MFATransactionTTL as a time.Duration. Returns 2m if unset or invalid.
func (c *Config) TransactionTTL() time.Duration {
	return parseDuration(c.MFATransactionTTL, 2*time.Minute)
}

// ContextTTL parses LoginContextTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) ContextTTL() time.Duration {
	return parseDuration(c.LoginContextTTL, 10*time.Minute)
}

// SessionLifetime parses SessionTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	return parseDuration(c.SessionTTL, 720*time.Hour)
}

// SweepEvery parses SweepInterval as a time.Duration. Returns 1m if unset or invalid.
func (c *Config) SweepEvery() time.Duration {
	return parseDuration(c.SweepInterval, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SecurityEventKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event emission is enabled (non-empty list) and to create the producer.
func (c *Config) SecurityEventKafkaBrokersList() []string {
	if c == nil || c.SecurityEventKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.SecurityEventKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
