// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// HTTPAddr is the address the HTTP API listens on (e.g. :8081).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for the refresh ledger and device-trust store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// TokenAlgorithm selects the signing algorithm: HS256, RS256, or EdDSA.
	TokenAlgorithm string `mapstructure:"TOKEN_ALGORITHM"`
	// TokenIssuer is the iss claim stamped on every credential.
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// ActiveKeyID is the kid of the key that signs new credentials. Required.
	ActiveKeyID string `mapstructure:"ACTIVE_KEY_ID"`
	// ActiveKeyMaterial is the active key: PEM (or path to it) for RS256/EdDSA,
	// base64 or raw secret for HS256. Required.
	ActiveKeyMaterial string `mapstructure:"ACTIVE_KEY_MATERIAL"`
	// NextKeyID is the kid of the previous signing key kept for verification
	// during rotation. Optional; must be set together with NextKeyMaterial.
	NextKeyID string `mapstructure:"NEXT_KEY_ID"`
	// NextKeyMaterial is the verification-only key material for NextKeyID.
	NextKeyMaterial string `mapstructure:"NEXT_KEY_MATERIAL"`

	// AccessTokenTTL is the access token lifetime (e.g. "15m"). Minutes, not hours.
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "168h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// MaxRefreshUses is how many times a refresh lineage may rotate before the
	// subject must fully re-authenticate.
	MaxRefreshUses int `mapstructure:"MAX_REFRESH_USES"`
	// TrustWindow is how long a device-trust verification lets a login skip the
	// second factor (e.g. "720h" for 30 days).
	TrustWindow string `mapstructure:"TRUST_WINDOW"`
	// OTPChallengeTTL is how long a pending one-time-code challenge stays valid.
	OTPChallengeTTL string `mapstructure:"OTP_CHALLENGE_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RedisAddr is the Redis address backing the login rate guard; empty
	// selects the in-process memory guard.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// GuardMaxFailures is how many failed logins per subject the guard allows
	// inside one window before blocking.
	GuardMaxFailures int `mapstructure:"GUARD_MAX_FAILURES"`
	// GuardWindow is the guard's failure-counting window (e.g. "15m").
	GuardWindow string `mapstructure:"GUARD_WINDOW"`

	// SecondFactorRequireAlways forces a second factor on every login,
	// trusted device or not.
	SecondFactorRequireAlways bool `mapstructure:"SECOND_FACTOR_REQUIRE_ALWAYS"`
	// SecondFactorRequireForUntrusted requires a second factor only when the
	// device carries no valid trust record.
	SecondFactorRequireForUntrusted bool `mapstructure:"SECOND_FACTOR_REQUIRE_FOR_UNTRUSTED"`
	// PolicyFile points at a rego source overriding the built-in
	// second-factor policy. Empty uses the built-in policy.
	PolicyFile string `mapstructure:"POLICY_FILE"`

	// OTPSenderURL is the delivery endpoint that forwards one-time codes to
	// subjects; empty disables code delivery (challenges still issue).
	OTPSenderURL string `mapstructure:"OTP_SENDER_URL"`
	// OTPSenderAPIKey authenticates against the delivery endpoint.
	OTPSenderAPIKey string `mapstructure:"OTP_SENDER_API_KEY"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// EventKafkaBrokers is a comma-separated broker list for security events; empty disables the emitter.
	EventKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventKafkaTopic is the Kafka topic for security events.
	EventKafkaTopic string `mapstructure:"EVENT_KAFKA_TOPIC"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

var validAlgorithms = map[string]bool{"HS256": true, "RS256": true, "EdDSA": true}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("TOKEN_ALGORITHM", "EdDSA")
	v.SetDefault("TOKEN_ISSUER", "auth-token-service")
	v.SetDefault("ACTIVE_KEY_ID", "")
	v.SetDefault("ACTIVE_KEY_MATERIAL", "")
	v.SetDefault("NEXT_KEY_ID", "")
	v.SetDefault("NEXT_KEY_MATERIAL", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7d
	v.SetDefault("MAX_REFRESH_USES", 3)
	v.SetDefault("TRUST_WINDOW", "720h") // 30d
	v.SetDefault("OTP_CHALLENGE_TTL", "10m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("GUARD_MAX_FAILURES", 5)
	v.SetDefault("GUARD_WINDOW", "15m")
	v.SetDefault("SECOND_FACTOR_REQUIRE_ALWAYS", false)
	v.SetDefault("SECOND_FACTOR_REQUIRE_FOR_UNTRUSTED", true)
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("OTP_SENDER_URL", "")
	v.SetDefault("OTP_SENDER_API_KEY", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENT_KAFKA_TOPIC", "auth-security-events")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if !validAlgorithms[cfg.TokenAlgorithm] {
		return nil, fmt.Errorf("config: TOKEN_ALGORITHM must be HS256, RS256, or EdDSA, got %q", cfg.TokenAlgorithm)
	}
	if cfg.ActiveKeyID == "" || cfg.ActiveKeyMaterial == "" {
		return nil, errors.New("config: ACTIVE_KEY_ID and ACTIVE_KEY_MATERIAL must be set")
	}
	if (cfg.NextKeyID == "") != (cfg.NextKeyMaterial == "") {
		return nil, errors.New("config: NEXT_KEY_ID and NEXT_KEY_MATERIAL must be set together")
	}
	if cfg.NextKeyID != "" && cfg.NextKeyID == cfg.ActiveKeyID {
		return nil, errors.New("config: NEXT_KEY_ID must differ from ACTIVE_KEY_ID")
	}
	if cfg.MaxRefreshUses <= 0 {
		return nil, errors.New("config: MAX_REFRESH_USES must be positive")
	}
	if cfg.GuardMaxFailures <= 0 {
		return nil, errors.New("config: GUARD_MAX_FAILURES must be positive")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if d := cfg.AccessTTL(); d > time.Hour {
		return nil, fmt.Errorf("config: ACCESS_TOKEN_TTL %s exceeds 1h; access tokens must be short-lived", d)
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTokenTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTokenTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// DeviceTrustWindow parses TrustWindow as a time.Duration. Returns 720h (30 days) if unset or invalid.
func (c *Config) DeviceTrustWindow() time.Duration {
	d, err := time.ParseDuration(c.TrustWindow)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// GuardWindowDuration parses GuardWindow as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) GuardWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.GuardWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// ChallengeTTL parses OTPChallengeTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration {
	d, err := time.ParseDuration(c.OTPChallengeTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// Used to decide if the event emitter is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.EventKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.EventKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
