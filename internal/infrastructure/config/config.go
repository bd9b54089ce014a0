package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const minSecretLength = 32

type Config struct {
	Port     string `env:"PORT,      default=3010"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// StoreDriver selects the user store: mongo or memory.
	StoreDriver string `env:"STORE_DRIVER, default=mongo"`

	Token     TokenConfig
	Argon2    Argon2Config
	Apple     AppleConfig
	RateLimit RateLimitConfig
	Mongo     MongoConfig
	Redis     RedisConfig
}

type TokenConfig struct {
	Secret           string        `env:"JWT_SECRET, required"`
	Issuer           string        `env:"JWT_ISSUER, default=auth-api"`
	UserTTL          time.Duration `env:"JWT_DURATION, default=24h"`
	SystemTTL        time.Duration `env:"SYSTEM_TOKEN_DURATION, default=1h"`
	SystemKey        string        `env:"SYSTEM_KEY"`
	RecentAuthWindow time.Duration `env:"RECENT_AUTH_WINDOW, default=10m"`
}

type Argon2Config struct {
	MemoryKB    uint32 `env:"ARGON2_MEMORY_KB,   default=65536"`
	Time        uint32 `env:"ARGON2_TIME,        default=3"`
	Parallelism uint8  `env:"ARGON2_PARALLELISM, default=4"`
}

type AppleConfig struct {
	ClientID      string        `env:"APPLE_CLIENT_ID"`
	ClientIDIOS   string        `env:"APPLE_CLIENT_ID_IOS"`
	KeysURL       string        `env:"APPLE_KEYS_URL, default=https://appleid.apple.com/auth/keys"`
	VerifyTimeout time.Duration `env:"APPLE_VERIFY_TIMEOUT, default=5s"`
}

// Enabled reports whether Sign in with Apple is configured.
func (a AppleConfig) Enabled() bool {
	return a.ClientID != "" || a.ClientIDIOS != ""
}

type RateLimitConfig struct {
	Enabled bool          `env:"RATE_LIMIT_ENABLED, default=true"`
	Window  time.Duration `env:"RATE_LIMIT_WINDOW,  default=1m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=auth_api"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run safely with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Token.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	if c.Token.UserTTL <= 0 || c.Token.SystemTTL <= 0 {
		errs = append(errs, errors.New("token durations must be positive"))
	}
	if c.Token.RecentAuthWindow <= 0 {
		errs = append(errs, errors.New("RECENT_AUTH_WINDOW must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	switch c.StoreDriver {
	case "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
