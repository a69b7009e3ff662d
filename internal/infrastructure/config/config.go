package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Mongo   MongoConfig
	Redis   RedisConfig
	Session SessionConfig
	Hashing HashingConfig
	Google  GoogleConfig
	Uploads UploadsConfig
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI,     default=mongodb://localhost:27017"`
	Database string        `env:"MONGO_DB,      default=client_portal"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr            string        `env:"REDIS_ADDR,        default=localhost:6379"`
	DB              int           `env:"REDIS_DB,          default=0"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL, default=10m"`
}

type SessionConfig struct {
	Secret string        `env:"JWT_SECRET, required"`
	TTL    time.Duration `env:"JWT_TTL,    default=24h"`
	Issuer string        `env:"JWT_ISSUER, default=client-service"`
}

type HashingConfig struct {
	Cost    int `env:"BCRYPT_COST,  default=10"`
	// Workers bounds concurrent hash operations; 0 means one per CPU.
	Workers int `env:"HASH_WORKERS, default=0"`
}

type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	CallbackURL  string        `env:"GOOGLE_CALLBACK_URL,      default=http://localhost:8080/api/auth/google/callback"`
	JWKSURL      string        `env:"GOOGLE_JWKS_URL,          default=https://www.googleapis.com/oauth2/v3/certs"`
	KeyRefresh   time.Duration `env:"GOOGLE_KEY_REFRESH,       default=1h"`
	KeyTimeout   time.Duration `env:"GOOGLE_KEY_TIMEOUT,       default=5s"`
	RetryBackoff time.Duration `env:"GOOGLE_KEY_RETRY_BACKOFF, default=500ms"`
	ClockSkew    time.Duration `env:"GOOGLE_CLOCK_SKEW,        default=30s"`
}

// Enabled reports whether token login with Google is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != ""
}

// RedirectEnabled reports whether the browser redirect flow is configured.
func (g GoogleConfig) RedirectEnabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type UploadsConfig struct {
	Dir            string `env:"UPLOADS_DIR,     default=uploads"`
	// MaxRequestSize is an echo body limit such as "5M".
	MaxRequestSize string `env:"MAX_UPLOAD_SIZE, default=5M"`
	// MaxAssetBytes bounds a single logo or stamp file.
	MaxAssetBytes  int64  `env:"MAX_ASSET_BYTES, default=2097152"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.Hashing.Workers < 0 {
		errs = append(errs, errors.New("HASH_WORKERS must not be negative"))
	}
	if c.Uploads.MaxAssetBytes <= 0 {
		errs = append(errs, errors.New("MAX_ASSET_BYTES must be positive"))
	}
	if c.Google.ClockSkew < 0 {
		errs = append(errs, errors.New("GOOGLE_CLOCK_SKEW must not be negative"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
