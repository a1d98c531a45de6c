package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

// Rate limiter backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Config is the plain service configuration. Signing material is not part
// of it; see the secrets package.
type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	BcryptCost   int `env:"BCRYPT_COST,   default=10"`
	AuditWorkers int `env:"AUDIT_WORKERS, default=4"`

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the TCP peer address identifies the caller.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	Mongo     MongoConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type MongoConfig struct {
	URI           string `env:"MONGO_URI,            default=mongodb://localhost:27017"`
	Database      string `env:"MONGO_DB,             default=auth_service"`
	EnsureIndexes bool   `env:"MONGO_ENSURE_INDEXES, default=true"`
}

type RedisConfig struct {
	Addr      string        `env:"REDIS_ADDR,       default=localhost:6379"`
	Password  string        `env:"REDIS_PASSWORD"`
	DB        int           `env:"REDIS_DB,         default=0"`
	PoolSize  int           `env:"REDIS_POOL_SIZE,  default=10"`
	Timeout   time.Duration `env:"REDIS_TIMEOUT,    default=250ms"`
	KeyPrefix string        `env:"REDIS_KEY_PREFIX, default=auth:rl:"`
}

type RateLimitConfig struct {
	Backend       string        `env:"RATE_LIMIT_BACKEND,        default=memory"`
	MaxAttempts   int           `env:"RATE_LIMIT_MAX_ATTEMPTS,   default=5"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW,         default=15m"`
	Block         time.Duration `env:"RATE_LIMIT_BLOCK,          default=30m"`
	SweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL, default=5m"`
	CPFLogin      bool          `env:"RATE_LIMIT_CPF_LOGIN,      default=true"`
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}

func (c *Config) validate() error {
	switch c.RateLimit.Backend {
	case RateLimitMemory, RateLimitRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q", RateLimitMemory, RateLimitRedis, c.RateLimit.Backend)
	}
	if c.RateLimit.MaxAttempts <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_ATTEMPTS must be positive, got %d", c.RateLimit.MaxAttempts)
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Block <= 0 {
		return errors.New("RATE_LIMIT_WINDOW and RATE_LIMIT_BLOCK must be positive")
	}
	if c.RateLimit.SweepInterval <= 0 {
		return errors.New("RATE_LIMIT_SWEEP_INTERVAL must be positive")
	}
	if c.Redis.PoolSize <= 0 || c.Redis.Timeout <= 0 {
		return errors.New("REDIS_POOL_SIZE and REDIS_TIMEOUT must be positive")
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			return fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", p)
		}
	}
	return nil
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if _, _, err := net.ParseCIDR(s); err == nil {
		return true
	}
	return net.ParseIP(s) != nil
}

// LoadWith reads configuration through l. Tests pass an envconfig.MapLookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, err
	}
	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load(log zerolog.Logger) *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		panic(err)
	}
	return cfg
}
