package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.BcryptCost != 10 || cfg.AuditWorkers != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	rl := cfg.RateLimit
	if rl.Backend != RateLimitMemory || rl.MaxAttempts != 5 || rl.Window != 15*time.Minute || rl.Block != 30*time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", rl)
	}
	if !rl.CPFLogin || rl.SweepInterval != 5*time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", rl)
	}
	if !cfg.Mongo.EnsureIndexes || !cfg.IsDevelopment() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	r := cfg.Redis
	if r.PoolSize != 10 || r.Timeout != 250*time.Millisecond || r.KeyPrefix != "auth:rl:" || r.Password != "" {
		t.Fatalf("unexpected redis defaults: %+v", r)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Fatalf("expected no trusted proxies by default, got %v", cfg.TrustedProxies)
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":                     "production",
		"RATE_LIMIT_BACKEND":      "Redis",
		"RATE_LIMIT_MAX_ATTEMPTS": "10",
		"RATE_LIMIT_WINDOW":       "1m",
		"RATE_LIMIT_CPF_LOGIN":    "false",
		"REDIS_ADDR":              "redis:6379",
		"REDIS_KEY_PREFIX":        "staging:rl:",
		"REDIS_TIMEOUT":           "1s",
		"TRUSTED_PROXIES":         "10.0.0.0/8,192.0.2.5",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IsDevelopment() || cfg.RateLimit.Backend != RateLimitRedis || cfg.RateLimit.CPFLogin {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RateLimit.MaxAttempts != 10 || cfg.RateLimit.Window != time.Minute || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("overrides not applied: %+v", cfg.RateLimit)
	}
	if cfg.Redis.KeyPrefix != "staging:rl:" || cfg.Redis.Timeout != time.Second {
		t.Fatalf("overrides not applied: %+v", cfg.Redis)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "192.0.2.5" {
		t.Fatalf("unexpected trusted proxies: %v", cfg.TrustedProxies)
	}
}

func TestLoadWith_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown backend": {"RATE_LIMIT_BACKEND": "memcached"},
		"zero attempts":   {"RATE_LIMIT_MAX_ATTEMPTS": "0"},
		"bad duration":    {"RATE_LIMIT_WINDOW": "soon"},
		"negative block":  {"RATE_LIMIT_BLOCK": "-1m"},
		"zero sweep":      {"RATE_LIMIT_SWEEP_INTERVAL": "0s"},
		"zero redis pool": {"REDIS_POOL_SIZE": "0"},
		"bad proxy":       {"TRUSTED_PROXIES": "10.0.0.0/8,proxy.internal"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadWith(context.Background(), envconfig.MapLookuper(env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
