// Package secrets supplies the token signing material. The signing secret
// never lives in the plain service config.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sethvargo/go-envconfig"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("secrets: JWT_SECRET is not set")

type envMaterial struct {
	Secret        string `env:"JWT_SECRET"`
	AccessExpiry  string `env:"JWT_EXPIRES_IN, default=15m"`
	RefreshExpiry string `env:"JWT_REFRESH_EXPIRES_IN, default=7d"`
}

// EnvSource reads signing material from environment-style variables.
type EnvSource struct {
	lookuper envconfig.Lookuper
}

// NewEnvSource reads from l, or from the process environment when l is nil.
func NewEnvSource(l envconfig.Lookuper) *EnvSource {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	return &EnvSource{lookuper: l}
}

var _ ports.SecretProvider = (*EnvSource)(nil)

// SigningMaterial fails when the secret is empty. Expiries are passed through
// as written; the token service falls back to its defaults on bad values.
func (s *EnvSource) SigningMaterial(ctx context.Context) (domain.SigningMaterial, error) {
	var m envMaterial
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &m,
		Lookuper: s.lookuper,
	}); err != nil {
		return domain.SigningMaterial{}, fmt.Errorf("secrets: load: %w", err)
	}
	if strings.TrimSpace(m.Secret) == "" {
		return domain.SigningMaterial{}, ErrMissingSecret
	}
	return domain.SigningMaterial{
		Secret:        m.Secret,
		AccessExpiry:  strings.TrimSpace(m.AccessExpiry),
		RefreshExpiry: strings.TrimSpace(m.RefreshExpiry),
	}, nil
}

// CachedProvider memoises the first successful fetch from its source for the
// life of the process. Failed fetches are retried on the next call.
type CachedProvider struct {
	source ports.SecretProvider

	mu     sync.Mutex
	cached *domain.SigningMaterial
}

func NewCachedProvider(source ports.SecretProvider) *CachedProvider {
	return &CachedProvider{source: source}
}

var _ ports.SecretProvider = (*CachedProvider)(nil)

func (p *CachedProvider) SigningMaterial(ctx context.Context) (domain.SigningMaterial, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached, nil
	}
	m, err := p.source.SigningMaterial(ctx)
	if err != nil {
		return domain.SigningMaterial{}, err
	}
	p.cached = &m
	return m, nil
}
