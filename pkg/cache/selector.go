package cache

import (
	"context"
	"fmt"

	"github.com/harun/websurfer/internal/observability"
	"github.com/rs/zerolog"
)

// RedisOpener builds a Redis-backed cache
type RedisOpener func(ctx context.Context, seed string, cfg RedisConfig) (Cache, error)

// CosmosOpener builds a Cosmos-backed cache
type CosmosOpener func(ctx context.Context, seed string, cfg CosmosConfig) (Cache, error)

// DiskOpener builds a disk-backed cache
type DiskOpener func(ctx context.Context, seed string, cfg DiskConfig) (Cache, error)

// Selector resolves Params to exactly one Cache
type Selector struct {
	logger     zerolog.Logger
	openRedis  RedisOpener
	openCosmos CosmosOpener
	openDisk   DiskOpener
}

// SelectorOption customizes a Selector
type SelectorOption func(*Selector)

// WithRedisOpener replaces how Redis caches are opened
func WithRedisOpener(fn RedisOpener) SelectorOption {
	return func(s *Selector) {
		s.openRedis = fn
	}
}

// WithCosmosOpener replaces how Cosmos caches are opened
func WithCosmosOpener(fn CosmosOpener) SelectorOption {
	return func(s *Selector) {
		s.openCosmos = fn
	}
}

// WithDiskOpener replaces how disk caches are opened
func WithDiskOpener(fn DiskOpener) SelectorOption {
	return func(s *Selector) {
		s.openDisk = fn
	}
}

// WithSelectorLogger sets the logger used for fallback warnings
func WithSelectorLogger(logger zerolog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector creates a selector using the real backends
func NewSelector(opts ...SelectorOption) *Selector {
	observability.EnsureRegistered()

	s := &Selector{
		logger: zerolog.Nop(),
		openRedis: func(ctx context.Context, seed string, cfg RedisConfig) (Cache, error) {
			return OpenRedis(ctx, seed, cfg.URL)
		},
		openCosmos: func(ctx context.Context, seed string, cfg CosmosConfig) (Cache, error) {
			return OpenCosmos(ctx, seed, cfg)
		},
		openDisk: func(_ context.Context, _ string, cfg DiskConfig) (Cache, error) {
			return OpenDisk(cfg.RootPath)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select opens the first candidate backend that works. Redis and Cosmos
// failures are logged and skipped; a disk failure is returned.
func (s *Selector) Select(ctx context.Context, p Params) (Cache, error) {
	if err := ValidateSeed(p.Seed); err != nil {
		return nil, err
	}
	candidates := Candidates(p)

	for i, candidate := range candidates {
		c, err := s.open(ctx, p.Seed, candidate)
		if err == nil {
			observability.RecordCacheSelection(candidate.backend(), "selected")
			observability.RecordCacheAudit(ctx, candidate.backend(), "selected", map[string]interface{}{
				"seed": p.Seed,
			})
			for _, rest := range candidates[i+1:] {
				observability.RecordCacheSelection(rest.backend(), "skipped")
			}
			s.logger.Info().Str("backend", candidate.backend()).Str("seed", p.Seed).Msg("Cache backend selected")
			return c, nil
		}

		unavailable := &BackendUnavailableError{Backend: candidate.backend(), Err: err}
		observability.RecordCacheSelection(candidate.backend(), "unavailable")
		observability.RecordCacheAudit(ctx, candidate.backend(), "unavailable", map[string]interface{}{
			"seed":  p.Seed,
			"error": err.Error(),
		})

		if _, isDisk := candidate.(DiskConfig); isDisk {
			return nil, unavailable
		}
		s.logger.Warn().Err(unavailable).Msg("Cache backend unavailable, trying next option")
	}

	// Candidates always ends with the disk backend
	return nil, fmt.Errorf("no cache backend candidates")
}

func (s *Selector) open(ctx context.Context, seed string, candidate BackendConfig) (Cache, error) {
	switch cfg := candidate.(type) {
	case RedisConfig:
		return s.openRedis(ctx, seed, cfg)
	case CosmosConfig:
		return s.openCosmos(ctx, seed, cfg)
	case DiskConfig:
		return s.openDisk(ctx, seed, cfg)
	default:
		return nil, fmt.Errorf("unknown cache backend %T", candidate)
	}
}

// Instrument wraps c so every lookup is counted as a hit, miss or error
func Instrument(c Cache) Cache {
	return &instrumented{Cache: c}
}

type instrumented struct {
	Cache
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := i.Cache.Get(ctx, key)
	switch {
	case err != nil:
		observability.RecordCacheLookup(i.Backend(), "error")
	case ok:
		observability.RecordCacheLookup(i.Backend(), "hit")
	default:
		observability.RecordCacheLookup(i.Backend(), "miss")
	}
	return value, ok, err
}
