package cache

import (
	"context"
	"fmt"
)

// Backend names reported by Cache.Backend
const (
	BackendRedis  = "redis"
	BackendCosmos = "cosmos"
	BackendDisk   = "disk"
)

// DefaultPathRoot is the disk cache root used when none is given
const DefaultPathRoot = ".cache"

// Cache is a namespaced byte store. Get reports a miss with ok=false and a
// nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
	Backend() string
}

// BackendUnavailableError reports that a backend could not be constructed.
// The selector logs it and moves on to the next candidate.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("cache backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}
