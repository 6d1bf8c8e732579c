package cache

import (
	"context"
	"time"
)

// Cache is one tier. A miss is (value="", found=false, err=nil); err is
// reserved for tier failures, which callers treat as misses.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores only when the key is absent: the first writer wins and a
	// concurrent duplicate write is a no-op, not an overwrite.
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
}
