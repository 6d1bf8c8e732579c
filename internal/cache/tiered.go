package cache

import (
	"context"
	"time"

	"github.com/akolanti/RagAPI/internal/metrics"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

// Tiered reads the volatile tier first, then the durable tier, backfilling
// the volatile tier on a durable hit. A tier error is treated as a miss on
// read and is only logged on write: the cache never fails a request.
type Tiered struct {
	kind     string
	volatile Cache
	durable  Cache
	logger   *logger_i.Logger
}

// NewTiered builds the standard two-tier cache. Either tier may be nil and
// is then skipped; kind labels metrics ("answer" or "tool").
func NewTiered(kind string, volatile Cache, durable Cache) *Tiered {
	return &Tiered{
		kind:     kind,
		volatile: volatile,
		durable:  durable,
		logger:   logger_i.NewLogger("Cache " + kind),
	}
}

func (t *Tiered) Get(ctx context.Context, key string) (string, bool) {
	if t.volatile != nil {
		val, found, err := t.volatile.Get(ctx, key)
		if err != nil {
			t.logger.Warn("volatile tier read failed", "error", err)
		} else if found {
			metrics.RecordCacheLookup(t.kind, "volatile")
			return val, true
		}
	}

	if t.durable != nil {
		val, found, err := t.durable.Get(ctx, key)
		if err != nil {
			t.logger.Warn("durable tier read failed", "error", err)
		} else if found {
			metrics.RecordCacheLookup(t.kind, "durable")
			if t.volatile != nil {
				if err := t.volatile.Put(ctx, key, val, time.Minute); err != nil {
					t.logger.Warn("volatile backfill failed", "error", err)
				}
			}
			return val, true
		}
	}

	metrics.RecordCacheLookup(t.kind, "miss")
	return "", false
}

func (t *Tiered) Put(ctx context.Context, key string, value string, ttl time.Duration) {
	if t.volatile != nil {
		if err := t.volatile.Put(ctx, key, value, ttl); err != nil {
			t.logger.Warn("volatile tier write failed", "error", err)
		}
	}
	if t.durable != nil {
		if err := t.durable.Put(ctx, key, value, ttl); err != nil {
			t.logger.Warn("durable tier write failed", "error", err)
		}
	}
}
