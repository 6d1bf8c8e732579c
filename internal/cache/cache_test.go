package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/akolanti/RagAPI/internal/data/redisStore"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already_normal", input: "what is the refund policy", expected: "what is the refund policy"},
		{name: "mixed_case", input: "What IS the Refund Policy", expected: "what is the refund policy"},
		{name: "extra_whitespace", input: "  what   is\tthe refund\npolicy  ", expected: "what is the refund policy"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuery(tt.input); got != tt.expected {
				t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func candidate(id, textHash string) commonModels.Candidate {
	return commonModels.Candidate{Chunk: commonModels.Chunk{Id: id, TextHash: textHash}}
}

func TestContextHash(t *testing.T) {
	a := []commonModels.Candidate{candidate("c1", "h1"), candidate("c2", "h2")}
	b := []commonModels.Candidate{candidate("c2", "h2"), candidate("c1", "h1")}
	changed := []commonModels.Candidate{candidate("c1", "h1-new"), candidate("c2", "h2")}

	if ContextHash(a) == ContextHash(b) {
		t.Error("hash must be sensitive to chunk order")
	}
	if ContextHash(a) == ContextHash(changed) {
		t.Error("hash must change when chunk text changes")
	}
	if ContextHash(a) != ContextHash([]commonModels.Candidate{candidate("c1", "h1"), candidate("c2", "h2")}) {
		t.Error("hash must be deterministic")
	}
}

func TestAnswerKey(t *testing.T) {
	base := AnswerKey("sales", "What is ACME?", "ctx1")

	if AnswerKey("sales", "  what   IS acme?  ", "ctx1") != base {
		t.Error("equivalent phrasings must share a key")
	}
	if AnswerKey("exec", "What is ACME?", "ctx1") == base {
		t.Error("persona must separate keys")
	}
	if AnswerKey("sales", "What is ACME?", "ctx2") == base {
		t.Error("context hash must separate keys")
	}
}

func TestToolKey_ArgOrderIndependent(t *testing.T) {
	a := ToolKey("crm_lookup", map[string]string{"account": "acme", "region": "emea"})
	b := ToolKey("crm_lookup", map[string]string{"region": "emea", "account": "acme"})
	if a != b {
		t.Error("map iteration order must not change the key")
	}
	if ToolKey("jira_lookup", map[string]string{"account": "acme", "region": "emea"}) == a {
		t.Error("tool name must separate keys")
	}
}

func newRedisTier(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(redisStore.NewTestStore(client)), mr
}

func TestRedisCache_FirstWriterWins(t *testing.T) {
	tier, _ := newRedisTier(t)
	ctx := context.Background()

	if err := tier.Put(ctx, "k", "first", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tier.Put(ctx, "k", "second", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	val, found, err := tier.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if val != "first" {
		t.Errorf("expected first writer to win, got %q", val)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	tier := NewMemoryCache()
	ctx := context.Background()

	if err := tier.Put(ctx, "k", "v", -time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, found, _ := tier.Get(ctx, "k"); found {
		t.Error("lapsed entry must be a miss")
	}
	// lapsed entry must not block a fresh write
	if err := tier.Put(ctx, "k", "v2", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	val, found, _ := tier.Get(ctx, "k")
	if !found || val != "v2" {
		t.Errorf("expected fresh value after expiry, got %q found=%v", val, found)
	}
}

type failingTier struct{}

func (failingTier) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("tier down")
}
func (failingTier) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	return errors.New("tier down")
}

func TestTiered(t *testing.T) {
	ctx := context.Background()

	t.Run("durable_hit_backfills_volatile", func(t *testing.T) {
		volatile := NewMemoryCache()
		durable := NewMemoryCache()
		if err := durable.Put(ctx, "k", "v", time.Minute); err != nil {
			t.Fatal(err)
		}

		tiered := NewTiered("answer", volatile, durable)
		val, found := tiered.Get(ctx, "k")
		if !found || val != "v" {
			t.Fatalf("expected durable hit, got %q found=%v", val, found)
		}

		if _, found, _ := volatile.Get(ctx, "k"); !found {
			t.Error("durable hit must backfill the volatile tier")
		}
	})

	t.Run("volatile_failure_is_a_miss_not_an_error", func(t *testing.T) {
		durable := NewMemoryCache()
		if err := durable.Put(ctx, "k", "v", time.Minute); err != nil {
			t.Fatal(err)
		}

		tiered := NewTiered("answer", failingTier{}, durable)
		val, found := tiered.Get(ctx, "k")
		if !found || val != "v" {
			t.Errorf("expected fallthrough to durable tier, got %q found=%v", val, found)
		}

		// writes must not surface the failure either
		tiered.Put(ctx, "k2", "v2", time.Minute)
		if val, found, _ := durable.Get(ctx, "k2"); !found || val != "v2" {
			t.Error("durable write must proceed when volatile tier is down")
		}
	})

	t.Run("both_tiers_empty_is_a_miss", func(t *testing.T) {
		tiered := NewTiered("tool", NewMemoryCache(), NewMemoryCache())
		if _, found := tiered.Get(ctx, "absent"); found {
			t.Error("expected miss")
		}
	})

	t.Run("redis_volatile_roundtrip", func(t *testing.T) {
		volatile, _ := newRedisTier(t)
		tiered := NewTiered("answer", volatile, nil)

		tiered.Put(ctx, "k", "v", time.Minute)
		val, found := tiered.Get(ctx, "k")
		if !found || val != "v" {
			t.Errorf("expected volatile hit, got %q found=%v", val, found)
		}
	})
}
