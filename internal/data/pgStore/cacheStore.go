package pgStore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CacheGet returns the stored value when the row exists and has not lapsed.
// Expiry is checked lazily on read; stale rows are left for CachePurge.
func (s *Store) CacheGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM cache_entries WHERE cache_key = $1 AND expires_at > now()`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return value, err == nil, err
}

// CachePut lets the first writer win among live rows: a conflicting insert
// only replaces the existing row once that row has lapsed, so concurrent
// writers never clobber a live entry but expired keys stay rewritable even
// when CachePurge has not run yet.
func (s *Store) CachePut(ctx context.Context, key string, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE cache_entries.expires_at <= now()`,
		key, value, time.Now().Add(ttl))
	return err
}

// CachePurge removes lapsed rows; run periodically, never on the request path.
func (s *Store) CachePurge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
