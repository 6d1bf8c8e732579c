package pgStore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

// Store is the durable tier: documents, chunks, embeddings, ACL grants, sync
// jobs, cursors, the durable answer/tool cache and the audit log.
type Store struct {
	db     *sqlx.DB
	logger *logger_i.Logger
}

func Connect(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = config.PostgresDSN
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := New(db)
	store.logger.Info("Postgres store ready")
	return store, nil
}

// New wraps an existing connection. Tests pass a sqlmock-backed db here.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:     db,
		logger: logger_i.NewLogger("PgStore"),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist yet. Single-node
// deployments call this at startup instead of running migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
