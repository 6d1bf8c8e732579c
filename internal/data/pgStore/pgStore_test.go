package pgStore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/domain/jobModel"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCacheGet(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT value FROM cache_entries`).
		WithArgs("answer:abc").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"answer":"cached"}`))

	value, found, err := store.CacheGet(context.Background(), "answer:abc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"answer":"cached"}`, value)

	mock.ExpectQuery(`SELECT value FROM cache_entries`).
		WithArgs("answer:missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, found, err = store.CacheGet(context.Background(), "answer:missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachePut_FirstWriterWinsWhileRowIsLive(t *testing.T) {
	store, mock := newMockStore(t)

	// A conflicting write against a live row is a no-op; the losing writer
	// still reports success.
	mock.ExpectExec(`(?s)INSERT INTO cache_entries.+ON CONFLICT \(cache_key\) DO UPDATE.+WHERE cache_entries\.expires_at <= now\(\)`).
		WithArgs("tool:xyz", "output", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.CachePut(context.Background(), "tool:xyz", "output", time.Minute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachePut_ExpiredRowIsRewritten(t *testing.T) {
	store, mock := newMockStore(t)

	// The conditional upsert replaces a lapsed row even before CachePurge
	// reclaims it, so the key is never permanently wedged.
	mock.ExpectExec(`(?s)INSERT INTO cache_entries.+ON CONFLICT \(cache_key\) DO UPDATE.+WHERE cache_entries\.expires_at <= now\(\)`).
		WithArgs("answer:stale", `{"answer":"fresh"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CachePut(context.Background(), "answer:stale", `{"answer":"fresh"}`, time.Minute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachePurge(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM cache_entries WHERE expires_at`).
		WillReturnResult(sqlmock.NewResult(0, 7))

	purged, err := store.CachePurge(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 7, purged)
}

func TestSaveJob_NullEndTimeWhileRunning(t *testing.T) {
	store, mock := newMockStore(t)

	job := jobModel.SyncJob{
		Id:          "job-1",
		SourceId:    "src-1",
		JobType:     jobModel.JobTypeSyncDrive,
		Status:      jobModel.JobStatusRunning,
		Attempt:     1,
		TraceId:     "trace-1",
		CreatedTime: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO sync_jobs`).
		WithArgs(job.Id, job.SourceId, job.JobType, job.Status, "", 1, job.TraceId, job.CreatedTime, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func jobColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "source_id", "job_type", "status", "error", "attempt", "trace_id", "created_time", "end_time",
	})
}

func TestGetJob(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`SELECT \* FROM sync_jobs WHERE id`).
		WithArgs("job-1").
		WillReturnRows(jobColumns().AddRow("job-1", "src-1", "sync_drive", "success", "", 1, "trace-1", created, created.Add(time.Second)))

	job, found := store.GetJob(context.Background(), "job-1")
	require.True(t, found)
	require.Equal(t, jobModel.JobStatusSuccess, job.Status)
	require.False(t, job.EndTime.IsZero())

	mock.ExpectQuery(`SELECT \* FROM sync_jobs WHERE id`).
		WithArgs("job-unknown").
		WillReturnRows(jobColumns())

	_, found = store.GetJob(context.Background(), "job-unknown")
	require.False(t, found)
}

func TestActiveJobForSource_OnlyNonTerminalStatuses(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now()

	mock.ExpectQuery(`status IN \('queued', 'running'\)`).
		WithArgs("src-1").
		WillReturnRows(jobColumns().AddRow("job-2", "src-1", "sync_drive", "queued", "", 1, "trace-2", created, nil))

	job, found := store.ActiveJobForSource(context.Background(), "src-1")
	require.True(t, found)
	require.Equal(t, "job-2", job.Id)
	require.True(t, job.EndTime.IsZero())

	mock.ExpectQuery(`status IN \('queued', 'running'\)`).
		WithArgs("src-idle").
		WillReturnRows(jobColumns())

	_, found = store.ActiveJobForSource(context.Background(), "src-idle")
	require.False(t, found)
}

func candidateColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"chunk_id", "document_id", "position", "heading_path", "text", "text_hash",
		"source_id", "title", "canonical_url", "updated_at", "vector",
	})
}

func TestAuthorizedCandidates_PrincipalsReachTheQuery(t *testing.T) {
	store, mock := newMockStore(t)
	updated := time.Now().Add(-time.Hour)

	requester := commonModels.Requester{
		UserId:   "u-1",
		Email:    "dana@acme.test",
		GroupIds: []string{"g-sales"},
	}

	mock.ExpectQuery(`EXISTS \(\s*SELECT 1 FROM document_acl`).
		WithArgs("t-1", sqlmock.AnyArg(), "u-1", "dana@acme.test", sqlmock.AnyArg()).
		WillReturnRows(candidateColumns().
			AddRow("chunk-1", "doc-1", 0, "Pricing", "List prices...", "hash-1", "src-1", "Pricing Guide", "https://drive/doc-1", updated, []byte(`{0.5,0.25}`)))

	candidates, err := store.AuthorizedCandidates(context.Background(), "t-1", requester, nil)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	got := candidates[0]
	require.Equal(t, "chunk-1", got.Chunk.Id)
	require.Equal(t, "doc-1", got.DocumentId)
	require.Equal(t, []float32{0.5, 0.25}, got.Vector)
	require.Equal(t, updated.Unix(), got.DocUpdatedAt.Unix())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorizedFacts_GrantPredicateAndOrder(t *testing.T) {
	store, mock := newMockStore(t)

	requester := commonModels.Requester{UserId: "u-1", Email: "dana@acme.test"}

	mock.ExpectQuery(`(?s)FROM facts f.+SELECT 1 FROM document_acl`).
		WithArgs("t-1", sqlmock.AnyArg(), "u-1", "dana@acme.test", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "document_id", "chunk_id", "fact_key", "fact_value", "confidence", "title", "canonical_url",
		}).AddRow("f-1", "t-1", "doc-1", "chunk-1", "resilience.rto", "RTO is two hours.", 0.92, "Runbook", "https://drive/doc-1"))

	hits, err := store.AuthorizedFacts(context.Background(), "t-1", requester, []string{"resilience.rto"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "resilience.rto", hits[0].Key)
	require.Equal(t, "Runbook", hits[0].Title)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceFacts_SwapsDocumentRows(t *testing.T) {
	store, mock := newMockStore(t)

	fact := commonModels.Fact{
		Id: "f-1", TenantId: "t-1", DocumentId: "doc-1", ChunkId: "chunk-1",
		Key: "security.mfa", Value: "MFA is required.", Confidence: 0.9,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM facts WHERE document_id`).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO facts`).
		WithArgs(fact.Id, fact.TenantId, fact.DocumentId, fact.ChunkId, fact.Key, fact.Value, fact.Confidence).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.ReplaceFacts(context.Background(), "doc-1", []commonModels.Fact{fact}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCursor_Upserts(t *testing.T) {
	store, mock := newMockStore(t)

	cursor := commonModels.SourceCursor{SourceId: "src-1", Value: "2026-08-30T00:00:00Z", UpdatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO source_cursors .+ ON CONFLICT \(source_id\) DO UPDATE`).
		WithArgs(cursor.SourceId, cursor.Value, cursor.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveCursor(context.Background(), cursor))
	require.NoError(t, mock.ExpectationsWereMet())
}
