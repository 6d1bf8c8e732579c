package pgStore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/akolanti/RagAPI/internal/domain/jobModel"
)

type jobRow struct {
	Id          string       `db:"id"`
	SourceId    string       `db:"source_id"`
	JobType     string       `db:"job_type"`
	Status      string       `db:"status"`
	Error       string       `db:"error"`
	Attempt     int          `db:"attempt"`
	TraceId     string       `db:"trace_id"`
	CreatedTime time.Time    `db:"created_time"`
	EndTime     sql.NullTime `db:"end_time"`
}

func (r jobRow) toJob() jobModel.SyncJob {
	job := jobModel.SyncJob{
		Id:          r.Id,
		SourceId:    r.SourceId,
		JobType:     jobModel.JobType(r.JobType),
		Status:      jobModel.JobStatus(r.Status),
		Error:       r.Error,
		Attempt:     r.Attempt,
		TraceId:     r.TraceId,
		CreatedTime: r.CreatedTime,
	}
	if r.EndTime.Valid {
		job.EndTime = r.EndTime.Time
	}
	return job
}

func (s *Store) SaveJob(ctx context.Context, job jobModel.SyncJob) error {
	endTime := sql.NullTime{Time: job.EndTime, Valid: !job.EndTime.IsZero()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_jobs (id, source_id, job_type, status, error, attempt, trace_id, created_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, error = EXCLUDED.error,
			attempt = EXCLUDED.attempt, end_time = EXCLUDED.end_time`,
		job.Id, job.SourceId, job.JobType, job.Status, job.Error, job.Attempt, job.TraceId, job.CreatedTime, endTime)
	return err
}

func (s *Store) GetJob(ctx context.Context, jobId string) (jobModel.SyncJob, bool) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM sync_jobs WHERE id = $1`, jobId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Error reading job", "jobId", jobId, "error", err)
		}
		return jobModel.SyncJob{}, false
	}
	return row.toJob(), true
}

func (s *Store) ActiveJobForSource(ctx context.Context, sourceId string) (jobModel.SyncJob, bool) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM sync_jobs
		WHERE source_id = $1 AND status IN ('queued', 'running')
		ORDER BY created_time DESC LIMIT 1`, sourceId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Error reading active job", "sourceId", sourceId, "error", err)
		}
		return jobModel.SyncJob{}, false
	}
	return row.toJob(), true
}

func (s *Store) DeleteJob(ctx context.Context, jobId string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_jobs WHERE id = $1`, jobId); err != nil {
		s.logger.Error("Error deleting job", "jobId", jobId, "error", err)
	}
}
