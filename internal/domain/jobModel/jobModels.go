package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type JobType string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"

	JobTypeIngestUpload JobType = "ingest_upload"
	JobTypeSyncDrive    JobType = "sync_drive"
	JobTypeSyncNotion   JobType = "sync_notion"
	JobTypeSyncGithub   JobType = "sync_github"
)

// SyncJob is one ingestion/reindex attempt against a source.
// queued -> running -> success | failed; terminal states never transition
// further. A failed job is re-queued as a new job, never reused.
type SyncJob struct {
	Id          string    `json:"id" db:"id"`
	SourceId    string    `json:"source_id" db:"source_id"`
	JobType     JobType   `json:"job_type" db:"job_type"`
	Status      JobStatus `json:"status" db:"status"`
	Error       string    `json:"error,omitempty" db:"error"`
	Attempt     int       `json:"attempt" db:"attempt"`
	TraceId     string    `json:"trace_id" db:"trace_id"`
	CreatedTime time.Time `json:"created_time" db:"created_time"`
	EndTime     time.Time `json:"end_time,omitempty" db:"end_time"`
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Message is the queue payload. Redelivery of an identical message must be
// handled idempotently by the consumer.
type Message struct {
	JobId    string  `json:"job_id"`
	JobType  JobType `json:"job_type"`
	SourceId string  `json:"source_id"`
}

type JobStore interface {
	SaveJob(ctx context.Context, job SyncJob) error
	GetJob(ctx context.Context, jobId string) (SyncJob, bool)
	// ActiveJobForSource reports the single non-terminal job for a source,
	// if one exists. At most one can exist at any time.
	ActiveJobForSource(ctx context.Context, sourceId string) (SyncJob, bool)
	DeleteJob(ctx context.Context, jobId string)
}
