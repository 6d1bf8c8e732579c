package syncjob

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/RagAPI/internal/adapter/utils"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/domain/jobModel"
	"github.com/akolanti/RagAPI/internal/metrics"
	"github.com/akolanti/RagAPI/internal/queue"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

// ErrJobAlreadyActive reports that the source already has a queued or
// running job; the existing job is returned alongside it.
var ErrJobAlreadyActive = errors.New("source already has an active job")

// Processor runs the actual ingestion for a source.
type Processor interface {
	ProcessSource(ctx context.Context, sourceId string) error
}

// Service owns the sync job lifecycle: at most one non-terminal job per
// source, queued -> running -> success|failed, a failed attempt re-queued as
// a fresh job until the attempt budget runs out.
type Service interface {
	Enqueue(ctx context.Context, sourceId string, jobType jobModel.JobType) (jobModel.SyncJob, error)
	Get(ctx context.Context, jobId string) (jobModel.SyncJob, bool)
	Run(ctx context.Context, msg jobModel.Message) error
}

type ServiceConfig struct {
	JobStore  jobModel.JobStore
	Queue     queue.Queue
	Processor Processor
}

type service struct {
	jobStore  jobModel.JobStore
	queue     queue.Queue
	processor Processor
	logger    *logger_i.Logger
}

func InitService(cfg ServiceConfig) Service {
	return &service{
		jobStore:  cfg.JobStore,
		queue:     cfg.Queue,
		processor: cfg.Processor,
		logger:    logger_i.NewLogger("SyncJob"),
	}
}

// JobTypeForConnector maps a source's connector to the job type recorded on
// its sync jobs.
func JobTypeForConnector(t commonModels.ConnectorType) jobModel.JobType {
	switch t {
	case commonModels.ConnectorDrive:
		return jobModel.JobTypeSyncDrive
	case commonModels.ConnectorNotion:
		return jobModel.JobTypeSyncNotion
	case commonModels.ConnectorGithub:
		return jobModel.JobTypeSyncGithub
	default:
		return jobModel.JobTypeIngestUpload
	}
}

func (s *service) Enqueue(ctx context.Context, sourceId string, jobType jobModel.JobType) (jobModel.SyncJob, error) {
	if active, found := s.jobStore.ActiveJobForSource(ctx, sourceId); found {
		return active, ErrJobAlreadyActive
	}

	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	job := jobModel.SyncJob{
		Id:          utils.GetNewUUID(),
		SourceId:    sourceId,
		JobType:     jobType,
		Status:      jobModel.JobStatusQueued,
		Attempt:     1,
		TraceId:     traceId,
		CreatedTime: time.Now().UTC(),
	}
	return job, s.submit(ctx, job)
}

func (s *service) submit(ctx context.Context, job jobModel.SyncJob) error {
	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		return err
	}
	msg := jobModel.Message{JobId: job.Id, JobType: job.JobType, SourceId: job.SourceId}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return err
	}
	metrics.IncrementJobsInQueue()
	s.logger.Info("job queued", "jobId", job.Id, "sourceId", job.SourceId, "attempt", job.Attempt)
	return nil
}

func (s *service) Get(ctx context.Context, jobId string) (jobModel.SyncJob, bool) {
	return s.jobStore.GetJob(ctx, jobId)
}

// Run executes one delivered message. Redelivery of a finished job is a
// no-op; a crashed run resumes because the pipeline converges on re-run.
func (s *service) Run(ctx context.Context, msg jobModel.Message) error {
	log := s.logger.With("jobId", msg.JobId, "sourceId", msg.SourceId)

	job, found := s.jobStore.GetJob(ctx, msg.JobId)
	if !found {
		// job record expired; reconstruct enough to run
		job = jobModel.SyncJob{
			Id: msg.JobId, SourceId: msg.SourceId, JobType: msg.JobType,
			Status: jobModel.JobStatusQueued, Attempt: 1, CreatedTime: time.Now().UTC(),
		}
	}
	if job.Status.Terminal() {
		log.Debug("skipping redelivered terminal job", "status", job.Status)
		return nil
	}

	job.Status = jobModel.JobStatusRunning
	if err := s.jobStore.SaveJob(ctx, job); err != nil {
		return err
	}

	runCtx := ctx
	if job.TraceId != "" {
		runCtx = context.WithValue(ctx, config.TRACE_ID_KEY, job.TraceId)
	}
	runCtx, cancel := context.WithTimeout(runCtx, config.JobProcessingTimeout)
	defer cancel()

	err := s.processor.ProcessSource(runCtx, job.SourceId)
	job.EndTime = time.Now().UTC()

	if err == nil {
		job.Status = jobModel.JobStatusSuccess
		job.Error = ""
		metrics.RecordJobCompleted(string(jobModel.JobStatusSuccess))
		log.Info("job succeeded", "attempt", job.Attempt)
		return s.jobStore.SaveJob(ctx, job)
	}

	job.Status = jobModel.JobStatusFailed
	job.Error = err.Error()
	metrics.RecordJobCompleted(string(jobModel.JobStatusFailed))
	if saveErr := s.jobStore.SaveJob(ctx, job); saveErr != nil {
		return saveErr
	}

	if job.Attempt >= config.MaxJobAttempts {
		log.Error("job dead-lettered, attempt budget exhausted", "attempts", job.Attempt, "error", err)
		return nil
	}

	retry := jobModel.SyncJob{
		Id:          utils.GetNewUUID(),
		SourceId:    job.SourceId,
		JobType:     job.JobType,
		Status:      jobModel.JobStatusQueued,
		Attempt:     job.Attempt + 1,
		TraceId:     job.TraceId,
		CreatedTime: time.Now().UTC(),
	}
	log.Warn("job failed, re-queueing", "attempt", job.Attempt, "error", err)
	return s.submit(ctx, retry)
}
