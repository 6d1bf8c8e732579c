package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/data/redisStore"
	"github.com/akolanti/RagAPI/internal/domain/jobModel"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

const activeJobKeyPrefix = "active-job:"

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRedisJobStore returns nil when Redis is unreachable so callers can
// fall through to the next store in the chain.
func GetRedisJobStore(ctx context.Context) *RedisJobStore {
	inner := redisStore.GetRedisStore(ctx, config.RedisJobStatusDB)
	if inner == nil {
		return nil
	}
	return &RedisJobStore{
		store:  inner,
		logger: logger_i.NewLogger("JobStore"),
	}
}

// SaveJob writes the job and keeps the per-source active-job index in step:
// a non-terminal job claims the index slot, a terminal job releases it.
func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.SyncJob) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "jobId", job.Id)
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err = s.store.Set(ctx, job.Id, data, config.RedisJobStoreTTL); err != nil {
		return err
	}

	if job.Status.Terminal() {
		err = s.store.Del(ctx, activeJobKeyPrefix+job.SourceId)
	} else {
		err = s.store.Set(ctx, activeJobKeyPrefix+job.SourceId, job.Id, config.RedisJobStoreTTL)
	}
	if err == nil {
		log.Debug("Saved job to Redis", "status", job.Status)
	}
	return err
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.SyncJob, bool) {
	var job jobModel.SyncJob
	val, err := s.store.Get(ctx, jobId)
	if s.store.IsNil(err) {
		return job, false
	} else if err != nil {
		s.logger.Error("Error reading job from Redis", "jobId", jobId, "error", err)
		return job, false
	}

	if err = json.Unmarshal([]byte(val), &job); err != nil {
		return job, false
	}
	return job, true
}

func (s *RedisJobStore) ActiveJobForSource(ctx context.Context, sourceId string) (jobModel.SyncJob, bool) {
	jobId, err := s.store.Get(ctx, activeJobKeyPrefix+sourceId)
	if s.store.IsNil(err) || err != nil {
		return jobModel.SyncJob{}, false
	}

	job, found := s.GetJob(ctx, jobId)
	if !found || job.Status.Terminal() {
		return jobModel.SyncJob{}, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobID); err != nil {
		s.logger.Error("Error deleting job from Redis", "jobId", jobID, "error", err)
		return
	}
	s.logger.Debug("Job deleted from Redis", "jobId", jobID)
}

func TestJobStore(store *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
