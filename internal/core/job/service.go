package job

import (
	"context"
	"fmt"

	rds "desktour/internal/platform/redis"
)

type JobService struct{ redis *rds.Service }

func NewJobService(redis *rds.Service) *JobService { return &JobService{redis: redis} }

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.redis.CacheGet(ctx, key(jobID), &job); err != nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return &job, nil
}

func (s *JobService) store(ctx context.Context, jobID string, jobType Type, status Status, result *AnalyzeResult) error {
	var job Job
	_ = s.redis.CacheGet(ctx, key(jobID), &job)
	job.JobID = jobID
	job.Type = jobType
	job.Status = status
	if result != nil {
		job.Results = JobResult{AnalyzeResult: result}
	}
	if err := s.redis.CacheSet(ctx, key(jobID), job, ttl(status)); err != nil {
		return err
	}
	// Notify any status pollers holding a subscription.
	_ = s.redis.Client().Publish(ctx, key(jobID), "updated").Err()
	return nil
}

func (s *JobService) Complete(ctx context.Context, jobID string, status Status, result *AnalyzeResult) error {
	return s.store(ctx, jobID, TypeAnalyze, status, result)
}

func (s *JobService) SetProcessing(ctx context.Context, jobID string) error {
	return s.store(ctx, jobID, TypeAnalyze, StatusProcessing, nil)
}

func (s *JobService) InitPending(ctx context.Context, jobID string, sourceURL string) error {
	return s.store(ctx, jobID, TypeAnalyze, StatusPending, &AnalyzeResult{SourceURL: sourceURL})
}

func key(id string) string { return "job:" + id }

func ttl(s Status) int {
	if s == StatusCompleted || s == StatusFailed {
		return 3600
	}
	return 600
}
