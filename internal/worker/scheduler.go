package worker

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler enqueues one job of a fixed type on every tick.
type Scheduler struct {
	queue    *JobQueue
	name     string
	jobType  JobType
	interval time.Duration
	log      *slog.Logger
}

func NewScheduler(queue *JobQueue, name string, jobType JobType, interval time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		queue:    queue,
		name:     name,
		jobType:  jobType,
		interval: interval,
		log:      log,
	}
}

// Run enqueues immediately and then every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.enqueue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context) {
	job, err := s.queue.Enqueue(ctx, s.name, s.jobType, nil)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("failed to schedule job", "job_type", s.jobType, "error", err)
		}
		return
	}
	s.log.Debug("scheduled job", "job_id", job.ID, "job_type", s.jobType, "queue", s.name)
}
