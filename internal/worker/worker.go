package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypePurgeDeleted JobType = "purge_deleted"
)

const (
	DefaultQueue = "default"
	RetryQueue   = "retry_queue"
	DeadQueue    = "dead_queue"

	defaultMaxTries = 3
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

// DeadJob is what lands on the dead queue after the last failed attempt.
type DeadJob struct {
	Job      *Job      `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

// ResultHook observes the outcome of every executed job: "succeeded",
// "retried" or "dead".
type ResultHook func(jobType JobType, outcome string, elapsed time.Duration)

// errNotDue means the popped job was put back because it is scheduled later.
var errNotDue = errors.New("job not due yet")

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	blockTimeout time.Duration
	jobTimeout   time.Duration
	retryBase    time.Duration
	onResult     ResultHook
	log          *slog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string

	// BlockTimeout bounds each BLPOP so shutdown is noticed promptly.
	BlockTimeout time.Duration
	JobTimeout   time.Duration
	// RetryBase is the delay before the first retry; it doubles per attempt.
	RetryBase time.Duration
	OnResult  ResultHook
	Logger    *slog.Logger
}

func NewWorker(config WorkerConfig) *Worker {
	queues := append([]string(nil), config.Queues...)
	if len(queues) == 0 {
		queues = []string{DefaultQueue}
	}
	if !contains(queues, RetryQueue) {
		queues = append(queues, RetryQueue)
	}

	w := &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       queues,
		pollInterval: orDefault(config.PollInterval, time.Second),
		blockTimeout: orDefault(config.BlockTimeout, 5*time.Second),
		jobTimeout:   orDefault(config.JobTimeout, 5*time.Minute),
		retryBase:    orDefault(config.RetryBase, time.Minute),
		onResult:     config.OnResult,
		log:          config.Logger,
		now:          time.Now,
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches concurrency goroutines that consume jobs until ctx is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.log.Info("starting worker", "concurrency", concurrency, "queues", w.queues)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx)
	}
}

func (w *Worker) Stop() {
	w.log.Info("stopping worker")
	w.mu.RLock()
	cancel := w.cancel
	w.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := w.processNextJob(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		if !errors.Is(err, errNotDue) {
			w.log.Error("error processing job", "error", err)
		}

		select {
		case <-ctx.Done():
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context) error {
	result, err := w.client.BLPop(ctx, w.blockTimeout, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queue := result[0]
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if w.now().Before(job.ProcessAt) {
		if err := w.enqueueJob(ctx, queue, &job); err != nil {
			return err
		}
		return errNotDue
	}

	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	log := w.log.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts+1)
	log.Info("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	started := w.now()
	err := handler(jobCtx, job)
	cancel()
	elapsed := w.now().Sub(started)

	if err == nil {
		log.Info("job completed", "elapsed", elapsed)
		w.report(job.Type, "succeeded", elapsed)
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		log.Warn("job failed, retrying", "error", err, "max_tries", job.MaxTries)
		w.report(job.Type, "retried", elapsed)
		return w.retryJob(ctx, job)
	}

	log.Error("job failed permanently", "error", err)
	w.report(job.Type, "dead", elapsed)
	return w.moveToDeadQueue(ctx, job, err)
}

func (w *Worker) report(jobType JobType, outcome string, elapsed time.Duration) {
	if w.onResult != nil {
		w.onResult(jobType, outcome, elapsed)
	}
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryBase * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = w.now().Add(delay)

	return w.enqueueJob(ctx, RetryQueue, job)
}

func (w *Worker) enqueueJob(ctx context.Context, queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.RPush(ctx, queue, jobData).Err()
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	deadJobData, err := json.Marshal(DeadJob{
		Job:      job,
		Error:    jobErr.Error(),
		FailedAt: w.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(ctx, DeadQueue, deadJobData).Err()
}

type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) (*Job, error) {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Payload:   payload,
		MaxTries:  defaultMaxTries,
		CreatedAt: time.Now().UTC(),
		ProcessAt: processAt.UTC(),
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := q.client.RPush(ctx, queue, jobData).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}
