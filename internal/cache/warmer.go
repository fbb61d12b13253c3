package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// WarmupJob fills one cache key. Higher priorities are loaded first.
type WarmupJob struct {
	Key      string
	TTL      time.Duration
	Tags     []string
	Priority int
	Load     func(ctx context.Context) (interface{}, error)
}

// Warmer preloads cache entries, typically right after startup.
type Warmer struct {
	cache       Cache
	concurrency int
	log         *slog.Logger
}

func NewWarmer(c Cache, concurrency int, log *slog.Logger) *Warmer {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Warmer{cache: c, concurrency: concurrency, log: log}
}

// Warm runs the jobs highest priority first with at most concurrency loads in
// flight and returns how many keys were written. Failing jobs are logged and
// skipped.
func (w *Warmer) Warm(ctx context.Context, jobs []WarmupJob) int {
	queue := NewPriorityQueue()
	for _, job := range jobs {
		queue.Push(job)
	}

	start := time.Now()
	var warmed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				job, ok := queue.Pop()
				if !ok {
					return
				}
				if w.run(ctx, job) {
					warmed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	w.log.Info("cache warmup finished",
		"warmed", warmed.Load(),
		"jobs", len(jobs),
		"duration", time.Since(start),
	)
	return int(warmed.Load())
}

func (w *Warmer) run(ctx context.Context, job WarmupJob) bool {
	value, err := job.Load(ctx)
	if err != nil {
		w.log.Warn("cache warmup load failed", "key", job.Key, "error", err)
		return false
	}

	if len(job.Tags) > 0 {
		err = w.cache.SetWithTags(ctx, job.Key, value, job.TTL, job.Tags)
	} else {
		err = w.cache.Set(ctx, job.Key, value, job.TTL)
	}
	if err != nil {
		w.log.Warn("cache warmup write failed", "key", job.Key, "error", err)
		return false
	}
	return true
}
