package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"task-management-api/internal/repositories"

	"gorm.io/gorm"
)

// ErrPurgeDisabled is returned when no retention period is configured.
var ErrPurgeDisabled = errors.New("purge is disabled: retention is zero")

// Purger hard-deletes tasks that have been soft-deleted for longer than the
// retention period. Tags are never removed.
type Purger struct {
	tasks     *repositories.TaskRepository
	retention time.Duration
	batchSize int
	now       func() time.Time
	log       *slog.Logger
}

func NewPurger(db *gorm.DB, retention time.Duration, batchSize int, opts ...PurgerOption) *Purger {
	if batchSize <= 0 {
		batchSize = 500
	}
	p := &Purger{
		tasks:     repositories.NewTaskRepository(db),
		retention: retention,
		batchSize: batchSize,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type PurgerOption func(*Purger)

func WithPurgeClock(now func() time.Time) PurgerOption {
	return func(p *Purger) { p.now = now }
}

func WithPurgeLogger(log *slog.Logger) PurgerOption {
	return func(p *Purger) { p.log = log }
}

// Cutoff is the update time before which deleted tasks are purged.
func (p *Purger) Cutoff() time.Time {
	return p.now().UTC().Add(-p.retention)
}

// Purge removes eligible tasks in batches until none remain or ctx ends, and
// returns how many were removed.
func (p *Purger) Purge(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, ErrPurgeDisabled
	}

	cutoff := p.Cutoff()
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := p.tasks.PurgeDeleted(ctx, cutoff, p.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(p.batchSize) {
			break
		}
	}

	p.log.InfoContext(ctx, "purged deleted tasks", "purged", total, "cutoff", cutoff)
	return total, nil
}
