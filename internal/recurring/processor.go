package recurring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spendly/spendly/internal/domain/expense"
	"github.com/spendly/spendly/internal/observability"
)

// ExpenseSource is the slice of the expenses repository the worker needs.
type ExpenseSource interface {
	ListRecurringHeads(ctx context.Context, asOf time.Time, limit int) ([]expense.Expense, error)
	MaterializeNext(ctx context.Context, headID string, next expense.Expense) error
}

// NextOccurrence returns the date the interval after the given one.
func NextOccurrence(date time.Time, interval expense.Interval) time.Time {
	switch interval {
	case expense.IntervalDaily:
		return date.AddDate(0, 0, 1)
	case expense.IntervalWeekly:
		return date.AddDate(0, 0, 7)
	case expense.IntervalMonthly:
		return date.AddDate(0, 1, 0)
	case expense.IntervalYearly:
		return date.AddDate(1, 0, 0)
	}

	return date
}

// nextHead clones a series head as its next occurrence.
func nextHead(head expense.Expense, date time.Time) expense.Expense {
	now := time.Now().UTC()

	next := head
	next.ID = uuid.NewString()
	next.Date = date
	next.CreatedAt = now
	next.UpdatedAt = now

	return next
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Processor materializes due recurring expenses: the occurrence after the
// current series head is inserted and becomes the new head. Sweeps repeat
// per series until it has caught up with the clock.
type Processor struct {
	cfg  Config
	repo ExpenseSource
	log  *slog.Logger
	obs  *observability.Prom
}

func New(cfg Config, repo ExpenseSource, log *slog.Logger, obs *observability.Prom) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}

	return &Processor{
		cfg:  cfg,
		repo: repo,
		log:  log,
		obs:  obs,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	// first sweep right away rather than one interval in
	p.sweepAndReport(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("recurring processor shutting down")
			return nil

		case <-ticker.C:
			p.sweepAndReport(ctx)
		}
	}
}

func (p *Processor) sweepAndReport(ctx context.Context) {
	start := time.Now()

	n, err := p.Sweep(ctx, time.Now().UTC())

	if p.obs != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}

		p.obs.RecurringRuns.WithLabelValues(result).Inc()
		p.obs.RecurringMaterialized.Add(float64(n))
		p.obs.RecurringRunDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		p.log.Error("recurring sweep failed", "err", err, "materialized", n)
		return
	}

	if n > 0 {
		p.log.Info("recurring sweep", "materialized", n)
	}
}

// Sweep advances every due series and returns how many occurrences were
// inserted. A head is due once the occurrence after it is not in the future.
func (p *Processor) Sweep(ctx context.Context, asOf time.Time) (int, error) {
	heads, err := p.repo.ListRecurringHeads(ctx, asOf, p.cfg.BatchSize)

	if err != nil {
		return 0, err
	}

	materialized := 0

	for _, head := range heads {
		for {
			nextDate := NextOccurrence(head.Date, head.RecurringInterval)

			// an unknown interval yields the same date back; skip the series
			// instead of inserting copies forever
			if !nextDate.After(head.Date) {
				break
			}

			if nextDate.After(asOf) {
				break
			}

			next := nextHead(head, nextDate)

			err := p.repo.MaterializeNext(ctx, head.ID, next)

			if err != nil {
				// another worker got there first; move on to the next series
				if errors.Is(err, expense.ErrNotFound) {
					break
				}
				return materialized, err
			}

			materialized++
			head = next
		}
	}

	return materialized, nil
}
