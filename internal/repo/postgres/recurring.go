package postgres

import (
	"context"
	"time"

	"github.com/spendly/spendly/internal/domain/expense"
)

// ListRecurringHeads returns recurring series heads whose date is not in the
// future. Whether a head is actually due depends on its interval, which the
// worker decides; this is just the cheap DB-side prefilter.
func (r *ExpensesRepo) ListRecurringHeads(ctx context.Context, asOf time.Time, limit int) ([]expense.Expense, error) {
	var out []expense.Expense

	err := r.obs.ObserveDB("expenses.list_recurring_heads", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+expenseColumns+`
			   FROM expenses
			  WHERE is_recurring AND date <= $1
			  ORDER BY date ASC
			  LIMIT $2`,
			asOf, limit,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]expense.Expense, 0, limit)

		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// MaterializeNext inserts the next occurrence as the new series head and
// demotes the old head, in one transaction. A series therefore always has
// exactly one row with is_recurring set.
func (r *ExpensesRepo) MaterializeNext(ctx context.Context, headID string, next expense.Expense) error {
	return r.obs.ObserveDB("expenses.materialize_next", func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		tag, err := tx.Exec(ctx,
			`UPDATE expenses
			    SET is_recurring = FALSE, recurring_interval = NULL, updated_at = NOW()
			  WHERE id = $1 AND is_recurring`,
			headID,
		)

		if err != nil {
			return err
		}

		// another worker already advanced this series
		if tag.RowsAffected() == 0 {
			return expense.ErrNotFound
		}

		args, err := expenseArgs(next)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO expenses (`+expenseColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			args...,
		)

		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}
