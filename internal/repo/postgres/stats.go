package postgres

import (
	"context"
	"math"

	"github.com/spendly/spendly/internal/domain/expense"
)

// CategoryStats reduces the owner's expenses in range into per-category
// totals, largest first. Sums happen on the stored cent values; the average
// is derived in display units at the end.
func (r *ExpensesRepo) CategoryStats(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
	var out []expense.CategoryStat

	err := r.obs.ObserveDB("expenses.category_stats", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT category, SUM(amount_cents), COUNT(*)
			   FROM expenses
			  WHERE user_id = $1 AND date >= $2 AND date <= $3
			  GROUP BY category
			  ORDER BY SUM(amount_cents) DESC`,
			userID, dr.Start, dr.End,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]expense.CategoryStat, 0)

		for rows.Next() {
			var s expense.CategoryStat

			if err := rows.Scan(&s.Category, &s.TotalAmount, &s.Count); err != nil {
				return err
			}

			// groups always have at least one member
			avg := s.TotalAmount.Display() / float64(s.Count)
			s.AverageAmount = math.Round(avg*100) / 100

			out = append(out, s)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// MonthlyStats groups the owner's expenses in range by calendar month,
// chronologically ascending.
func (r *ExpensesRepo) MonthlyStats(ctx context.Context, userID string, dr expense.DateRange) ([]expense.MonthStat, error) {
	var out []expense.MonthStat

	err := r.obs.ObserveDB("expenses.monthly_stats", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT EXTRACT(YEAR FROM date)::int, EXTRACT(MONTH FROM date)::int,
			        SUM(amount_cents), COUNT(*)
			   FROM expenses
			  WHERE user_id = $1 AND date >= $2 AND date <= $3
			  GROUP BY 1, 2
			  ORDER BY 1, 2`,
			userID, dr.Start, dr.End,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]expense.MonthStat, 0)

		for rows.Next() {
			var s expense.MonthStat

			if err := rows.Scan(&s.Year, &s.Month, &s.TotalAmount, &s.Count); err != nil {
				return err
			}

			out = append(out, s)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
