package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spendly/spendly/internal/domain/expense"
	"github.com/spendly/spendly/internal/domain/money"
	"github.com/spendly/spendly/internal/observability"
)

type ExpensesRepo struct {
	pool *pgxpool.Pool
	obs  *observability.Prom
}

func NewExpensesRepo(pool *pgxpool.Pool, obs *observability.Prom) *ExpensesRepo {
	return &ExpensesRepo{pool: pool, obs: obs}
}

const expenseColumns = `id, user_id, title, amount_cents, category, description, date,
	is_recurring, recurring_interval, tags, attachments, created_at, updated_at`

func scanExpense(row pgx.Row) (expense.Expense, error) {
	var (
		e           expense.Expense
		interval    *string
		attachments []byte
	)

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Title,
		&e.Amount,
		&e.Category,
		&e.Description,
		&e.Date,
		&e.IsRecurring,
		&interval,
		&e.Tags,
		&attachments,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if err != nil {
		return expense.Expense{}, err
	}

	if interval != nil {
		e.RecurringInterval = expense.Interval(*interval)
	}

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &e.Attachments); err != nil {
			return expense.Expense{}, err
		}
	}

	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Attachments == nil {
		e.Attachments = []expense.Attachment{}
	}

	return e, nil
}

func expenseArgs(e expense.Expense) ([]interface{}, error) {
	attachments, err := json.Marshal(e.Attachments)
	if err != nil {
		return nil, err
	}

	var interval *string
	if e.RecurringInterval != "" {
		s := string(e.RecurringInterval)
		interval = &s
	}

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	return []interface{}{
		e.ID, e.UserID, e.Title, int64(e.Amount), string(e.Category), e.Description, e.Date,
		e.IsRecurring, interval, tags, attachments, e.CreatedAt, e.UpdatedAt,
	}, nil
}

func (r *ExpensesRepo) Create(ctx context.Context, e expense.Expense) error {
	return r.obs.ObserveDB("expenses.create", func() error {
		args, err := expenseArgs(e)
		if err != nil {
			return err
		}

		_, err = r.pool.Exec(ctx,
			`INSERT INTO expenses (`+expenseColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			args...,
		)

		return err
	})
}

func (r *ExpensesRepo) GetByID(ctx context.Context, id string) (expense.Expense, error) {
	var e expense.Expense

	err := r.obs.ObserveDB("expenses.get", func() error {
		var err error
		e, err = scanExpense(r.pool.QueryRow(ctx,
			`SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))

		if errors.Is(err, pgx.ErrNoRows) {
			return expense.ErrNotFound
		}
		return err
	})

	return e, err
}

// buildFilter renders the WHERE clause shared by the page and aggregate
// queries. The owner constraint is always present.
func buildFilter(userID string, f expense.ListFilter) (string, []interface{}) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	pos := 2

	if f.Category != nil {
		conds = append(conds, fmt.Sprintf("category = $%d", pos))
		args = append(args, string(*f.Category))
		pos++
	}

	if f.From != nil {
		conds = append(conds, fmt.Sprintf("date >= $%d", pos))
		args = append(args, *f.From)
		pos++
	}

	if f.To != nil {
		conds = append(conds, fmt.Sprintf("date <= $%d", pos))
		args = append(args, *f.To)
		pos++
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of the caller's expenses, newest first, together with
// the total row count and the amount sum over the whole filtered set. The sum
// comes from a separate aggregate query so it is correct on any page,
// including a page past the end.
func (r *ExpensesRepo) List(ctx context.Context, userID string, f expense.ListFilter) ([]expense.Expense, int, money.Cents, error) {
	var (
		out        []expense.Expense
		total      int
		totalCents money.Cents
	)

	err := r.obs.ObserveDB("expenses.list", func() error {
		where, args := buildFilter(userID, f)

		err := r.pool.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(SUM(amount_cents), 0) FROM expenses`+where,
			args...,
		).Scan(&total, &totalCents)

		if err != nil {
			return err
		}

		limit := f.Limit
		if limit <= 0 {
			limit = 50
		}
		page := f.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * limit

		pos := len(args) + 1
		query := `SELECT ` + expenseColumns + ` FROM expenses` + where +
			fmt.Sprintf(" ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d", pos, pos+1)

		rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)

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
		return nil, 0, 0, err
	}

	return out, total, totalCents, nil
}

func (r *ExpensesRepo) Update(ctx context.Context, e expense.Expense) error {
	return r.obs.ObserveDB("expenses.update", func() error {
		args, err := expenseArgs(e)
		if err != nil {
			return err
		}

		tag, err := r.pool.Exec(ctx,
			`UPDATE expenses
			    SET user_id = $2,
			        title = $3,
			        amount_cents = $4,
			        category = $5,
			        description = $6,
			        date = $7,
			        is_recurring = $8,
			        recurring_interval = $9,
			        tags = $10,
			        attachments = $11,
			        created_at = $12,
			        updated_at = $13
			  WHERE id = $1`,
			args...,
		)

		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return expense.ErrNotFound
		}
		return nil
	})
}

func (r *ExpensesRepo) Delete(ctx context.Context, id string) error {
	return r.obs.ObserveDB("expenses.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return expense.ErrNotFound
		}

		return nil
	})
}
