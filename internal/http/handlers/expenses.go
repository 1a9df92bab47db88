package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendly/spendly/internal/domain/expense"
	"github.com/spendly/spendly/internal/domain/money"
	"github.com/spendly/spendly/internal/http/middlewares"
)

type ExpensesStore interface {
	Create(ctx context.Context, e expense.Expense) error
	GetByID(ctx context.Context, id string) (expense.Expense, error)
	List(ctx context.Context, userID string, f expense.ListFilter) ([]expense.Expense, int, money.Cents, error)
	Update(ctx context.Context, e expense.Expense) error
	Delete(ctx context.Context, id string) error
}

// StatsInvalidator drops a user's cached statistics after a mutation.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type ExpensesHandler struct {
	repo  ExpensesStore
	stats StatsInvalidator
	log   *slog.Logger
}

func NewExpensesHandler(repo ExpensesStore, stats StatsInvalidator, log *slog.Logger) *ExpensesHandler {
	return &ExpensesHandler{repo: repo, stats: stats, log: log}
}

func (h *ExpensesHandler) invalidateStats(ctx context.Context, userID string) {
	if h.stats != nil {
		h.stats.Invalidate(ctx, userID)
	}
}

func callerID(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok || id == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return "", false
	}

	return id, true
}

// loadOwned fetches a record and enforces ownership, existence first so a
// caller probing for other users' ids gets 404 before 403.
func (h *ExpensesHandler) loadOwned(ctx *gin.Context, userID, id, action string) (expense.Expense, bool) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	e, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return expense.Expense{}, false
		}

		h.log.Error("load expense", "err", err)
		RespondInternal(ctx, "Could not load expense")
		return expense.Expense{}, false
	}

	if e.UserID != userID {
		RespondForbidden(ctx, "Not authorized to "+action+" this expense")
		return expense.Expense{}, false
	}

	return e, true
}

func parseDateParam(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}

	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}

	t = t.UTC()
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}

	return &t, nil
}

func (h *ExpensesHandler) ListExpenses(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var (
		filter expense.ListFilter
		fields []FieldError
	)

	if raw := ctx.Query("category"); raw != "" {
		c := expense.Category(raw)
		if !c.Valid() {
			fields = append(fields, FieldError{Field: "category", Rule: "oneof", Message: strconv.Quote(raw) + " is not a valid category"})
		} else {
			filter.Category = &c
		}
	}

	from, err := parseDateParam(ctx.Query("startDate"), false)
	if err != nil {
		fields = append(fields, FieldError{Field: "startDate", Rule: "datetime", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD date"})
	}
	filter.From = from

	to, err := parseDateParam(ctx.Query("endDate"), true)
	if err != nil {
		fields = append(fields, FieldError{Field: "endDate", Rule: "datetime", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD date"})
	}
	filter.To = to

	if len(fields) > 0 {
		RespondBadRequest(ctx, "Invalid query parameters", fields)
		return
	}

	filter.Limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}

	filter.Page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if filter.Page <= 0 {
		filter.Page = 1
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	records, total, totalAmount, err := h.repo.List(cctx, userID, filter)

	if err != nil {
		h.log.Error("list expenses", "err", err)
		RespondInternal(ctx, "Could not list expenses")
		return
	}

	pages := 0
	if total > 0 {
		pages = (total + filter.Limit - 1) / filter.Limit
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"count":       len(records),
		"total":       total,
		"totalAmount": totalAmount,
		"pagination": gin.H{
			"page":  filter.Page,
			"limit": filter.Limit,
			"pages": pages,
		},
		"data": records,
	})
}

func (h *ExpensesHandler) GetExpense(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	e, ok := h.loadOwned(ctx, userID, ctx.Param("id"), "view")
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    e,
	})
}

func (h *ExpensesHandler) CreateExpense(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req expense.CreateExpenseRequest

	if !BindJSON(ctx, &req) {
		return
	}

	e := expense.NewFromCreateRequest(userID, req)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Create(cctx, e); err != nil {
		h.log.Error("create expense", "err", err)
		RespondInternal(ctx, "Could not create expense")
		return
	}

	h.invalidateStats(cctx, userID)

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    e,
	})
}

func (h *ExpensesHandler) UpdateExpense(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	stored, ok := h.loadOwned(ctx, userID, ctx.Param("id"), "update")
	if !ok {
		return
	}

	var req expense.UpdateExpenseRequest

	if !BindJSON(ctx, &req) {
		return
	}

	merged, err := expense.ApplyUpdate(stored, req)

	if err != nil {
		var verr *expense.ValidationError
		if errors.As(err, &verr) {
			RespondBadRequest(ctx, "Validation failed", violationFields(verr))
			return
		}

		h.log.Error("merge expense update", "err", err)
		RespondInternal(ctx, "Could not update expense")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Update(cctx, merged); err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}

		h.log.Error("update expense", "err", err)
		RespondInternal(ctx, "Could not update expense")
		return
	}

	h.invalidateStats(cctx, userID)

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    merged,
	})
}

func (h *ExpensesHandler) DeleteExpense(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	e, ok := h.loadOwned(ctx, userID, ctx.Param("id"), "delete")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, e.ID); err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}

		h.log.Error("delete expense", "err", err)
		RespondInternal(ctx, "Could not delete expense")
		return
	}

	h.invalidateStats(cctx, userID)

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Expense deleted successfully",
	})
}

type bulkCreateRequest struct {
	Expenses []json.RawMessage `json:"expenses"`
}

// BulkCreateExpenses inserts every valid entry and skips the rest; one bad
// item must not block its neighbours, so items are validated individually
// instead of through the binding of the envelope.
func (h *ExpensesHandler) BulkCreateExpenses(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req bulkCreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if len(req.Expenses) == 0 {
		RespondBadRequest(ctx, "Please provide an array of expenses", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	created := make([]expense.Expense, 0, len(req.Expenses))

	for i, raw := range req.Expenses {
		var item expense.CreateExpenseRequest

		if err := json.Unmarshal(raw, &item); err != nil {
			h.log.Debug("bulk item rejected", "index", i, "err", err)
			continue
		}

		if violations := ValidateStruct(&item); len(violations) > 0 {
			h.log.Debug("bulk item invalid", "index", i, "violations", len(violations))
			continue
		}

		e := expense.NewFromCreateRequest(userID, item)

		if err := h.repo.Create(cctx, e); err != nil {
			h.log.Error("bulk create expense", "index", i, "err", err)
			continue
		}

		created = append(created, e)
	}

	if len(created) > 0 {
		h.invalidateStats(cctx, userID)
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"count":   len(created),
		"data":    created,
	})
}

func violationFields(verr *expense.ValidationError) []FieldError {
	fields := make([]FieldError, 0, len(verr.Violations))

	for _, v := range verr.Violations {
		fields = append(fields, FieldError{
			Field:   v.Field,
			Rule:    "invalid",
			Message: v.Message,
		})
	}

	return fields
}
