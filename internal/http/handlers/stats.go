package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spendly/spendly/internal/cache"
	"github.com/spendly/spendly/internal/domain/expense"
)

type StatsReader interface {
	CategoryStats(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error)
	MonthlyStats(ctx context.Context, userID string, dr expense.DateRange) ([]expense.MonthStat, error)
}

type StatsHandler struct {
	repo  StatsReader
	cache cache.StatsCache // nil disables caching
	log   *slog.Logger
}

func NewStatsHandler(repo StatsReader, statsCache cache.StatsCache, log *slog.Logger) *StatsHandler {
	return &StatsHandler{repo: repo, cache: statsCache, log: log}
}

// Cached entries are keyed by a per-user generation token; Invalidate drops
// the token, orphaning every cached range at once. Orphans age out by TTL.

func genKey(userID string) string {
	return "stats:gen:" + userID
}

func (h *StatsHandler) generation(ctx context.Context, userID string) string {
	if v, ok := h.cache.Get(ctx, genKey(userID)); ok {
		return string(v)
	}

	gen := uuid.NewString()
	h.cache.Set(ctx, genKey(userID), []byte(gen))

	return gen
}

func (h *StatsHandler) Invalidate(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}

	h.cache.Delete(ctx, genKey(userID))
}

func (h *StatsHandler) GetStats(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var (
		year, month int
		fields      []FieldError
		err         error
	)

	if raw := ctx.Query("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, FieldError{Field: "year", Rule: "numeric", Message: "must be a number"})
		}
	}

	if raw := ctx.Query("month"); raw != "" {
		month, err = strconv.Atoi(raw)
		if err != nil || month < 1 || month > 12 {
			fields = append(fields, FieldError{Field: "month", Rule: "numeric", Message: "must be a number between 1 and 12"})
		}
	}

	if len(fields) > 0 {
		RespondBadRequest(ctx, "Invalid query parameters", fields)
		return
	}

	dr := expense.StatsRange(year, month, time.Now())

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	var key string

	if h.cache != nil {
		// both range bounds go into the key: a whole year and its January
		// share a start date but not an end
		key = "stats:" + userID + ":" + h.generation(cctx, userID) + ":" + dr.Start.Format("2006-01-02") + ":" + dr.End.Format("2006-01-02")

		if raw, ok := h.cache.Get(cctx, key); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", raw)
			return
		}
	}

	categoryStats, err := h.repo.CategoryStats(cctx, userID, dr)

	if err != nil {
		h.log.Error("category stats", "err", err)
		RespondInternal(ctx, "Could not compute statistics")
		return
	}

	monthlyStats := make([]expense.MonthStat, 0)

	// the month breakdown only makes sense across months
	if dr.MultiMonth() {
		monthlyStats, err = h.repo.MonthlyStats(cctx, userID, dr)

		if err != nil {
			h.log.Error("monthly stats", "err", err)
			RespondInternal(ctx, "Could not compute statistics")
			return
		}
	}

	payload := gin.H{
		"success": true,
		"data": expense.Stats{
			CategoryStats: categoryStats,
			MonthlyStats:  monthlyStats,
			DateRange:     dr,
		},
	}

	if h.cache != nil {
		if raw, err := json.Marshal(payload); err == nil {
			h.cache.Set(cctx, key, raw)
		}
	}

	ctx.JSON(http.StatusOK, payload)
}
