package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spendly/spendly/internal/cache"
	"github.com/spendly/spendly/internal/domain/expense"
	"github.com/spendly/spendly/internal/http/handlers"
)

// Fake repository implementation of the handlers.StatsReader interface

type fakeStatsRepo struct {
	categoryFn func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error)
	monthlyFn  func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.MonthStat, error)
}

func (f *fakeStatsRepo) CategoryStats(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
	if f.categoryFn != nil {
		return f.categoryFn(ctx, userID, dr)
	}
	return []expense.CategoryStat{}, nil
}

func (f *fakeStatsRepo) MonthlyStats(ctx context.Context, userID string, dr expense.DateRange) ([]expense.MonthStat, error) {
	if f.monthlyFn != nil {
		return f.monthlyFn(ctx, userID, dr)
	}
	return []expense.MonthStat{}, nil
}

type statsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		CategoryStats []expense.CategoryStat `json:"categoryStats"`
		MonthlyStats  []expense.MonthStat    `json:"monthlyStats"`
		DateRange     expense.DateRange      `json:"dateRange"`
	} `json:"data"`
}

func TestGetStatsHandler(t *testing.T) {
	callerID := newUUID()

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeStatsRepo)
		wantStatusCode int
		wantMonthly    bool
	}{
		{
			name: "year_range_includes_monthly_breakdown",
			url:  "/expenses/stats?year=2025",
			repoSetup: func(f *fakeStatsRepo) {
				f.categoryFn = func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
					if dr.Start.Year() != 2025 || dr.Start.Month() != time.January {
						return nil, errors.New("range should start at the beginning of the year")
					}
					return []expense.CategoryStat{
						{Category: expense.CategoryFood, TotalAmount: 12000, Count: 4, AverageAmount: 30},
					}, nil
				}
				f.monthlyFn = func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.MonthStat, error) {
					return []expense.MonthStat{
						{Year: 2025, Month: 1, TotalAmount: 12000, Count: 4},
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantMonthly:    true,
		},
		{
			name: "single_month_skips_monthly_breakdown",
			url:  "/expenses/stats?year=2025&month=3",
			repoSetup: func(f *fakeStatsRepo) {
				f.categoryFn = func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
					if dr.Start.Month() != time.March || dr.End.Month() != time.March {
						return nil, errors.New("range should cover March only")
					}
					return []expense.CategoryStat{
						{Category: expense.CategoryFood, TotalAmount: 4550, Count: 1, AverageAmount: 45.5},
					}, nil
				}
				f.monthlyFn = func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.MonthStat, error) {
					return nil, errors.New("monthly stats should not be queried for a single month")
				}
			},
			wantStatusCode: http.StatusOK,
			wantMonthly:    false,
		},
		{
			name:           "invalid_year",
			url:            "/expenses/stats?year=twenty",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "month_out_of_range",
			url:            "/expenses/stats?year=2025&month=13",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			url:  "/expenses/stats",
			repoSetup: func(f *fakeStatsRepo) {
				f.categoryFn = func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
					return nil, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeStatsRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewStatsHandler(repo, nil, discardLogger())
			r := setupRouter(http.MethodGet, "/expenses/stats", callerID, h.GetStats)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp statsResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}

				if resp.Data.CategoryStats == nil {
					t.Fatalf("categoryStats missing from response")
				}
				if resp.Data.MonthlyStats == nil {
					t.Fatalf("monthlyStats should be an empty array, not null")
				}
				if tt.wantMonthly != (len(resp.Data.MonthlyStats) > 0) {
					t.Fatalf("monthly breakdown presence wrong: %+v", resp.Data)
				}
			}
		})
	}
}

func TestGetStatsCacheHitSkipsRepo(t *testing.T) {
	callerID := newUUID()
	calls := 0

	repo := &fakeStatsRepo{
		categoryFn: func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
			calls++
			return []expense.CategoryStat{
				{Category: expense.CategoryFood, TotalAmount: 4550, Count: 1, AverageAmount: 45.5},
			}, nil
		},
	}

	h := handlers.NewStatsHandler(repo, cache.NewMemory(30*time.Second), discardLogger())
	r := setupRouter(http.MethodGet, "/expenses/stats", callerID, h.GetStats)

	// first request misses and fills the cache
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=3", nil))

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d, body=%s", w1.Code, w1.Body.String())
	}

	// second request must be served from cache
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=3", nil))

	if w2.Code != http.StatusOK {
		t.Fatalf("second call got %d, body=%s", w2.Code, w2.Body.String())
	}

	if calls != 1 {
		t.Fatalf("expected repo calls=1, got %d", calls)
	}

	if w1.Body.String() != w2.Body.String() {
		t.Fatalf("cached response differs from the original")
	}
}

func TestGetStatsCacheDistinguishesYearFromJanuary(t *testing.T) {
	callerID := newUUID()

	// the year-wide and January ranges share a start date; the responses
	// must still be cached separately
	repo := &fakeStatsRepo{
		categoryFn: func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
			if dr.MultiMonth() {
				return []expense.CategoryStat{
					{Category: expense.CategoryFood, TotalAmount: 12000, Count: 4, AverageAmount: 30},
					{Category: expense.CategoryHousing, TotalAmount: 240000, Count: 2, AverageAmount: 1200},
				}, nil
			}
			return []expense.CategoryStat{
				{Category: expense.CategoryFood, TotalAmount: 4550, Count: 1, AverageAmount: 45.5},
			}, nil
		},
		monthlyFn: func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.MonthStat, error) {
			return []expense.MonthStat{
				{Year: 2025, Month: 1, TotalAmount: 12000, Count: 4},
			}, nil
		},
	}

	h := handlers.NewStatsHandler(repo, cache.NewMemory(30*time.Second), discardLogger())
	r := setupRouter(http.MethodGet, "/expenses/stats", callerID, h.GetStats)

	wYear := httptest.NewRecorder()
	r.ServeHTTP(wYear, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025", nil))

	if wYear.Code != http.StatusOK {
		t.Fatalf("year call got %d, body=%s", wYear.Code, wYear.Body.String())
	}

	wJan := httptest.NewRecorder()
	r.ServeHTTP(wJan, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=1", nil))

	if wJan.Code != http.StatusOK {
		t.Fatalf("january call got %d, body=%s", wJan.Code, wJan.Body.String())
	}

	var resp statsResponse
	if err := json.Unmarshal(wJan.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if len(resp.Data.CategoryStats) != 1 {
		t.Fatalf("january response served the year-wide payload: %+v", resp.Data)
	}
	if len(resp.Data.MonthlyStats) != 0 {
		t.Fatalf("single-month response should not carry a monthly breakdown: %+v", resp.Data)
	}
	if resp.Data.DateRange.End.Month() != time.January {
		t.Fatalf("got range end %v, want January", resp.Data.DateRange.End)
	}

	// and the reverse order must not serve January data for the year
	h2 := handlers.NewStatsHandler(repo, cache.NewMemory(30*time.Second), discardLogger())
	r2 := setupRouter(http.MethodGet, "/expenses/stats", callerID, h2.GetStats)

	w1 := httptest.NewRecorder()
	r2.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=1", nil))

	w2 := httptest.NewRecorder()
	r2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025", nil))

	if w2.Code != http.StatusOK {
		t.Fatalf("year call got %d, body=%s", w2.Code, w2.Body.String())
	}

	var yearResp statsResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &yearResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if len(yearResp.Data.CategoryStats) != 2 || len(yearResp.Data.MonthlyStats) != 1 {
		t.Fatalf("year response served the january payload: %+v", yearResp.Data)
	}
}

func TestGetStatsInvalidateDropsCache(t *testing.T) {
	callerID := newUUID()
	calls := 0

	repo := &fakeStatsRepo{
		categoryFn: func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
			calls++
			return []expense.CategoryStat{}, nil
		},
	}

	h := handlers.NewStatsHandler(repo, cache.NewMemory(30*time.Second), discardLogger())
	r := setupRouter(http.MethodGet, "/expenses/stats", callerID, h.GetStats)

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=3", nil))

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d, body=%s", w1.Code, w1.Body.String())
	}

	h.Invalidate(context.Background(), callerID)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=3", nil))

	if w2.Code != http.StatusOK {
		t.Fatalf("second call got %d, body=%s", w2.Code, w2.Body.String())
	}

	if calls != 2 {
		t.Fatalf("expected repo to be queried again after invalidation, got %d calls", calls)
	}
}

func TestGetStatsCacheIsPerUser(t *testing.T) {
	userA := newUUID()
	userB := newUUID()
	seen := map[string]int{}

	repo := &fakeStatsRepo{
		categoryFn: func(ctx context.Context, userID string, dr expense.DateRange) ([]expense.CategoryStat, error) {
			seen[userID]++
			return []expense.CategoryStat{}, nil
		},
	}

	h := handlers.NewStatsHandler(repo, cache.NewMemory(30*time.Second), discardLogger())

	rA := setupRouter(http.MethodGet, "/expenses/stats", userA, h.GetStats)
	rB := setupRouter(http.MethodGet, "/expenses/stats", userB, h.GetStats)

	wA := httptest.NewRecorder()
	rA.ServeHTTP(wA, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=3", nil))

	wB := httptest.NewRecorder()
	rB.ServeHTTP(wB, httptest.NewRequest(http.MethodGet, "/expenses/stats?year=2025&month=3", nil))

	if wA.Code != http.StatusOK || wB.Code != http.StatusOK {
		t.Fatalf("got %d and %d", wA.Code, wB.Code)
	}

	if seen[userA] != 1 || seen[userB] != 1 {
		t.Fatalf("expected one repo call per user, got %v", seen)
	}
}
