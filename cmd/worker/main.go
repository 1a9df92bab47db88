package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spendly/spendly/internal/config"
	"github.com/spendly/spendly/internal/db"
	"github.com/spendly/spendly/internal/observability"
	"github.com/spendly/spendly/internal/recurring"
	"github.com/spendly/spendly/internal/repo/postgres"
	"github.com/spendly/spendly/internal/worker"
)

func main() {
	cfg := config.Load()

	logger := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	expensesRepo := postgres.NewExpensesRepo(pool, prom)

	p := recurring.New(recurring.Config{
		PollInterval: cfg.RecurringPoll,
		BatchSize:    200,
	}, expensesRepo, logger, prom)

	var shuttingDown atomic.Bool

	probes := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.WorkerPort),
		Handler:           worker.HealthHandler(pool, shuttingDown.Load),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := probes.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("probe server failed", "err", err)
		}
	}()

	logger.Info("recurring worker started", "poll_interval", cfg.RecurringPoll.String(), "probe_port", cfg.WorkerPort)

	if err := p.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "err", err)
	}

	shuttingDown.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := probes.Shutdown(shutdownCtx); err != nil {
		logger.Error("probe server shutdown failed", "err", err)
	}

	logger.Info("worker shutdown complete")
}
