package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/spendly/spendly/internal/auth"
	"github.com/spendly/spendly/internal/cache"
	"github.com/spendly/spendly/internal/config"
	"github.com/spendly/spendly/internal/domain/user"
	"github.com/spendly/spendly/internal/http/handlers"
	"github.com/spendly/spendly/internal/http/middlewares"
	"github.com/spendly/spendly/internal/observability"
	"github.com/spendly/spendly/internal/repo/postgres"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(
	cfg config.Config,
	log *slog.Logger,
	pool *pgxpool.Pool,
	prom *observability.Prom,
	statsCache cache.StatsCache,
) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware chain, outermost first

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("spendly-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	// health + metrics
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	expensesRepo := postgres.NewExpensesRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL)
	authMW := middlewares.NewAuthMiddleware(jwtManager, usersRepo)

	authHandler := handlers.NewAuthHandler(usersRepo, jwtManager, log)
	statsHandler := handlers.NewStatsHandler(expensesRepo, statsCache, log)
	expensesHandler := handlers.NewExpensesHandler(expensesRepo, statsHandler, log)
	adminHandler := handlers.NewAdminHandler(usersRepo, log)

	// brute-force protection on the credential endpoints
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Register)
		authGroup.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)

		authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)
		authGroup.PUT("/updatedetails", authMW.RequireAuth(), authHandler.UpdateDetails)
		authGroup.PUT("/updatepassword", authMW.RequireAuth(), authHandler.UpdatePassword)
		authGroup.POST("/logout", authMW.RequireAuth(), authHandler.Logout)
	}

	expensesGroup := r.Group("/expenses", authMW.RequireAuth())
	{
		expensesGroup.GET("", expensesHandler.ListExpenses)
		expensesGroup.POST("", expensesHandler.CreateExpense)
		expensesGroup.POST("/bulk", expensesHandler.BulkCreateExpenses)
		expensesGroup.GET("/stats", statsHandler.GetStats)
		expensesGroup.GET("/:id", expensesHandler.GetExpense)
		expensesGroup.PUT("/:id", expensesHandler.UpdateExpense)
		expensesGroup.DELETE("/:id", expensesHandler.DeleteExpense)
	}

	adminGroup := r.Group("/admin", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	{
		adminGroup.GET("/users", adminHandler.ListUsers)
	}

	return r
}
