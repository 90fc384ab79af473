package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tournament_market/internal/config"
	"tournament_market/internal/db"
	httpServer "tournament_market/internal/http"
	"tournament_market/internal/http/handlers"
	"tournament_market/internal/http/middleware"
	"tournament_market/internal/logger"
	"tournament_market/internal/notify"
	"tournament_market/internal/repository"
	"tournament_market/internal/scheduler"
	"tournament_market/internal/service"
	"tournament_market/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx := context.Background()
	dbPool := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	defer dbPool.Close()
	st := repository.NewPgStore(dbPool)

	redisClient := notify.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if redisClient != nil {
		defer redisClient.Close()
	}

	hub := ws.NewHub()
	sink := notify.Multi{notify.LogSink{}, hub}
	if redisClient != nil {
		sink = append(sink, notify.NewRedisSink(redisClient, cfg.EventsChannel))
	}

	tokens, err := service.NewTokens(cfg.JWTSecret, nil)
	if err != nil {
		logger.Fatal("jwt", "error", err)
	}
	ledger := service.NewLedger(st, sink, nil)
	ledger.CommissionPercent = cfg.WithdrawalCommissionPercent
	tournaments := service.NewTournamentService(st, ledger, sink, nil)
	tournaments.JoinRetries = cfg.JoinMaxRetries

	sweeper := service.NewSweeper(st, sink, nil)
	sweeper.BatchSize = cfg.SweepBatchSize
	sched, err := scheduler.NewGocron()
	if err != nil {
		logger.Fatal("scheduler", "error", err)
	}
	if err := sweeper.Register(sched, cfg.SweepInterval, cfg.TTLBackfillInterval); err != nil {
		logger.Fatal("register jobs", "error", err)
	}
	// clear whatever expired while the process was down
	if err := sweeper.StartAggressive(sched); err != nil {
		logger.Warn("aggressive cleanup not scheduled", "error", err)
	}
	sched.Start()

	deps := []handlers.Dependency{{Name: "store", Ping: st.Ping, Required: true}}
	if redisClient != nil {
		deps = append(deps, handlers.Dependency{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Config:      cfg,
		Tournaments: tournaments,
		Ledger:      ledger,
		Tokens:      tokens,
		Hub:         hub,
		Limiter:     middleware.NewRateLimiter(redisClient),
		Health:      handlers.NewHealthHandler(version, deps...),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := sched.Stop(); err != nil {
		logger.Error("scheduler shutdown", "error", err)
	}

	logger.Info("server exited")
}
