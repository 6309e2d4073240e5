package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"wealthdesk/internal/client/orderbook"
	"wealthdesk/internal/config"
	cronrunner "wealthdesk/internal/cron"
	"wealthdesk/internal/db"
	"wealthdesk/internal/handler"
	"wealthdesk/internal/logger"
	"wealthdesk/internal/repository"
	gormrepository "wealthdesk/internal/repository/gorm"
	memoryrepository "wealthdesk/internal/repository/memory"
	"wealthdesk/internal/service"
)

func main() {
	cfgPath := os.Getenv("WD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("WD_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var store repository.Repository
	var gormDB *db.DB
	if strings.EqualFold(cfg.App.Storage, "memory") {
		store = memoryrepository.New()
		logger.Info("using in-memory plan store")
	} else {
		gormDB, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(gormDB)
		if err := db.SetTimezone(gormDB, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(gormDB); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store = gormrepository.New(gormDB.Gorm)
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Warn("invalid scheduler timezone, falling back to UTC",
			zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
		loc = time.UTC
	}

	var gateway orderbook.Gateway
	if cfg.OrderBook.Simulate {
		gateway = orderbook.NewSimulator(cfg.OrderBook.SimulateSuccessRate, time.Now().UnixNano())
		logger.Info("using simulated execution gateway",
			zap.Float64("success_rate", cfg.OrderBook.SimulateSuccessRate))
	} else {
		httpClient := &http.Client{Timeout: cfg.OrderBook.Timeout}
		gateway = orderbook.NewClient(httpClient, cfg.OrderBook.BaseURL)
	}

	lifecycle := &service.PlanLifecycleService{
		Repo:       store,
		Logger:     logger,
		Location:   loc,
		MaxRetries: cfg.Scheduler.MaxRetries,
	}
	scheduler := &service.SchedulerService{
		Repo:      store,
		Lifecycle: lifecycle,
		Gateway:   gateway,
		Logger:    logger,
		Config:    cfg.Scheduler,
		Location:  loc,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{}
	if gormDB != nil {
		healthHandler.DB = gormDB.Gorm
	}
	healthHandler.Register(engine)

	planHandler := &handler.PlanHandler{Repo: store, Lifecycle: lifecycle}
	planHandler.Register(engine)
	schedulerHandler := &handler.SchedulerHandler{Repo: store, Scheduler: scheduler}
	schedulerHandler.Register(engine)
	schemeHandler := &handler.SchemeHandler{Repo: store}
	schemeHandler.Register(engine)
	clientHandler := &handler.ClientHandler{Repo: store}
	clientHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.DailyRun, func(ctx context.Context) {
			logs, err := scheduler.ProcessToday(ctx)
			if err != nil {
				logger.Warn("cron daily run failed", zap.Error(err))
				return
			}
			logger.Info("cron daily run ok", zap.Int("attempted", len(logs)))
		})
		if err != nil {
			logger.Warn("cron register daily run failed", zap.Error(err))
		}

		_, err = cronRunner.Add(cfg.Cron.RetrySweep, func(ctx context.Context) {
			logs, err := scheduler.RetryFailedExecutions(ctx)
			if err != nil {
				logger.Warn("cron retry sweep failed", zap.Error(err))
				return
			}
			if len(logs) > 0 {
				logger.Info("cron retry sweep ok", zap.Int("attempted", len(logs)))
			}
		})
		if err != nil {
			logger.Warn("cron register retry sweep failed", zap.Error(err))
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
