package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"datagen/application/generate"
	"datagen/application/health"
	"datagen/application/vocabulary"
	"datagen/common"
	"datagen/internal/stream"
	"datagen/middleware"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	if cfg.MemoryLimitMB > 0 {
		debug.SetMemoryLimit(int64(cfg.MemoryLimitMB) * 1024 * 1024)
	}

	z := NewLogger(cfg.LogDevelopment)
	defer z.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vocabDB, err := setupVocabularyDatabase(cfg.Vocab)
	if err != nil {
		z.Fatal("Failed to setup vocabulary database", zap.Error(err))
	}

	vocabRepo := vocabulary.NewRepository(vocabDB)
	if err := vocabulary.EnsureSeeded(ctx, vocabRepo, cfg.Vocab.Seed, cfg.Vocab.PoolSize, z); err != nil {
		z.Fatal("Failed to seed vocabulary", zap.Error(err))
	}
	pools, err := vocabRepo.LoadPools(ctx)
	if err != nil {
		z.Fatal("Failed to load vocabulary", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := stream.NewMetrics(reg)

	gen, err := stream.NewGenerator(cfg.Stream, pools, metrics, z)
	if err != nil {
		z.Fatal("Failed to create generator", zap.Error(err))
	}

	r := SetupRouter(cfg, z, vocabDB, gen, metrics, reg)

	// No WriteTimeout: a stream runs for as long as the client keeps reading.
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 55 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	memMonitorDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				z.Debug("📊 Resource Monitor",
					zap.Uint64("alloc_mb", m.Alloc/(1024*1024)),
					zap.Uint64("sys_mb", m.Sys/(1024*1024)),
					zap.Uint32("gc_count", m.NumGC),
					zap.Int("goroutines", runtime.NumGoroutine()),
					zap.Int("cpu_cores", runtime.GOMAXPROCS(0)),
					zap.Int("workers", gen.GetConfig().Workers),
				)
			case <-memMonitorDone:
				return
			}
		}
	}()

	go func() {
		z.Info("🚀 Server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			z.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	z.Info("🛑 Shutting down server...")
	close(memMonitorDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		z.Warn("Shutdown incomplete", zap.Error(err))
	}
}

func NewLogger(development bool) *zap.Logger {
	var zapLogger *zap.Logger
	var err error

	if development {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}

	if err != nil {
		panic(err)
	}

	return zapLogger
}

func setupVocabularyDatabase(cfg common.VocabularyConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "mysql":
		if cfg.Host == "" || cfg.User == "" || cfg.Name == "" {
			return nil, fmt.Errorf("missing required vocabulary database environment variables")
		}
		db, err = gorm.Open(mysql.Open(cfg.MySQLDSN()), gormCfg)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect vocabulary database: %w", err)
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping vocabulary database: %w", err)
	}

	// The vocabulary is read once at startup; a small pool is enough.
	// In-memory sqlite lives only as long as a connection does, so those
	// connections are never recycled.
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	if cfg.Driver == "mysql" {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

func SetupRouter(cfg common.Config, z *zap.Logger, vocabDB *gorm.DB, gen *stream.Generator, metrics *stream.Metrics, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestInit())
	r.Use(middleware.ResponseInit(z, cfg.GzipEnabled))

	registry := generate.NewRegistry()

	// Health endpoint (monitors the vocabulary database)
	healthRepo := health.NewRepository(vocabDB)
	healthSvc := health.NewService(healthRepo, registry)
	healthHandler := health.NewHandler(healthSvc)

	generateSvc := generate.NewService(gen, registry, metrics, z)
	generateHandler := generate.NewHandler(generateSvc)

	// Register routes
	api := r.Group("")
	healthHandler.RegisterRoutes(api)
	generateHandler.RegisterRoutes(api)
	api.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}
