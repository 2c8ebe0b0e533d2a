package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"shopcrawler/internal/api"
	"shopcrawler/internal/config"
	"shopcrawler/internal/database"
	"shopcrawler/internal/fetcher"
	"shopcrawler/internal/identity"
	"shopcrawler/internal/jobs"
	"shopcrawler/internal/queue"
	"shopcrawler/internal/scrape"
	"shopcrawler/internal/selectors"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	sel := selectors.Default()
	if err := sel.Validate(); err != nil {
		logger.Error("invalid selector set", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := database.NewRecordStore(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis-backed task queue
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "shopcrawler"
	}
	taskQueue := queue.New(redisClient, cfg.Redis.Stream, cfg.Redis.Group, hostname, logger)
	if err := taskQueue.Ensure(ctx); err != nil {
		logger.Error("failed to prepare task queue", "error", err)
		os.Exit(1)
	}

	// Fetch identity: default browser headers, plus Tor rotation when
	// enabled.
	headers := identity.DefaultHeaders(cfg.Fetcher.Referer)
	var rotator identity.Rotator
	if cfg.Tor.Enabled {
		rotator = identity.NewTorRotator(cfg.Tor.SocksAddr, cfg.Tor.ControlAddr, cfg.Tor.Password, cfg.Tor.SettleDelay)
		logger.Info("tor identity rotation enabled", "socks", cfg.Tor.SocksAddr)
	}

	metrics := fetcher.NewMetrics()
	f, err := fetcher.New(fetcher.Config{
		PaceMin:       cfg.Fetcher.PaceMin,
		PaceMax:       cfg.Fetcher.PaceMax,
		CooldownMin:   cfg.Fetcher.CooldownMin,
		CooldownMax:   cfg.Fetcher.CooldownMax,
		MaxRetries:    cfg.Fetcher.MaxRetries,
		BackoffBase:   cfg.Fetcher.BackoffBase,
		Timeout:       cfg.Fetcher.Timeout,
		RotateOnBlock: cfg.Fetcher.RotateOnBlock,
		BotPhrases:    cfg.Fetcher.BotPhrases,
	}, headers, rotator, metrics, logger)
	if err != nil {
		logger.Error("failed to initialize fetcher", "error", err)
		os.Exit(1)
	}

	scrapeService, err := scrape.NewService(f, sel, cfg.Fetcher.BaseOrigin, logger)
	if err != nil {
		logger.Error("failed to initialize scrape service", "error", err)
		os.Exit(1)
	}

	jobManager := jobs.NewManager(taskQueue, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		MaxAttempts:  cfg.Crawl.MaxAttempts,
		BackoffStep:  cfg.Crawl.BackoffStep,
		BackoffMax:   cfg.Crawl.BackoffMax,
		SeenCacheLen: cfg.Crawl.SeenCacheLen,
	}, scrapeService, taskQueue, store, jobManager, logger)
	if err != nil {
		logger.Error("failed to initialize worker", "error", err)
		os.Exit(1)
	}
	go worker.Run(ctx)

	handlers := api.NewHandlers(scrapeService, jobManager, store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ok"
		code := http.StatusOK
		if err := redisClient.Ping(req.Context()).Err(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q}`, status)
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape/search", handlers.ScrapeSearch)
		r.Post("/scrape/product", handlers.ScrapeProduct)

		r.Post("/jobs", handlers.CreateJob)
		r.Get("/jobs", handlers.ListJobs)
		r.Get("/jobs/{jobID}", handlers.GetJob)
		r.Get("/jobs/{jobID}/counts", handlers.GetJobCounts)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr, "base_origin", cfg.Fetcher.BaseOrigin)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
