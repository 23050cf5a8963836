package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Varun5711/shortqr/internal/analytics"
	"github.com/Varun5711/shortqr/internal/auth"
	"github.com/Varun5711/shortqr/internal/background"
	"github.com/Varun5711/shortqr/internal/bootstrap"
	"github.com/Varun5711/shortqr/internal/clickhouse"
	"github.com/Varun5711/shortqr/internal/config"
	"github.com/Varun5711/shortqr/internal/enrichment"
	"github.com/Varun5711/shortqr/internal/handlers"
	"github.com/Varun5711/shortqr/internal/idgen"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/middleware"
	"github.com/Varun5711/shortqr/internal/qrworker"
	"github.com/Varun5711/shortqr/internal/queue"
	"github.com/Varun5711/shortqr/internal/redis"
	"github.com/Varun5711/shortqr/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("server").Fatal("Failed to load config: %v", err)
	}

	log := bootstrap.NewLogger("server", cfg.Log)
	defer log.Sync()
	log.SetStdLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("%v", err)
	}
	defer stores.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, continuing without it: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	codes, err := idgen.NewSource(cfg.Codes.Strategy, cfg.Codes.Length, cfg.Codes.DatacenterID, cfg.Codes.WorkerID)
	if err != nil {
		log.Fatal("Invalid code strategy: %v", err)
	}

	geo, err := enrichment.LoadGeoIPFile(cfg.Services.GeoIPFile)
	if err != nil {
		log.Fatal("Failed to load GeoIP table: %v", err)
	}

	var recorder analytics.Recorder = stores.Clicks
	if cfg.ClickHouse.Enabled {
		ch, err := openClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			log.Warn("ClickHouse mirror disabled: %v", err)
		} else {
			defer ch.Close()
			recorder = analytics.NewMultiRecorder(log, stores.Clicks, ch).WithMirrorTimeout(cfg.ClickHouse.WriteTimeout)
			log.Info("Mirroring click events to ClickHouse at %s", cfg.ClickHouse.Addr)
		}
	}

	runner := background.NewRunner(cfg.Async.MaxInFlight, cfg.Async.TaskTimeout, log)
	linkCache := bootstrap.NewLinkCache(cfg.Cache, rdb)

	var jobs service.JobQueue
	if rdb != nil {
		jobs = queue.NewProducer(rdb, cfg.Queue.Stream, cfg.Queue.MaxLen)
	} else {
		log.Warn("No job stream, generating QR codes in-process")
		jobs = qrworker.NewInline(qrworker.NewProcessor(stores.Links, linkCache, log), runner).
			WithRetry(cfg.Queue.MaxAttempts, cfg.Queue.RetryDelay)
	}

	links := service.NewLinkService(service.Deps{
		Store:       stores.Links,
		Cache:       linkCache,
		Queue:       jobs,
		Codes:       codes,
		Runner:      runner,
		Recorder:    recorder,
		Analytics:   analytics.NewService(stores.Clicks),
		Geo:         geo,
		BaseURL:     cfg.Services.BaseURL,
		MaxAttempts: cfg.Codes.MaxAttempts,
		Log:         log,
	})

	mux := http.NewServeMux()
	router := &handlers.Router{
		Links:     handlers.NewLinkHandler(links, cfg.Services.BaseURL, log),
		Analytics: handlers.NewAnalyticsHandler(links, log),
		Redirect:  handlers.NewRedirectHandler(links, log),
		Health:    newHealthHandler(stores, rdb),
		Auth:      middleware.NewAuth(auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration), log),
	}
	router.Register(mux)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Services.HTTPPort,
		Handler: middleware.Chain(mux,
			middleware.Recovery(log),
			middleware.AccessLog(log),
			limiter.Middleware,
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Listening on :%s (base URL %s)", cfg.Services.HTTPPort, cfg.Services.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Services.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed: %v", err)
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		log.Warn("Background tasks still running at exit: %v", err)
	}
	if n := runner.Dropped(); n > 0 {
		log.Warn("Dropped %d background tasks while saturated", n)
	}
	if n := runner.Failed(); n > 0 {
		log.Info("%d background tasks failed during this run", n)
	}
}

func openClickHouse(ctx context.Context, cfg config.ClickHouseConfig) (*clickhouse.Client, error) {
	ch, err := clickhouse.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := ch.EnsureSchema(ctx); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

func newHealthHandler(stores *bootstrap.Stores, rdb *goredis.Client) *handlers.HealthHandler {
	checks := map[string]handlers.Pinger{"store": stores.Links}
	if rdb != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	h := handlers.NewHealthHandler(checks)
	if stores.DB != nil {
		h.WithPool("postgres", func() interface{} { return stores.DB.Stats() })
	}
	if rdb != nil {
		h.WithPool("redis", func() interface{} { return redis.Stats(rdb) })
	}
	return h
}
