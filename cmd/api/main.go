package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tattooz/internal/generator"
	"tattooz/internal/history"
	"tattooz/internal/http/handlers"
	httpapi "tattooz/internal/http/httpapi"
	"tattooz/internal/imagegen"
	"tattooz/internal/infra"
	"tattooz/internal/infra/geoip"
	"tattooz/internal/metrics"
	"tattooz/internal/storage"
	"tattooz/internal/throttle"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	rec := metrics.New()

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer geo.Close()

	var limiter throttle.Throttle = throttle.NewMemory(cfg.MinRequestInterval)
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if rdb != nil {
		defer rdb.Close()
		limiter = throttle.NewRedis(rdb, cfg.MinRequestInterval)
		logger.Info().Msg("throttle backed by redis")
	}

	var store history.Store = history.NewMemory(history.MaxLimit)
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if dbpool != nil {
		defer dbpool.Close()
		pg := history.NewPostgres(infra.NewSQLRunner(dbpool, &logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare history schema")
		}
		store = pg
	}

	app := &handlers.App{
		Throttle:      limiter,
		ThrottleScope: cfg.ThrottleScope,
		History:       store,
		Metrics:       rec,
		Logger:        &logger,
		NumImages:     cfg.NumImages,
		MaxImages:     cfg.MaxImages,
	}
	if cfg.StoragePath != "" {
		files, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare storage")
		}
		app.Archive = storage.NewBatchArchive(files)
	}

	client := imagegen.NewClient(imagegen.Options{
		AccountID: cfg.CloudflareAccountID,
		APIToken:  cfg.CloudflareAPIToken,
		BaseURL:   cfg.CloudflareBaseURL,
		Model:     cfg.CloudflareModel,
		Timeout:   cfg.ImageTimeout,
		Logger:    &logger,
		Observer:  rec,
	})
	app.Generator = generator.New(client, generator.Options{
		Strategy:           generator.ParseStrategy(cfg.GenerationStrategy),
		SequentialDelay:    orNone(cfg.SequentialDelay),
		SequentialAttempts: cfg.SequentialAttempts,
		ParallelStagger:    orNone(cfg.ParallelStagger),
		ParallelAttempts:   cfg.ParallelAttempts,
		MaxParallel:        cfg.MaxParallel,
		InitialBackoff:     cfg.InitialBackoff,
		Logger:             &logger,
		Observer:           rec,
	})

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          &logger,
		Metrics:         rec,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   geo.Lookup(),
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("strategy", cfg.GenerationStrategy).
			Str("model", client.Model()).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// orNone maps an explicit zero delay from the environment to "no delay"; the
// orchestrator reads zero as "use the default".
func orNone(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
