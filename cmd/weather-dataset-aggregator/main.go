package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/weather-dataset-aggregator/internal/api/http"
	"github.com/i474232898/weather-dataset-aggregator/internal/config"
	"github.com/i474232898/weather-dataset-aggregator/internal/logger"
	"github.com/i474232898/weather-dataset-aggregator/internal/metrics"
	"github.com/i474232898/weather-dataset-aggregator/internal/scheduler"
	"github.com/i474232898/weather-dataset-aggregator/internal/store"
	"github.com/i474232898/weather-dataset-aggregator/internal/weather"
	"github.com/i474232898/weather-dataset-aggregator/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.ResolveLocation(); err != nil {
		log.Fatal().Err(err).Msg("failed to resolve location")
	}

	// Metrics registry shared by the aggregator and /metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	transport := providers.NewOpenMeteoTransport(httpClient, providers.OpenMeteoOptions{
		RequestsPerSecond: cfg.UpstreamRPS,
		Burst:             cfg.UpstreamBurst,
		Logger:            logger.Component(log, "openmeteo"),
	})

	log.Info().Str("provider", transport.Name()).Str("base_url", cfg.BaseURL).Msg("upstream transport configured")

	// In-memory response history with configured retention.
	history := store.NewMemoryStore(cfg.HistoryMax, cfg.HistoryMaxAge)

	agg := weather.NewAggregator(transport, weather.Config{
		BaseURL:      cfg.BaseURL,
		Location:     cfg.WeatherLocation(),
		SettleWindow: cfg.SettleWindow,
		FetchTimeout: cfg.FetchTimeout,
	},
		weather.WithLogger(logger.Component(log, "aggregator")),
		weather.WithMetrics(metrics.New(reg)),
		weather.WithSink(history),
	)
	defer agg.Close()

	for _, key := range cfg.Warmup {
		agg.Register(key, cfg.DefaultRange)
	}
	if len(cfg.Warmup) > 0 {
		log.Info().Int("datasets", len(cfg.Warmup)).Str("range", cfg.DefaultRange.String()).Msg("warm-up datasets registered")
	}

	// Optional periodic refresh of the whole ledger.
	sched := scheduler.New(agg, cfg.RefreshInterval, logger.Component(log, "scheduler"))
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-dataset-aggregator",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-dataset-aggregator",
			"state":   agg.Status().State,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Aggregator:   agg,
		History:      history,
		DefaultRange: cfg.DefaultRange,
		Logger:       logger.Component(log, "http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Closing the aggregator first ends open event streams.
	agg.Close()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
