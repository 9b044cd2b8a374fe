package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portrait-studio/internal/config"
	"portrait-studio/internal/gemini"
	"portrait-studio/internal/handle"
	"portrait-studio/internal/httpclient"
	"portrait-studio/internal/metrics"
	"portrait-studio/internal/portrait"
)

// app holds what both surfaces share.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	httpClient *http.Client
	promReg    *prometheus.Registry
	metrics    *metrics.Metrics
	registry   *handle.Registry
	generator  portrait.Generator
}

func newApp() (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		UserAgent:  "portrait-studio/" + version,
	})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	registry := handle.NewRegistry(handle.Options{OnChange: m.SetLiveHandles})

	var generator portrait.Generator = portrait.Unavailable{}
	if cfg.GeminiAPIKey != "" {
		gem := gemini.New(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiAPIVersion,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		generator = portrait.NewService(portrait.ServiceOptions{Editor: gem, Logger: logger})
	} else {
		logger.Warn("GEMINI_API_KEY is empty, portrait generation is disabled")
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		httpClient: httpClient,
		promReg:    promReg,
		metrics:    m,
		registry:   registry,
		generator:  generator,
	}, nil
}

// metricsHandler returns nil when metrics are disabled.
func (a *app) metricsHandler() http.Handler {
	if !a.cfg.MetricsEnabled {
		return nil
	}
	return promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{})
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
