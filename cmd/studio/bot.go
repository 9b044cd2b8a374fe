package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"portrait-studio/internal/handlers"
	"portrait-studio/internal/mediagroup"
	"portrait-studio/internal/session"
	"portrait-studio/internal/telegram"
	"portrait-studio/internal/upload"
)

const telegramSurface = "telegram"

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the upload widget as a Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return runBot(cmd.Context(), a)
		},
	}
}

func runBot(parent context.Context, a *app) error {
	cfg := a.cfg
	logger := a.logger

	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	tg, err := telegram.New(telegram.Options{
		Token:            cfg.TelegramToken,
		HTTPClient:       a.httpClient,
		Logger:           logger,
		Debug:            cfg.Debug,
		MaxDownloadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	sessions := session.NewStore(session.Options{
		MaxSessions: cfg.MaxSessions,
		IdleTTL:     cfg.SessionIdle,
		NewWidget: func() *upload.Widget {
			return upload.New(upload.Options{Provider: a.registry, Logger: logger})
		},
		OnOpen:  func(session.Key) { a.metrics.WidgetOpened(telegramSurface) },
		OnClose: func(session.Key) { a.metrics.WidgetClosed(telegramSurface) },
	})
	defer sessions.Shutdown()

	handler := handlers.New(handlers.Options{
		Telegram:       tg,
		Sessions:       sessions,
		Registry:       a.registry,
		Generator:      a.generator,
		Metrics:        a.metrics,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	run := func(fn func(ctx context.Context)) bool {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return false
		}
		if ctx.Err() != nil {
			<-sem
			return false
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
			fn(reqCtx)
		}()
		return true
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush: func(group mediagroup.Group) {
			run(func(ctx context.Context) { handler.HandleMediaGroup(ctx, group) })
		},
	})
	defer aggregator.Stop()
	handler.SetMediaGroupAggregator(aggregator)

	g, gctx := errgroup.WithContext(ctx)

	if h := a.metricsHandler(); h != nil {
		r := chi.NewRouter()
		r.Handle("/metrics", h)
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		metricsSrv := &http.Server{
			Addr:              cfg.WebAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		logger.Info("bot started", "username", tg.Username())

		updates := tg.Updates(telegram.UpdatesOptions{
			Timeout: 30 * time.Second,
		})
		defer tg.StopUpdates()

		for {
			select {
			case <-gctx.Done():
				logger.Info("shutting down")
				return nil
			case update, ok := <-updates:
				if !ok {
					logger.Info("updates channel closed")
					return nil
				}

				if !run(func(ctx context.Context) {
					if err := handler.HandleUpdate(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("handle update failed", "err", err)
					}
				}) {
					return nil
				}
			}
		}
	})

	return g.Wait()
}
