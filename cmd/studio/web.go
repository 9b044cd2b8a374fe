package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"portrait-studio/internal/web"
)

func webCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the upload widget in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.WebAddr = addr
			}
			return runWeb(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides WEB_ADDR)")
	return cmd
}

func runWeb(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := web.New(web.Options{
		Registry:        a.registry,
		Generator:       a.generator,
		Metrics:         a.metrics,
		Logger:          a.logger,
		MetricsHandler:  a.metricsHandler(),
		MaxUploadBytes:  a.cfg.MaxUploadBytes,
		ReadTimeout:     a.cfg.WSReadTimeout,
		GenerateTimeout: a.cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	// No Read/WriteTimeout: websocket connections set their own deadlines.
	httpSrv := &http.Server{
		Addr:              a.cfg.WebAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("web started", "addr", a.cfg.WebAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
