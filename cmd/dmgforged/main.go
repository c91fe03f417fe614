package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/dmgforge/dmgforge/cmd/dmgforged/api"
	"github.com/dmgforge/dmgforge/cmd/dmgforged/config"
	"github.com/dmgforge/dmgforge/lib/builds"
	"github.com/dmgforge/dmgforge/lib/logger"
	"github.com/dmgforge/dmgforge/lib/middleware"
	dmgotel "github.com/dmgforge/dmgforge/lib/otel"
	"github.com/dmgforge/dmgforge/lib/paths"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := paths.New(cfg.DataDir)
	if err := os.MkdirAll(p.BuildsDir(), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	meter := otel.Meter("dmgforged")

	buildMetrics, err := builds.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create build metrics: %w", err)
	}

	buildManager := builds.NewManager(builds.Options{
		Paths:         p,
		MountPrefix:   cfg.MountPrefix,
		MaxConcurrent: cfg.MaxConcurrentBuilds,
		Metrics:       buildMetrics,
	})

	queueMetrics, err := dmgotel.NewQueueMetrics(meter, buildManager.QueueStats)
	if err != nil {
		return fmt.Errorf("create queue metrics: %w", err)
	}
	defer queueMetrics.Unregister()

	httpMetrics, err := middleware.NewHTTPMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	service := api.New(cfg, buildManager)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(otelchi.Middleware("dmgforged", otelchi.WithChiRoutes(r)))
	r.Use(httpMetrics.Middleware)
	r.Use(middleware.InjectLogger(log))
	r.Use(middleware.AccessLogger(log))

	r.Get("/healthz", service.Healthz)

	r.Group(func(r chi.Router) {
		if cfg.JwtSecret != "" {
			r.Use(middleware.VerifyJWT(cfg.JwtSecret))
		}

		// Builds can run for minutes; only non-streaming routes get the
		// request timeout.
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))
			r.Post("/builds", service.CreateBuild)
			r.Get("/builds", service.ListBuilds)
			r.Get("/builds/{id}", service.GetBuild)
			r.Delete("/builds/{id}", service.DeleteBuild)
		})

		r.Get("/builds/{id}/events", service.StreamBuildEvents)
		r.Get("/builds/{id}/image", service.DownloadImage)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		log.Info("starting dmgforged API server", "port", cfg.Port, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			return err
		}
		return nil
	})

	grp.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown http server", "error", err)
			return err
		}

		log.Info("http server shutdown complete")
		return nil
	})

	return grp.Wait()
}
