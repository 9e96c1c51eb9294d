package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/RonTitans/BillFlow/pkg/config"
	"github.com/RonTitans/BillFlow/pkg/metrics"
	"github.com/RonTitans/BillFlow/pkg/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Cleanup()

	if err := deps.Scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Run(ctx, addr, newRouter(deps), logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(server.RequestLogger(deps.Logger))
	r.Use(server.RateLimit(deps.Config.Server.RateLimitPerSecond, deps.Config.Server.RateLimitBurst))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		server.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", deps.AuthHandler.Login)
		r.Get("/auth/verify", deps.AuthHandler.VerifyToken)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthHandler.Middleware)

			r.Post("/upload", deps.BillingHandler.Upload)
			r.Get("/files", deps.BillingHandler.ListFiles)
			r.Delete("/files/{fileID}", deps.BillingHandler.DeleteFile)
			r.Post("/process", deps.BillingHandler.Process)
			r.Get("/download/excel", deps.BillingHandler.DownloadExcel)
			r.Get("/download/tsv", deps.BillingHandler.DownloadTSV)

			r.Get("/dashboard/stats", deps.AnalyticsHandler.DashboardStats)
			r.Get("/analytics/consumption", deps.AnalyticsHandler.Consumption)
		})
	})

	return r
}
