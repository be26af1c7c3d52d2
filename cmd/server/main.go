package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"tigrinya.news/pipeline/common/id"
	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/common/otel"
	"tigrinya.news/pipeline/core/config"
	"tigrinya.news/pipeline/internal/app"
	"tigrinya.news/pipeline/internal/http/middleware"
	httprouter "tigrinya.news/pipeline/internal/http/router"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "pipeline server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg, cfg.OTel.ServiceName)
	if err != nil {
		slog.ErrorContext(ctx, "failed to start", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, application)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Synchronous ingest and the status stream hold the response open.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "job runner shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, application *app.App) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger("/health", "/scrape/status", "/process/status", "/ingest/status"))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	services := httprouter.Services{
		Pipeline: application.Pipeline,
		RAG:      application.RAG,
		Articles: application.Articles,
	}
	if application.Status != nil {
		services.Status = application.Status
	}
	httprouter.SetupRoutes(router, services)

	return router
}

const banner = `
████████╗██╗ ██████╗ ██████╗ ██╗███╗   ██╗██╗   ██╗ █████╗     ███╗   ██╗███████╗██╗    ██╗███████╗
╚══██╔══╝██║██╔════╝ ██╔══██╗██║████╗  ██║╚██╗ ██╔╝██╔══██╗    ████╗  ██║██╔════╝██║    ██║██╔════╝
   ██║   ██║██║  ███╗██████╔╝██║██╔██╗ ██║ ╚████╔╝ ███████║    ██╔██╗ ██║█████╗  ██║ █╗ ██║███████╗
   ██║   ██║██║   ██║██╔══██╗██║██║╚██╗██║  ╚██╔╝  ██╔══██║    ██║╚██╗██║██╔══╝  ██║███╗██║╚════██║
   ██║   ██║╚██████╔╝██║  ██║██║██║ ╚████║   ██║   ██║  ██║    ██║ ╚████║███████╗╚███╔███╔╝███████║
   ╚═╝   ╚═╝ ╚═════╝ ╚═╝  ╚═╝╚═╝╚═╝  ╚═══╝   ╚═╝   ╚═╝  ╚═╝    ╚═╝  ╚═══╝╚══════╝ ╚══╝╚══╝ ╚══════╝
`
