package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/segyhp/ledger-engine/internal/app"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/internal/handler"
	"github.com/segyhp/ledger-engine/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	a, err := app.New(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	loc := cfg.Location()
	router := handler.NewRouter(handler.Handlers{
		Health:   handler.NewHealthHandler(a.Store, a.Redis, cfg.Health.Timeout),
		Accounts: handler.NewAccountHandler(a.Balances, a.Eligibility, loc),
		Requests: handler.NewRequestHandler(a.Requests, a.Approvals),
		Workflow: handler.NewWorkflowHandler(a.Audit),
		Payroll:  handler.NewPayrollHandler(a.Payroll, loc),
		Metrics:  a.Metrics.Handler(),
	}, zlog)

	origins := []string{"https://*"}
	if cfg.IsDevelopment() {
		origins = append(origins, "http://*")
	}
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", handler.IdempotencyHeader},
		MaxAge:         300,
	})

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      corsHandler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info("Server starting", zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exited")
}
