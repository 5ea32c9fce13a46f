package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auditor/internal/app"
	"auditor/internal/config"
	"auditor/internal/db"
	"auditor/internal/logger"
	"auditor/internal/routes"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	lggr, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = lggr.Sync() }()

	conn, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		lggr.Fatalw("Failed to connect to database", "err", err)
	}
	if err := db.Migrate(conn); err != nil {
		lggr.Fatalw("Failed to migrate database", "err", err)
	}

	a, err := app.New(cfg, conn, lggr)
	if err != nil {
		lggr.Fatalw("Failed to wire services", "err", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := routes.SetupRouter(routes.Deps{Scans: a.Scans, Cards: a.Cards, Log: lggr})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lggr.Infow("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lggr.Fatalw("Failed to start server", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lggr.Errorw("Graceful shutdown failed", "err", err)
	}
	lggr.Info("Server stopped")
}
