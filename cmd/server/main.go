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

	"github.com/tamzid2001/docuflux/internal/config"
	"github.com/tamzid2001/docuflux/internal/handler"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wiring
	container, err := config.NewContainer(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer container.Close()

	server := &http.Server{
		Addr:              ":" + container.Config.GetServerPort(),
		Handler:           handler.NewRouter(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	container.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Graceful shutdown failed", err)
		_ = server.Close()
	}
	if err := container.BatchRunner.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Batches did not finish before shutdown", err)
	}

	container.Logger.Info("Server exited")
}
