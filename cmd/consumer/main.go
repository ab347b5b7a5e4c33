// Package main provides the event consumer entry point. It runs a
// Watermill Router that fans impression, interaction, and session
// lifecycle events out to the offline feature pipeline, reading from NATS
// JetStream (or an in-process GoChannel in local development).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tunetrail/backend/internal/di"
)

func main() {
	if err := run(); err != nil {
		log.Printf("consumer failed: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	log.Println("starting event consumer")

	app, err := di.InitializeConsumerApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Printf("error during consumer shutdown: %v", err)
		}
	}()

	go func() {
		if err := app.HealthServer.Start(); err != nil {
			log.Printf("consumer health server failed: %v", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := app.Router.Run(ctx); err != nil {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		log.Println("received shutdown signal, stopping consumer gracefully...")
		return nil

	case err := <-errChan:
		if err != nil {
			log.Printf("consumer router stopped with error: %v", err)
			return err
		}
		return nil
	}
}
