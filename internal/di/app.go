// Package di provides dependency injection and application bootstrapping.
package di

import (
	"context"
	"time"

	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/internal/infrastructure/server"
	"github.com/tunetrail/backend/pkg/shutdown"
)

// App represents the application with all its dependencies and lifecycle
// management. Unlike the Connect-RPC teacher, shutdown sequencing is
// delegated entirely to pkg/shutdown's global phase registry: Server.Close
// and HealthServer.Close are themselves registered closers, so App.Shutdown
// only has to drive the phased Shutdown call.
type App struct {
	Server          *server.Server
	Health          *server.HealthServer
	Logger          *logging.Logger
	ShutdownTimeout time.Duration
}

// Shutdown runs the phased shutdown sequence (Drain/Flush/External/
// Observe/Datastore) registered during InitializeApp.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info(ctx, "starting application shutdown")

	ctx, cancel := context.WithTimeout(ctx, a.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Shutdown(ctx); err != nil {
		return err
	}

	a.Logger.Info(ctx, "application shutdown complete")
	return nil
}
