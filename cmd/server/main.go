/*
main.go - API server entry point

PURPOSE:
  Serves the stored RFM segmentation over HTTP. Results are produced by
  cmd/rfm against the same database, by POST /api/runs, or by the refresh
  scheduler when RFM_REFRESH_INTERVAL is set.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Open the store
  3. Create pipeline, refresh scheduler, API handler and router
  4. Start scheduler and server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: $HTTP_PORT or 8080)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler (waits for a running refresh)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/retail-rfm/api"
	"github.com/warp/retail-rfm/config"
	"github.com/warp/retail-rfm/pipeline"
	"github.com/warp/retail-rfm/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	port := flag.Int("port", cfg.HTTP.Port, "HTTP server port")
	flag.Parse()

	logger := config.NewLogger(cfg.Logging)
	log := logger.WithField("component", "server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(ctx, cfg.DB.StoreOptions())
	if err != nil {
		log.WithError(err).WithField("target", cfg.DB.Target()).Error("failed to open store")
		os.Exit(1)
	}
	defer store.Close()

	p := pipeline.New(store, store, logger)
	p.Strict = cfg.Pipeline.Strict
	scheduler := api.NewRefreshScheduler(p, cfg.Pipeline.Input, cfg.Pipeline.RefreshInterval, logger)

	handler := api.NewHandler(store, logger)
	handler.Scheduler = scheduler
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		log.WithField("port", *port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	log.Info("server stopped")
}
