package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockboard/internal/api"
	"github.com/wonny/stockboard/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the dashboard API server",
	Long: `Starts the JSON API used by the dashboards.

Endpoints:
  GET  /health                         - Health check
  GET  /metrics                        - Prometheus metrics
  GET  /api/datasets                   - Dataset list
  GET  /api/datasets/{name}            - Dataset rows (?refresh=true)
  GET  /api/datasets/{name}/risk-return
  GET  /api/datasets/{name}/aligned    - Forward-filled close panel
  GET  /api/series/{symbol}            - One symbol with per-point metrics
  POST /api/ask                        - Question about a dataset

Example:
  go run ./cmd/stockboard api
  go run ./cmd/stockboard api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockboard API Server ===")

	d, err := newDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.Close()

	// Override port if flag is set
	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	d.log.WithFields(map[string]interface{}{
		"port":  d.cfg.Port,
		"env":   d.cfg.Env,
		"cache": d.cache.StoreName(),
	}).Info("Initializing API server")

	h := api.Handlers{
		Datasets: handlers.NewDatasetHandler(d.datasets, d.log),
		Series:   handlers.NewSeriesHandler(d.collector, d.log),
		Ask:      handlers.NewAskHandler(d.datasets, d.qa, d.log),
	}
	if d.cfg.MetricsEnabled {
		h.Metrics = d.metrics.Handler()
	}

	router := api.NewRouter(h, d.log)
	server := api.New(d.cfg, d.log, router)

	// Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			d.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-server.Ready()
	d.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	d.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	d.log.Info("Server stopped")
	return nil
}
