package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpattn/ecomdata/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	router := server.NewRouter(server.Deps{
		Ingestion: a.ingestion,
		Analytics: a.analytics,
		Export:    a.export,
		Metrics:   a.metrics.Handler(),
		Logger:    a.logger,
	}, server.Options{
		AllowedOrigins:   a.cfg.Server.CORS.AllowedOrigins,
		AllowCredentials: a.cfg.Server.CORS.AllowCredentials,
		MaxUploadBytes:   a.cfg.Server.MaxUploadMB << 20,
		UploadRPS:        a.cfg.Server.RateLimit.UploadRPS,
		UploadBurst:      a.cfg.Server.RateLimit.UploadBurst,
	})

	return server.Run(ctx, server.Config{
		Port:            a.cfg.Server.Port,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		IdleTimeout:     a.cfg.Server.IdleTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	}, router)
}
