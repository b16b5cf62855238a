package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/medelle/practice-api/internal/config"
)

func workerCmd(configPath *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Publish pending outbox events to the message broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Storage.Driver == config.DriverMemory {
				return fmt.Errorf("the worker needs a shared store, use serve --with-worker with the memory driver")
			}

			if err := a.outboxWorkers(ctx, a.broker()); err != nil {
				return err
			}

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						a.logger.Error().Err(err).Msg("Metrics server failed")
					}
				}()
				defer srv.Close()
			}

			a.logger.Info().Msg("Worker started")
			<-ctx.Done()
			a.logger.Info().Msg("Worker stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "address for the worker's /metrics endpoint, empty to disable")
	return cmd
}
