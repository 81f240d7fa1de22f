/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dapr/kit/concurrency"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/diagridio/go-rhythm/api"
	"github.com/diagridio/go-rhythm/cron"
)

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger the schedules of a config document, logging every trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(v.GetString("log-level"))
			if err != nil {
				return err
			}

			path := v.GetString("config")
			if len(path) == 0 {
				return errors.New("--config is required")
			}

			doc, err := LoadDocument(path)
			if err != nil {
				return err
			}

			return run(cmd.Context(), log, doc, v.GetString("metrics-address"))
		},
	}

	cmd.Flags().String("metrics-address", "", "Address to serve Prometheus metrics on, e.g. :9090")

	return cmd
}

func run(ctx context.Context, log logr.Logger, doc *Document, metricsAddress string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	c, err := cron.New(cron.Options{
		Log: log,
		TriggerFn: func(_ context.Context, req *api.TriggerRequest) {
			log.Info("Triggered", "schedule", req.Name, "id", req.ID, "instant", req.Instant, "metadata", req.Metadata)
		},
		Registerer: reg,
	})
	if err != nil {
		return err
	}

	for _, s := range doc.Schedules {
		opts, err := s.Options()
		if err != nil {
			return err
		}
		if err := c.Add(ctx, s.Name, opts); err != nil {
			return err
		}
	}

	log.Info("Loaded schedules", "count", len(doc.Schedules))

	runners := []concurrency.Runner{c.Run}
	if len(metricsAddress) > 0 {
		runners = append(runners, metricsServer(log, reg, metricsAddress))
	}

	return concurrency.NewRunnerManager(runners...).Run(ctx)
}

func metricsServer(log logr.Logger, reg *prometheus.Registry, address string) concurrency.Runner {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

		srv := &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("Serving metrics", "address", address)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("metrics server: %w", err)
		case <-ctx.Done():
		}

		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}

		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}
