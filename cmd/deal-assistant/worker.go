package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"deal-assistant/internal/common/camunda"
	"deal-assistant/internal/common/config"
	dealchatturn "deal-assistant/internal/workers/deal-chat/deal-chat-turn"
)

var workerMetricsAddr string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Zeebe deal-chat.turn job worker",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-address", ":9090", "Address for /health and /metrics")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := config.ValidateForWorker(cfg); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, zapLog, log)
	if err != nil {
		return err
	}
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveWorkerMetrics(gctx, workerMetricsAddr) })
	g.Go(func() error { return runWorkerLoop(gctx, a) })
	return g.Wait()
}

// runWorkerLoop registers the turn worker and blocks until ctx is done.
func runWorkerLoop(ctx context.Context, a *app) error {
	if err := config.ValidateForWorker(cfg); err != nil {
		return err
	}

	var client *camunda.Client
	err := retryWithBackoff(ctx, func() error {
		c, err := camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
		if err != nil {
			return err
		}
		if err := c.HealthCheck(ctx); err != nil {
			c.Close()
			return err
		}
		client = c
		return nil
	}, 5, 2*time.Second, zapLog, "Camunda connection")
	if err != nil {
		return err
	}
	defer client.Close()
	log.Info("Connected to Camunda", map[string]interface{}{"address": cfg.Camunda.BrokerAddress})

	handler, err := dealchatturn.NewHandler(dealchatturn.HandlerOptions{
		AppConfig: cfg,
		Service:   a.svc,
		Logger:    log,
		Retry:     client.RetryConfig(),
	})
	if err != nil {
		return err
	}
	handler.Register(client.GetClient())
	defer handler.Close()

	<-ctx.Done()
	log.Info("Shutting down worker", map[string]interface{}{"taskType": handler.GetTaskType()})
	return nil
}

func serveWorkerMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
