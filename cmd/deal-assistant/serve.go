package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"deal-assistant/internal/server"
)

var serveWithWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (POST /deal-chat)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "Also run the Zeebe deal-chat.turn worker")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, zapLog, log)
	if err != nil {
		return err
	}
	defer a.close()

	checks := map[string]server.Pinger{"postgres": a.store}
	if a.redis != nil {
		checks["redis"] = a.redis
	}
	srv := server.New(server.Options{
		Config:  cfg.Server,
		Service: a.svc,
		Logger:  log,
		Checks:  checks,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if serveWithWorker {
		g.Go(func() error { return runWorkerLoop(gctx, a) })
	}

	err = g.Wait()
	log.Info("deal-assistant stopped", nil)
	return err
}
