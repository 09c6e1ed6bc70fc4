package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox-triage/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr string
	serveAuto bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(logger)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := server.New(ctx, server.Config{RateLimit: cfg.Server.RateLimit},
			a.Processor, a.Prefs, a.Scheduler, logger)

		if serveAuto {
			a.Scheduler.Start(ctx)
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Listen(addr) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		return srv.Shutdown(shutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	serveCmd.Flags().BoolVar(&serveAuto, "auto", false, "start the autonomous scheduler on boot")
	rootCmd.AddCommand(serveCmd)
}

