package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background sync daemon",
	Long: `Run the periodic sync loop until interrupted.

Each cycle pushes pending invoices and retryable receipt groups, then
pulls the remote balance snapshot and the partner and product catalogs.
An initial cycle runs immediately unless --no-initial-sync is set.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("no-initial-sync", false, "Skip the immediate sync cycle on startup")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	defer app.Close()

	skipInitial, _ := cmd.Flags().GetBool("no-initial-sync")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app.log.Info("agentd starting",
		zap.String("version", version),
		zap.String("env", app.cfg.App.Env),
		zap.String("database", app.cfg.Database.Path),
		zap.Bool("sync_enabled", app.cfg.Sync.Enabled))

	if !skipInitial && app.cfg.Sync.Enabled {
		if _, err := app.orchestrator.RunOnce(ctx); err != nil {
			app.log.Warn("initial sync cycle failed", zap.Error(err))
		}
	}

	if err := app.orchestrator.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	app.log.Info("shutting down", zap.String("signal", sig.String()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return app.orchestrator.Stop(stopCtx)
}
