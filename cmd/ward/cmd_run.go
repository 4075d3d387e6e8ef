package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/wardlabs/ward/config"
	"github.com/wardlabs/ward/internal/daemon"
)

var runConfigPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the governance daemon",
	Long: `Run Ward in daemon mode.

The daemon periodically syncs application discovery from the configured
connectors, evaluates governance policies against the resulting events,
sweeps expired execution records and closes overdue access-review
campaigns.

Features:
- Continuous discovery sync on a configurable interval
- Event-driven policy automation with cooldown and daily-cap gating
- Prometheus metrics on /metrics, health on /health
- Append-only audit trail of every governance decision
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  ward run --config ward.yaml`,
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConfigPath, "config", "ward.yaml", "Path to configuration file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(runConfigPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupTelemetry := initTelemetry(ctx)
	defer cleanupTelemetry()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	d, err := daemon.New(daemon.Config{
		TenantID:           cfg.TenantID,
		SyncInterval:       cfg.SyncInterval,
		SweepInterval:      cfg.SweepInterval,
		ExecutionRetention: cfg.ExecutionRetention,
		MetricsPort:        cfg.MetricsPort,
	}, a.connectors, a.detector, a.engine, a.reviews)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	fmt.Printf("Ward daemon starting (tenant %s, sync every %s)\n", cfg.TenantID, cfg.SyncInterval)
	fmt.Printf("Metrics: http://localhost:%d/metrics\n", cfg.MetricsPort)

	var group run.Group
	group.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	group.Add(func() error {
		return d.Start(ctx)
	}, func(error) {
		cancel()
	})
	group.Add(func() error {
		return d.ServeMetrics(ctx)
	}, func(error) {
		cancel()
	})

	if err := group.Run(); err != nil {
		if _, ok := err.(run.SignalError); ok {
			fmt.Println("\nWard daemon stopped")
			return nil
		}
		return err
	}
	return nil
}
