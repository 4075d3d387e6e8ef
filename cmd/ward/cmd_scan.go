package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardlabs/ward/config"
)

var scanConfigPath string

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one discovery sync and exit",
	Long: `Run a single discovery sync.

Every configured connector is queried for the tenant's applications,
the results are matched against the catalog, risk-scored and
persisted, and the resulting events are run through the policy
engine. Useful for cron-driven setups and for inspecting what a
sync would change before starting the daemon.`,
	Example: `  ward scan --config ward.yaml`,
	RunE:    runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanConfigPath, "config", "ward.yaml", "Path to configuration file")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(scanConfigPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cleanupTelemetry := initTelemetry(ctx)
	defer cleanupTelemetry()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.connectors) == 0 {
		return fmt.Errorf("no connectors configured")
	}

	for _, conn := range a.connectors {
		apps, err := conn.DiscoverApps(ctx, cfg.TenantID)
		if err != nil {
			fmt.Printf("connector %s failed: %v\n", conn.Name(), err)
			continue
		}

		result, err := a.detector.ProcessApps(ctx, cfg.TenantID, apps)
		if err != nil {
			return fmt.Errorf("process apps from %s: %w", conn.Name(), err)
		}

		fmt.Printf("%s: %d processed, %d new, %d updated, %d shadow IT, %d failed\n",
			conn.Name(), result.Processed, result.Created, result.Updated,
			result.ShadowITDetected, result.Failed)
	}

	return nil
}
