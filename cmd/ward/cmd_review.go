package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardlabs/ward/config"
	"github.com/wardlabs/ward/types"
)

var (
	reviewConfigPath  string
	reviewName        string
	reviewDueIn       time.Duration
	reviewAutoApprove bool
	reviewDepartments []string
	reviewCampaignID  string
)

// reviewCmd groups the access-review subcommands
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage access-review campaigns",
}

var reviewCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign and generate its review items",
	Long: `Create an access-review campaign.

The current access snapshot is pulled from the configured connectors,
filtered to the campaign scope, risk-scored and turned into review
items routed to each user's manager. The campaign starts active.`,
	Example: `  ward review create --name "Q2 review" --due-in 336h
  ward review create --name "Eng review" --departments engineering --auto-approve`,
	RunE: runReviewCreate,
}

var reviewCompleteCmd = &cobra.Command{
	Use:     "complete",
	Short:   "Complete a campaign and print its compliance report",
	Example: `  ward review complete --campaign 7f3c...`,
	RunE:    runReviewComplete,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewCreateCmd, reviewCompleteCmd)

	reviewCmd.PersistentFlags().StringVar(&reviewConfigPath, "config", "ward.yaml", "Path to configuration file")

	reviewCreateCmd.Flags().StringVar(&reviewName, "name", "", "Campaign name")
	reviewCreateCmd.Flags().DurationVar(&reviewDueIn, "due-in", 14*24*time.Hour, "Review window before the deadline")
	reviewCreateCmd.Flags().BoolVar(&reviewAutoApprove, "auto-approve", false, "Auto-approve undecided items at the deadline")
	reviewCreateCmd.Flags().StringSliceVar(&reviewDepartments, "departments", nil, "Limit the campaign to these departments")
	_ = reviewCreateCmd.MarkFlagRequired("name")

	reviewCompleteCmd.Flags().StringVar(&reviewCampaignID, "campaign", "", "Campaign ID")
	_ = reviewCompleteCmd.MarkFlagRequired("campaign")
}

func runReviewCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(reviewConfigPath)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	scope := types.CampaignScope{Type: types.ScopeAll}
	if len(reviewDepartments) > 0 {
		scope = types.CampaignScope{Type: types.ScopeDepartments, Departments: reviewDepartments}
	}

	campaign, err := a.reviews.CreateCampaign(ctx, cfg.TenantID, reviewName, scope,
		time.Now().Add(reviewDueIn), reviewAutoApprove)
	if err != nil {
		return err
	}

	var grants []types.UserAccessGrant
	for _, conn := range a.connectors {
		connGrants, err := conn.DiscoverUserAccess(ctx, cfg.TenantID)
		if err != nil {
			fmt.Printf("connector %s failed: %v\n", conn.Name(), err)
			continue
		}
		grants = append(grants, connGrants...)
	}

	items, err := a.reviews.GenerateReviewItems(ctx, cfg.TenantID, campaign.ID, grants)
	if err != nil {
		return err
	}

	fmt.Printf("campaign %s created with %d review items, due %s\n",
		campaign.ID, len(items), campaign.DueAt.Format(time.RFC3339))
	return nil
}

func runReviewComplete(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(reviewConfigPath)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.reviews.CompleteCampaign(context.Background(), cfg.TenantID, reviewCampaignID)
	if err != nil {
		return err
	}

	fmt.Printf("campaign %s completed\n", report.CampaignID)
	fmt.Printf("  items:        %d (%d reviewed, %d pending)\n",
		report.Totals.Total, report.Totals.Reviewed, report.PendingItems)
	fmt.Printf("  approved:     %d\n", report.Totals.Approved)
	fmt.Printf("  revoked:      %d (%d completed, %d failed)\n",
		report.Totals.Revoked, report.RevocationsCompleted, report.RevocationsFailed)
	fmt.Printf("  deferred:     %d\n", report.Totals.Deferred)
	fmt.Printf("  reviewers:    %d\n", len(report.Reviewers))
	return nil
}
