package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wardlabs/ward/config"
	"github.com/wardlabs/ward/types"
)

var (
	policyConfigPath string
	policyFilePath   string
)

// policyCmd groups the policy management subcommands
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage governance policies",
}

var policyApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update policies from a YAML file",
	Example: `  ward policy apply -f policies.yaml --config ward.yaml

  # policies.yaml
  policies:
    - name: escalate risky discoveries
      trigger: app.discovered
      enabled: true
      conditions:
        riskScore:
          $gte: 75
      actions:
        - type: escalate
          config:
            target: security-team
      cooldown_minutes: 60
      max_executions_per_day: 20`,
	RunE: runPolicyApply,
}

var policyListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the tenant's policies",
	Example: `  ward policy list --config ward.yaml`,
	RunE:    runPolicyList,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyApplyCmd, policyListCmd)

	policyCmd.PersistentFlags().StringVar(&policyConfigPath, "config", "ward.yaml", "Path to configuration file")
	policyApplyCmd.Flags().StringVarP(&policyFilePath, "file", "f", "", "Policy definitions file")
	_ = policyApplyCmd.MarkFlagRequired("file")
}

// policyFile is the YAML schema for policy apply.
type policyFile struct {
	Policies []policySpec `yaml:"policies"`
}

type policySpec struct {
	ID                  string         `yaml:"id,omitempty"`
	Name                string         `yaml:"name"`
	Trigger             string         `yaml:"trigger"`
	Enabled             bool           `yaml:"enabled"`
	Conditions          map[string]any `yaml:"conditions,omitempty"`
	Actions             []actionSpec   `yaml:"actions"`
	CooldownMinutes     int            `yaml:"cooldown_minutes,omitempty"`
	MaxExecutionsPerDay int            `yaml:"max_executions_per_day,omitempty"`
}

type actionSpec struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config,omitempty"`
}

func runPolicyApply(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(policyConfigPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(policyFilePath) // #nosec G304 -- path is intentional user input
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	if len(file.Policies) == 0 {
		return fmt.Errorf("policy file defines no policies")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	now := time.Now()
	for _, spec := range file.Policies {
		policy := &types.Policy{
			ID:                  spec.ID,
			TenantID:            cfg.TenantID,
			Name:                spec.Name,
			TriggerType:         types.Topic(spec.Trigger),
			Enabled:             spec.Enabled,
			Conditions:          spec.Conditions,
			CooldownMinutes:     spec.CooldownMinutes,
			MaxExecutionsPerDay: spec.MaxExecutionsPerDay,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		for _, action := range spec.Actions {
			policy.Actions = append(policy.Actions, types.PolicyAction{
				Type:   action.Type,
				Config: action.Config,
			})
		}

		if policy.ID == "" {
			policy.ID = uuid.NewString()
		} else if existing, err := a.store.GetPolicy(cfg.TenantID, policy.ID); err == nil {
			policy.CreatedAt = existing.CreatedAt
			policy.LastExecutedAt = existing.LastExecutedAt
			policy.Stats = existing.Stats
		}

		if err := a.store.SavePolicy(policy); err != nil {
			return fmt.Errorf("save policy %q: %w", spec.Name, err)
		}
		fmt.Printf("applied %s (%s)\n", policy.Name, policy.ID)
	}

	return nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(policyConfigPath)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	policies, err := a.store.ListPolicies(cfg.TenantID)
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}
	if len(policies) == 0 {
		fmt.Println("no policies defined")
		return nil
	}

	fmt.Printf("%-38s %-30s %-28s %-8s %s\n", "ID", "NAME", "TRIGGER", "ENABLED", "RUNS")
	for _, p := range policies {
		fmt.Printf("%-38s %-30s %-28s %-8t %d\n",
			p.ID, p.Name, p.TriggerType, p.Enabled, p.Stats.Total())
	}
	return nil
}
