package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "ward",
		Short: "SaaS Governance Engine",
		Long: `Ward - SaaS Governance Engine

Ward watches the SaaS applications your organization actually uses,
scores their risk, and automates governance: declarative policies
react to discovery events, and access-review campaigns recertify who
can use what.

Discover shadow IT, enforce remediation policies, and run periodic
access reviews with automated revocation.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Ward {{.Version}} - SaaS Governance Engine
`)
}
