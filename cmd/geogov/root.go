package main

import (
	"github.com/spf13/cobra"

	"github.com/JaimeStill/geogov/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries the persistent flags shared by every command.
type app struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "geogov",
		Short: "Geo-compliance decisions with tamper-evident receipts",
		Long: `geogov decides whether a product feature needs geo-specific compliance
logic, records every decision in an append-only receipt log and exports
Merkle-rooted evidence bundles for auditors.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.BaseConfigFile,
		"Config file (overlay config.<GEOGOV_ENV>.toml is read from the same directory)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newBatchCmd(a),
		newExportCmd(a),
		newVerifyCmd(a),
		newPolicyCmd(a),
		newOpenAPICmd(a),
	)

	return root
}
