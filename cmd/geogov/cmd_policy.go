package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/internal/policy"
)

func newPolicyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "policy [rules-file]",
		Short: "Validate a rules file and print its identity and rules",
		Long: `Policy loads a rules file, the configured one by default, and prints the
version and SHA-256 hash that decisions record, followed by every rule in
evaluation order. An invalid file fails the command.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(a.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			path := cfg.Policy.Path
			if len(args) > 0 {
				path = args[0]
			}

			store, err := policy.Load(path, cfg.Policy.Version)
			if err != nil {
				return err
			}
			return writePolicy(cmd.OutOrStdout(), path, store)
		},
	}
}

func writePolicy(w io.Writer, path string, store *policy.Store) error {
	fmt.Fprintf(w, "file:    %s\n", path)
	fmt.Fprintf(w, "version: %s\n", store.Version())
	fmt.Fprintf(w, "hash:    %s\n", store.Hash())
	fmt.Fprintf(w, "rules:   %d\n\n", store.Len())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERDICT\tREGULATIONS\tWHEN")
	for _, r := range store.Rules() {
		regs := strings.Join(r.Regulations, ",")
		if regs == "" {
			regs = "-"
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", r.ID, r.Verdict, regs, describe(r))
	}
	return tw.Flush()
}

func describe(r policy.Rule) string {
	var parts []string
	if len(r.Any) > 0 {
		parts = append(parts, "any("+conditions(r.Any)+")")
	}
	if len(r.All) > 0 {
		parts = append(parts, "all("+conditions(r.All)+")")
	}
	if len(parts) == 0 {
		return "always"
	}
	return strings.Join(parts, " and ")
}

func conditions(cs []policy.Condition) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Kind.String() + "[" + strings.Join(c.Values, ",") + "]"
	}
	return strings.Join(out, " ")
}
