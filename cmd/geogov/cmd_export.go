package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/geogov/internal/evidence"
	"github.com/JaimeStill/geogov/pkg/formatting"
)

type exportFlags struct {
	featureID string
	from      string
	to        string
	output    string
	publish   bool
}

func newExportCmd(a *app) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an evidence bundle for the current receipt log",
		Long: `Export snapshots the receipt log at its head and writes a zip bundle with
the policy snapshot, the matching receipts, a decisions CSV and the Merkle
root of the included receipts. --from is inclusive and --to exclusive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := evidence.FilterFromQuery(url.Values{
				"feature_id": {flags.featureID},
				"from":       {flags.from},
				"to":         {flags.to},
			})
			if err != nil {
				return err
			}

			s, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			b, err := s.svc.Evidence.Export(ctx, filter)
			if err != nil {
				return err
			}

			data, err := b.Archive()
			if err != nil {
				return err
			}

			path := flags.output
			if path == "" {
				path = b.Filename()
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}
			if err := os.WriteFile(path, data, 0o640); err != nil {
				return fmt.Errorf("write bundle: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bundle:      %s\n", b.ID)
			fmt.Fprintf(out, "path:        %s (%s)\n", path, formatting.FormatBytes(int64(len(data)), 1))
			fmt.Fprintf(out, "receipts:    %d of head %d\n", b.Count, b.Head)
			fmt.Fprintf(out, "merkle_root: %s\n", b.Root)
			fmt.Fprintf(out, "policy:      %s (%s)\n", b.PolicyVersion, b.PolicyHash)

			if flags.publish {
				key, err := s.svc.Evidence.Publish(ctx, b)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "published:   %s\n", key)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.featureID, "feature-id", "", "Only include decisions for this feature")
	f.StringVar(&flags.from, "from", "", "Inclusive lower bound on decision time (RFC 3339)")
	f.StringVar(&flags.to, "to", "", "Exclusive upper bound on decision time (RFC 3339)")
	f.StringVarP(&flags.output, "output", "o", "", "Bundle path (default: <bundle-id>.zip)")
	f.BoolVar(&flags.publish, "publish", false, "Also upload the bundle to blob storage")

	return cmd
}
