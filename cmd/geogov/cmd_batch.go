package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/pipeline"
)

type batchReport struct {
	Result *pipeline.BatchResult `json:"result"`
	Score  score                 `json:"score"`
}

func newBatchCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "batch <cases-file>",
		Short: "Analyze a file of artifacts and score them against expectations",
		Long: `Batch analyzes every artifact in a JSON or YAML file concurrently. Items
may carry expected_compliance and expected_regulations; the run is scored
against them. One item's failure never stops the others.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := artifacts.LoadCases(args[0])
			if err != nil {
				return err
			}

			s, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			res, batchErr := s.svc.Pipeline.Batch(cmd.Context(), artifacts.Artifacts(cases))
			sc, checks := scoreBatch(cases, res)

			out := cmd.OutOrStdout()
			if asJSON {
				err = writeJSON(out, batchReport{Result: res, Score: sc})
			} else {
				err = writeBatchTable(out, res, sc, checks)
			}
			if err != nil {
				return err
			}

			if batchErr != nil {
				return fmt.Errorf("batch had internal failures: %w", batchErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result and score as JSON")
	return cmd
}

func writeBatchTable(w io.Writer, res *pipeline.BatchResult, sc score, checks []check) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tSEQ\tCOMPLIANCE\tREGULATIONS\tCONFIDENCE\tCHECK")

	for i, out := range res.Outcomes {
		if out.Failure != nil {
			fmt.Fprintf(tw, "%s\t-\tFAILED (%s)\t%s\t-\t%s\n",
				out.FeatureID, out.Failure.Kind, out.Failure.Stage, checks[i])
			continue
		}
		d := out.Decision
		regs := strings.Join(d.Regulations, ",")
		if regs == "" {
			regs = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.2f\t%s\n",
			out.FeatureID, out.Seq, strconv.FormatBool(d.NeedsCompliance), regs, d.Confidence, checks[i])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nbatch %s: %d items, %d succeeded, %d failed in %dms\n",
		res.ID, res.Total, res.Succeeded, res.Failed, res.ElapsedMS)
	if sc.ComplianceChecked > 0 {
		fmt.Fprintf(w, "compliance accuracy: %d/%d (%.1f%%)\n",
			sc.ComplianceCorrect, sc.ComplianceChecked, sc.Accuracy*100)
	}
	if sc.RegulationsChecked > 0 {
		fmt.Fprintf(w, "regulation matches: %d/%d\n", sc.RegulationsMatched, sc.RegulationsChecked)
	}
	if len(sc.Misses) > 0 {
		fmt.Fprintf(w, "misses: %s\n", strings.Join(sc.Misses, ", "))
	}
	return nil
}
