package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/geogov/internal/artifacts"
)

type analyzeFlags struct {
	file        string
	featureID   string
	title       string
	description string
	tags        []string
	docs        []string
	hints       []string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one feature artifact and record its decision",
		Long: `Analyze runs one artifact through the pipeline and prints the outcome as
JSON. The artifact comes from --file (JSON or YAML) or from the field flags.

Usage:
  geogov analyze --file feature.yaml
  geogov analyze --feature-id F1 --title "Personalized feed" \
    --description "Recommender for EU users" --tag recommender`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			art, err := flags.artifact()
			if err != nil {
				return err
			}

			s, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			out, err := s.svc.Pipeline.Analyze(cmd.Context(), art)
			if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
				return werr
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Artifact file (JSON or YAML)")
	f.StringVar(&flags.featureID, "feature-id", "", "Feature identifier")
	f.StringVar(&flags.title, "title", "", "Feature title")
	f.StringVar(&flags.description, "description", "", "Feature description")
	f.StringSliceVar(&flags.tags, "tag", nil, "Feature tag (repeatable)")
	f.StringSliceVar(&flags.docs, "doc", nil, "Linked document (repeatable)")
	f.StringSliceVar(&flags.hints, "hint", nil, "Code hint (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("file", "feature-id")

	return cmd
}

func (f analyzeFlags) artifact() (artifacts.Artifact, error) {
	if f.file != "" {
		return artifacts.Load(f.file)
	}
	if f.featureID == "" {
		return artifacts.Artifact{}, fmt.Errorf("either --file or --feature-id is required")
	}
	return artifacts.Artifact{
		FeatureID:   f.featureID,
		Title:       f.title,
		Description: f.description,
		Tags:        f.tags,
		Docs:        f.docs,
		CodeHints:   f.hints,
	}, nil
}
