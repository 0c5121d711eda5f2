package main

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"govariant/adapters/annotation"
	"govariant/internal/testkit"
)

func newGenerateCmd() *cobra.Command {
	var (
		config          = testkit.DefaultVariantConfig()
		annotationsPath string
	)

	cmd := &cobra.Command{
		Use:   "generate [out.csv]",
		Short: "Write a synthetic labeled variant table and its site annotations",
		Long: `Generate a synthetic curated variant table for demos and smoke tests.
Pathogenic rows carry radical, conserved, in-domain substitutions and benign
rows conservative ones; --label-noise blurs the two classes.

Example: govariant-cli generate variants.csv --annotations sites.csv --count 500 --label-noise 0.05`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Count < 1 {
				return fmt.Errorf("--count must be positive")
			}
			ds := testkit.NewVariantGenerator(config).Generate()

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}
			if err := gocsv.MarshalFile(&ds.Raw, f); err != nil {
				f.Close()
				return fmt.Errorf("failed to write variants: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("✅ Wrote %d variants to %s\n", len(ds.Raw), args[0])

			if annotationsPath != "" {
				if err := annotation.WriteFile(annotationsPath, ds.Annotations); err != nil {
					return err
				}
				fmt.Printf("✅ Wrote %d site annotations to %s\n", len(ds.Annotations), annotationsPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&config.Count, "count", config.Count, "Number of variants")
	cmd.Flags().Int64Var(&config.Seed, "seed", config.Seed, "Generator seed")
	cmd.Flags().Float64Var(&config.PathogenicRate, "pathogenic-rate", config.PathogenicRate, "Fraction of pathogenic rows")
	cmd.Flags().Float64Var(&config.LabelNoise, "label-noise", config.LabelNoise, "Fraction of labels flipped")
	cmd.Flags().Float64Var(&config.UnannotatedRate, "unannotated-rate", config.UnannotatedRate, "Fraction of sites left out of the annotation table")
	cmd.Flags().StringVar(&annotationsPath, "annotations", "", "Also write site annotations to this path")
	return cmd
}
