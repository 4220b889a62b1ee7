package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/placesync/internal/pipeline"
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Normalize and merge raw records into the processed collection",
	Long: "Normalizes the raw records of every provider, merges records that share an identity key and " +
		"upserts the result into the processed collection. --replace drops and rebuilds the processed " +
		"collection first; this cannot be undone.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("combine"); err != nil {
			return err
		}

		citySlug, _ := cmd.Flags().GetString("city-slug")
		category, _ := cmd.Flags().GetString("category")
		replace, _ := cmd.Flags().GetBool("replace")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := initPipeline(st, nil, nil)
		if err != nil {
			return err
		}
		run, err := p.Combine(ctx, pipeline.CombineOpts{CitySlug: citySlug, Category: category, Replace: replace})
		if err != nil {
			return err
		}
		printRunSummary(cmd.OutOrStdout(), run)
		return nil
	},
}

func init() {
	combineCmd.Flags().String("city-slug", "", "only combine records from this city")
	combineCmd.Flags().String("category", "", "only combine records ingested under this category")
	combineCmd.Flags().Bool("replace", false, "drop and rebuild the processed collection before writing")

	rootCmd.AddCommand(combineCmd)
}
