package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/placesync/internal/catalog"
	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect one provider/city/category batch into the raw collection",
	Long: "Searches the provider for the category in the city, enriches every result with its details and " +
		"upserts it into the raw collection keyed by (source, id). With --from-file the payloads are read " +
		"from a JSON array instead of the provider API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		providerName, _ := cmd.Flags().GetString("provider")
		citySlug, _ := cmd.Flags().GetString("city-slug")
		category, _ := cmd.Flags().GetString("category")
		maxResults, _ := cmd.Flags().GetInt("max")
		fromFile, _ := cmd.Flags().GetString("from-file")
		skipCatalog, _ := cmd.Flags().GetBool("any-category")

		provider, err := model.ParseProvider(providerName)
		if err != nil {
			return err
		}
		if !skipCatalog {
			if err := catalog.Default().Check(provider, category); err != nil {
				return err
			}
		}
		mode := "ingest:" + provider.String()
		if fromFile != "" {
			mode = "store"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := initPipeline(st, initFetchers(), nil)
		if err != nil {
			return err
		}

		opts := pipeline.IngestOpts{Provider: provider, CitySlug: citySlug, Category: category, Max: maxResults}
		var run *model.Run
		if fromFile != "" {
			payloads, err := readPayloadFile(fromFile)
			if err != nil {
				return err
			}
			run, err = p.IngestRecords(ctx, opts, payloads)
			if err != nil {
				return err
			}
		} else {
			run, err = p.Ingest(ctx, opts)
			if err != nil {
				return err
			}
		}
		printRunSummary(cmd.OutOrStdout(), run)
		return nil
	},
}

// readPayloadFile reads a JSON array of provider-native records.
func readPayloadFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	var payloads []json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, eris.Wrapf(err, "parse %s: expected a JSON array of records", path)
	}
	return payloads, nil
}

func printRunSummary(w io.Writer, run *model.Run) {
	_, _ = fmt.Fprintf(w, "run %s %s: inserted=%d updated=%d skipped=%d merged=%d\n",
		run.ID, run.State, run.Inserted, run.Updated, run.Skipped, run.Merged)
}

func init() {
	ingestCmd.Flags().String("provider", "", "provider to collect from (google, yelp)")
	ingestCmd.Flags().String("city-slug", "", "slug of a stored city")
	ingestCmd.Flags().String("category", "", "provider category to search")
	ingestCmd.Flags().Int("max", 0, "maximum results to fetch (0 = provider default)")
	ingestCmd.Flags().String("from-file", "", "read payloads from a JSON array file instead of the API")
	ingestCmd.Flags().Bool("any-category", false, "skip the category catalog check")
	_ = ingestCmd.MarkFlagRequired("provider")
	_ = ingestCmd.MarkFlagRequired("city-slug")
	_ = ingestCmd.MarkFlagRequired("category")

	rootCmd.AddCommand(ingestCmd)
}
