package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/store"
)

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Print processed places as JSON documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		citySlug, _ := cmd.Flags().GetString("city-slug")
		category, _ := cmd.Flags().GetString("category")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		places, err := st.QueryPlaces(ctx, store.Filter{CitySlug: citySlug, Category: category})
		if err != nil {
			return eris.Wrap(err, "places")
		}
		if places == nil {
			places = []model.Place{}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(places)
	},
}

func init() {
	placesCmd.Flags().String("city-slug", "", "filter by city slug")
	placesCmd.Flags().String("category", "", "filter by category membership")

	rootCmd.AddCommand(placesCmd)
}
