package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/pkg/geocode"
)

var cityCmd = &cobra.Command{
	Use:   "city",
	Short: "Manage the cities collectors can target",
}

var cityAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Geocode a city and store it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		country, _ := cmd.Flags().GetString("country")
		stateCode, _ := cmd.Flags().GetString("state-code")

		gc := geocode.NewClient(
			geocode.WithBaseURL(cfg.Geocode.BaseURL),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
			geocode.WithRateLimit(cfg.Geocode.RatePerSec),
		)
		res, err := gc.LookupCity(ctx, name, country)
		if err != nil {
			return err
		}
		if res == nil {
			return eris.Errorf("city add: no geocoding match for %q", name)
		}

		city := cityFromGeocode(name, res)
		if stateCode != "" {
			city.StateCode = stateCode
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.UpsertCity(ctx, city); err != nil {
			return eris.Wrap(err, "city add")
		}
		zap.L().Info("city stored",
			zap.String("slug", city.Slug),
			zap.String("name", city.Name),
			zap.String("state", city.State),
			zap.Float64("lat", city.Location.Lat),
			zap.Float64("lng", city.Location.Lng),
		)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), city.Slug)
		return nil
	},
}

var cityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cities, err := st.ListCities(ctx)
		if err != nil {
			return eris.Wrap(err, "city list")
		}
		if len(cities) == 0 {
			fmt.Fprintln(os.Stderr, "No cities found.")
			return nil
		}
		formatCities(cmd.OutOrStdout(), cities)
		return nil
	},
}

// cityFromGeocode builds the city record. The slug comes from the name the
// operator asked for so it stays stable across geocoder spelling changes.
func cityFromGeocode(query string, res *geocode.CityResult) *model.City {
	name := res.Name
	if name == "" {
		name = query
	}
	return &model.City{
		Name:      name,
		Slug:      model.Slugify(query),
		State:     res.State,
		StateCode: res.StateCode,
		Country:   res.Country,
		Location:  model.NewLocation(res.Latitude, res.Longitude),
	}
}

func formatCities(out io.Writer, cities []model.City) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLUG\tNAME\tSTATE\tCOUNTRY\tLAT\tLNG")
	for _, c := range cities {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\t%.4f\n",
			c.Slug, c.Name, c.StateCode, c.Country, c.Location.Lat, c.Location.Lng)
	}
	_ = w.Flush()
}

func init() {
	cityAddCmd.Flags().String("name", "", "city name to geocode (required)")
	cityAddCmd.Flags().String("country", "USA", "country to restrict the search to")
	cityAddCmd.Flags().String("state-code", "", "override the geocoded state code")
	_ = cityAddCmd.MarkFlagRequired("name")

	cityCmd.AddCommand(cityAddCmd)
	cityCmd.AddCommand(cityListCmd)
	rootCmd.AddCommand(cityCmd)
}
