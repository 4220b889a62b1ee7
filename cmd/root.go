package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "placesync",
	Short: "Venue aggregation and reconciliation pipeline",
	Long:  "Collects venue listings from Google Places and Yelp, normalizes them into one schema and reconciles them into a deduplicated dataset.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys usually live in .env; a missing file is fine.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return eris.Wrap(err, "load .env")
		}

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
