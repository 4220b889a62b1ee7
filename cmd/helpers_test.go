//go:build !integration

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placesync/internal/config"
)

// testConfig points cfg at a fresh SQLite database.
func testConfig(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "placesync.db")
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: dsn},
		Geocode: config.GeocodeConfig{
			UserAgent:  "placesync-test",
			RatePerSec: 1000,
		},
		Pipeline: config.PipelineConfig{
			NormalizeWorkers: 2,
			UpsertRetries:    1,
			ProviderOrder:    []string{"google", "yelp"},
		},
		Server: config.ServerConfig{Port: 8080},
	}
	return dsn
}

// runCmd executes cmd's RunE with the given flags and captures stdout. Flags
// are reset to their defaults when the test ends.
func runCmd(t *testing.T, cmd *cobra.Command, flags map[string]string) (string, error) {
	t.Helper()
	for name, val := range flags {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, "unknown flag %s", name)
		require.NoError(t, cmd.Flags().Set(name, val))
		t.Cleanup(func() {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetContext(nil) //nolint:staticcheck
	})

	err := cmd.RunE(cmd, nil)
	return out.String(), err
}
