package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/bizdir/internal/geocoding"
	"github.com/sells-group/bizdir/pkg/geocode"
)

var (
	geocodeBatch  string
	geocodeLimit  int
	geocodeDryRun bool
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Fill in coordinates for businesses that have an address but no location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "geocode")
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := geocoding.New(env.Store, env.Recorder, newGeocoder()).Run(ctx, geocoding.Options{
			BatchID: geocodeBatch,
			Limit:   geocodeLimit,
			DryRun:  geocodeDryRun,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

func newGeocoder() geocode.Client {
	var opts []geocode.Option
	if cfg.Geocode.RequestsPerSec > 0 {
		opts = append(opts, geocode.WithRateLimit(cfg.Geocode.RequestsPerSec))
	}
	if cfg.Geocode.GoogleFallback {
		opts = append(opts, geocode.WithGoogleAPIKey(cfg.Google.Key))
	}
	return geocode.NewClient(opts...)
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeBatch, "batch", "", "only businesses from this import batch")
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "maximum businesses to geocode (0 = all)")
	geocodeCmd.Flags().BoolVar(&geocodeDryRun, "dry-run", false, "report matches without recording them")
	rootCmd.AddCommand(geocodeCmd)
}
