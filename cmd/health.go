package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/bizdir/internal/config"
	"github.com/sells-group/bizdir/internal/monitoring"
	"github.com/sells-group/bizdir/internal/store"
)

var (
	healthLookback int
	healthSend     bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Summarize recent import and validation health and evaluate alert thresholds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		mc := cfg.Monitoring
		if healthLookback > 0 {
			mc.LookbackWindowHours = healthLookback
		}
		rep, err := newChecker(env.Store, mc).Check(ctx, healthSend)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rep)
	},
}

func newChecker(st store.Store, mc config.MonitoringConfig) *monitoring.Checker {
	collector := monitoring.NewCollector(st, time.Duration(mc.StalePendingMins)*time.Minute)
	return monitoring.NewChecker(collector, monitoring.NewAlerter(mc), mc)
}

func init() {
	healthCmd.Flags().IntVar(&healthLookback, "lookback", 0, "lookback window in hours (default from config)")
	healthCmd.Flags().BoolVar(&healthSend, "send", false, "post triggered alerts to monitoring.webhook_url")
	rootCmd.AddCommand(healthCmd)
}
