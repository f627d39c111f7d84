package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	validateFull  bool
	validateBatch string
	validateLimit int
)

var validateCmd = &cobra.Command{
	Use:   "validate BATCH_ID",
	Short: "Validate an import batch and store the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Validator.Run(cmd.Context(), args[0], validateFull)
		if err != nil {
			return err
		}
		zap.L().Info("validation complete",
			zap.String("batch_id", args[0]),
			zap.String("status", string(res.Status)),
			zap.Int("overall_score", res.OverallScore),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var validateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored validation reports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Validator.List(cmd.Context(), validateBatch, validateLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateFull, "full", false, "also run the SEO checks")
	validateListCmd.Flags().StringVar(&validateBatch, "batch", "", "only reports for this batch")
	validateListCmd.Flags().IntVar(&validateLimit, "limit", 50, "maximum reports to list")

	validateCmd.AddCommand(validateListCmd)
	rootCmd.AddCommand(validateCmd)
}
