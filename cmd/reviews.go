package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/bizdir/internal/review"
)

var (
	reviewsBatchSize int
	reviewsForce     bool
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Analyze customer reviews",
}

var reviewsAnalyzeCmd = &cobra.Command{
	Use:   "analyze BUSINESS_ID",
	Short: "Score a business's reviews and update its insights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "reviews")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Reviews.AnalyzeBusiness(cmd.Context(), review.Request{
			BusinessID:   args[0],
			BatchSize:    reviewsBatchSize,
			SkipExisting: !reviewsForce,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	reviewsAnalyzeCmd.Flags().IntVar(&reviewsBatchSize, "batch-size", 0, "reviews per page (default from config)")
	reviewsAnalyzeCmd.Flags().BoolVar(&reviewsForce, "force", false, "re-analyze reviews that already have an analysis")

	reviewsCmd.AddCommand(reviewsAnalyzeCmd)
	rootCmd.AddCommand(reviewsCmd)
}
