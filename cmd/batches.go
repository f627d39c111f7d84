package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/model"
)

var (
	batchesStatus    string
	batchesLimit     int
	batchesExportOut string
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect and maintain import batches",
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import batches, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status := model.BatchStatus(batchesStatus)
		if status != "" && !status.Valid() {
			return eris.Errorf("unknown status %q", batchesStatus)
		}
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Tracker.List(cmd.Context(), batchesLimit, status)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var batchesDeleteCmd = &cobra.Command{
	Use:   "delete BATCH_ID",
	Short: "Delete an import batch record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Tracker.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		zap.L().Info("batch deleted", zap.String("batch_id", args[0]))
		return nil
	},
}

var batchesFixPendingCmd = &cobra.Command{
	Use:   "fix-pending",
	Short: "Complete pending batches whose businesses were created",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		fixes, err := env.Tracker.FixPending(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("pending batches fixed", zap.Int("count", len(fixes)))
		return printJSON(cmd.OutOrStdout(), fixes)
	},
}

var batchesCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete failed and pending batch records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Tracker.CleanupOld(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("old batches removed", zap.Int("deleted", n))
		return nil
	},
}

var batchesExportCmd = &cobra.Command{
	Use:   "export BATCH_ID",
	Short: "Export a batch with its validation runs as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		exp, err := env.Tracker.Export(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if batchesExportOut == "" {
			return printJSON(cmd.OutOrStdout(), exp)
		}

		f, err := os.Create(batchesExportOut)
		if err != nil {
			return eris.Wrap(err, "create export file")
		}
		if err := printJSON(f, exp); err != nil {
			_ = f.Close()
			return eris.Wrap(err, "write export")
		}
		zap.L().Info("batch exported", zap.String("batch_id", args[0]), zap.String("file", batchesExportOut))
		return eris.Wrap(f.Close(), "close export file")
	},
}

func init() {
	batchesListCmd.Flags().StringVar(&batchesStatus, "status", "", "filter by status (pending, completed, failed)")
	batchesListCmd.Flags().IntVar(&batchesLimit, "limit", 50, "maximum batches to list")
	batchesExportCmd.Flags().StringVar(&batchesExportOut, "out", "", "write to this file instead of stdout")

	batchesCmd.AddCommand(batchesListCmd, batchesDeleteCmd, batchesFixPendingCmd, batchesCleanupCmd, batchesExportCmd)
	rootCmd.AddCommand(batchesCmd)
}
