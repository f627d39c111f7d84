package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and override per-field data sources",
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show BUSINESS_ID",
	Short: "Show every field's contributions and active source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Recorder.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), recs)
	},
}

var sourcesSetCmd = &cobra.Command{
	Use:   "set BUSINESS_ID FIELD SOURCE",
	Short: "Make SOURCE's latest value active for FIELD and lock the field",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSource(cmd, func(env *appEnv) (*model.SourceRecord, error) {
			return env.Recorder.SetActiveSource(cmd.Context(), args[0], args[1], args[2])
		})
	},
}

var sourcesLockCmd = &cobra.Command{
	Use:   "lock BUSINESS_ID FIELD",
	Short: "Freeze a field's active value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSource(cmd, func(env *appEnv) (*model.SourceRecord, error) {
			return env.Recorder.Lock(cmd.Context(), args[0], args[1])
		})
	},
}

var sourcesUnlockCmd = &cobra.Command{
	Use:   "unlock BUSINESS_ID FIELD",
	Short: "Release a field and re-resolve it by source priority",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSource(cmd, func(env *appEnv) (*model.SourceRecord, error) {
			return env.Recorder.Unlock(cmd.Context(), args[0], args[1])
		})
	},
}

var sourcesRecalcCmd = &cobra.Command{
	Use:   "recalc BUSINESS_ID",
	Short: "Re-resolve every unlocked field of a business",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		changed, err := env.Recorder.Recalculate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		zap.L().Info("source priorities recalculated",
			zap.String("business_id", args[0]),
			zap.Strings("changed", changed),
		)
		return printJSON(cmd.OutOrStdout(), map[string]any{"business_id": args[0], "changed": changed})
	},
}

func updateSource(cmd *cobra.Command, fn func(env *appEnv) (*model.SourceRecord, error)) error {
	env, err := initEnv(cmd.Context(), "maintenance")
	if err != nil {
		return err
	}
	defer env.Close()

	rec, err := fn(env)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func init() {
	sourcesCmd.AddCommand(sourcesShowCmd, sourcesSetCmd, sourcesLockCmd, sourcesUnlockCmd, sourcesRecalcCmd)
	rootCmd.AddCommand(sourcesCmd)
}
