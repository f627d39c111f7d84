package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/business"
	"github.com/sells-group/bizdir/internal/store"
)

var dedupeApply bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find businesses the duplicate rules consider the same",
	Long:  "Groups existing businesses by the import duplicate rules. With --apply, every business but the oldest in each group is deleted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "maintenance")
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = dedupe(cmd.Context(), env.Store, dedupeApply, cmd.OutOrStdout())
		return err
	},
}

// dedupe prints each duplicate group, oldest first, and deletes the newer
// members when apply is set. It returns the number of businesses deleted.
func dedupe(ctx context.Context, st store.Store, apply bool, w io.Writer) (int, error) {
	all, err := st.ListBusinesses(ctx, store.BusinessFilter{})
	if err != nil {
		return 0, eris.Wrap(err, "dedupe: list businesses")
	}

	groups := business.Scan(all)
	deleted := 0
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%s, %s)\n", g[0].Name, g[0].City, g[0].ID)
		for _, dup := range g[1:] {
			fmt.Fprintf(w, "  duplicate %s (%s)\n", dup.ID, dup.Slug)
			if !apply {
				continue
			}
			if err := st.DeleteBusiness(ctx, dup.ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}

	zap.L().Info("duplicate scan complete",
		zap.Int("businesses", len(all)),
		zap.Int("groups", len(groups)),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeApply, "apply", false, "delete the newer duplicates")
	rootCmd.AddCommand(dedupeCmd)
}
