package main

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/importer"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/resilience"
	"github.com/sells-group/bizdir/internal/waterfall"
	"github.com/sells-group/bizdir/pkg/google"
)

var (
	importFile            string
	importSheet           string
	importSource          string
	importImportedBy      string
	importAllowDuplicates bool

	gmbQuery     string
	gmbCategory  string
	gmbPages     int
	gmbMinRating float64
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import businesses under a tracked import batch",
}

var importCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Import businesses from a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFileImport(cmd, "csv", func(ctx context.Context) ([]model.BusinessRecord, error) {
			f, err := os.Open(importFile)
			if err != nil {
				return nil, eris.Wrap(err, "open csv")
			}
			defer f.Close() //nolint:errcheck
			return importer.ParseCSV(ctx, f)
		})
	},
}

var importXLSXCmd = &cobra.Command{
	Use:   "xlsx",
	Short: "Import businesses from an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFileImport(cmd, "xlsx", func(context.Context) ([]model.BusinessRecord, error) {
			return importer.ParseXLSX(importFile, importSheet)
		})
	},
}

var importJSONCmd = &cobra.Command{
	Use:   "json",
	Short: "Import businesses from a JSON array of records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFileImport(cmd, "json", func(ctx context.Context) ([]model.BusinessRecord, error) {
			f, err := os.Open(importFile)
			if err != nil {
				return nil, eris.Wrap(err, "open json")
			}
			defer f.Close() //nolint:errcheck
			return importer.ParseJSON(ctx, f)
		})
	},
}

var importGMBCmd = &cobra.Command{
	Use:   "gmb",
	Short: "Import Google Business listings and their reviews from a Places text search",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "gmb")
		if err != nil {
			return err
		}
		defer env.Close()

		places := &guardedPlaces{
			client: google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL)),
			guard:  resilience.NewGuard("google_places", cfg.Resilience.Settings()),
		}
		found, err := google.SearchAll(ctx, places, google.TextSearchRequest{
			TextQuery:  gmbQuery,
			RegionCode: "US",
			MinRating:  gmbMinRating,
		}, gmbPages)
		if err != nil {
			return eris.Wrap(err, "search places")
		}

		listings := make([]importer.Listing, 0, len(found))
		for _, p := range found {
			listings = append(listings, importer.FromPlace(p, gmbCategory))
		}

		out, err := env.Runner.RunListings(ctx, listings, importer.RunOptions{
			Type:            "gmb",
			ImportedBy:      importedBy(),
			Source:          waterfall.SourceGMBAPI,
			SourceMetadata:  map[string]any{"query": gmbQuery},
			AllowDuplicates: importAllowDuplicates,
		})
		if err != nil {
			return eris.Wrap(err, "import gmb")
		}
		logImport(out)
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func runFileImport(cmd *cobra.Command, kind string, parse func(context.Context) ([]model.BusinessRecord, error)) error {
	ctx := cmd.Context()
	env, err := initEnv(ctx, "import")
	if err != nil {
		return err
	}
	defer env.Close()

	records, err := parse(ctx)
	if err != nil {
		return eris.Wrapf(err, "parse %s", importFile)
	}

	source := importSource
	if source == "" {
		source = cfg.Import.DefaultSource
	}
	out, err := env.Runner.Run(ctx, records, importer.RunOptions{
		Type:            kind,
		ImportedBy:      importedBy(),
		Source:          source,
		SourceMetadata:  map[string]any{"file": importFile},
		AllowDuplicates: importAllowDuplicates,
	})
	if err != nil {
		return eris.Wrapf(err, "import %s", kind)
	}
	logImport(out)
	return printJSON(cmd.OutOrStdout(), out)
}

func importedBy() string {
	if importImportedBy != "" {
		return importImportedBy
	}
	return cfg.Import.ImportedBy
}

func logImport(out *importer.RunResult) {
	zap.L().Info("import complete",
		zap.String("batch_id", out.Batch.ID),
		zap.Int("successful", out.Result.Successful),
		zap.Int("skipped", out.Result.Skipped),
		zap.Int("failed", out.Result.Failed),
		zap.Int("reviews", out.ReviewsCreated),
	)
}

// guardedPlaces retries transient Places failures and stops calling the API
// while its circuit is open.
type guardedPlaces struct {
	client google.Client
	guard  *resilience.Guard
}

func (p *guardedPlaces) TextSearch(ctx context.Context, req google.TextSearchRequest) (*google.TextSearchResponse, error) {
	return resilience.Call(ctx, p.guard, func(ctx context.Context) (*google.TextSearchResponse, error) {
		resp, err := p.client.TextSearch(ctx, req)
		var se *google.StatusError
		if errors.As(err, &se) {
			return nil, resilience.ForStatus(err, se.Code)
		}
		return resp, err
	})
}

func init() {
	for _, c := range []*cobra.Command{importCSVCmd, importXLSXCmd, importJSONCmd} {
		c.Flags().StringVar(&importFile, "file", "", "path to the input file (required)")
		_ = c.MarkFlagRequired("file")
		c.Flags().StringVar(&importSource, "source", "", "source name recorded for every field (default from config)")
	}
	importXLSXCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet name (default first sheet)")

	importGMBCmd.Flags().StringVar(&gmbQuery, "query", "", `Places text query, e.g. "plumbers in Mesa AZ" (required)`)
	_ = importGMBCmd.MarkFlagRequired("query")
	importGMBCmd.Flags().StringVar(&gmbCategory, "category", "", "category id assigned to every listing")
	importGMBCmd.Flags().IntVar(&gmbPages, "pages", 1, "maximum result pages to fetch")
	importGMBCmd.Flags().Float64Var(&gmbMinRating, "min-rating", 0, "skip listings rated below this")

	importCmd.PersistentFlags().StringVar(&importImportedBy, "imported-by", "", "who ran the import (default from config)")
	importCmd.PersistentFlags().BoolVar(&importAllowDuplicates, "allow-duplicates", false, "import records that match an existing business")

	importCmd.AddCommand(importCSVCmd, importXLSXCmd, importJSONCmd, importGMBCmd)
	rootCmd.AddCommand(importCmd)
}
