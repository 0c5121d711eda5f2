package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"govariant/adapters/excel"
	"govariant/app"
	"govariant/domain/core"
	"govariant/internal"
	"govariant/internal/config"
	"govariant/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "govariant-cli",
		Short:        "Train, evaluate and query variant pathogenicity classifiers",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newTrainCmd(),
		newPredictCmd(),
		newRunsCmd(),
		newGenerateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the container. withRegistry
// connects the run registry when DATABASE_URL is set.
func setup(ctx context.Context, withRegistry bool) (*container.Container, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))

	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if !withRegistry {
		return c, nil
	}
	db, err := container.OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := c.InitWithDatabase(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return c, nil
}

func newTrainCmd() *cobra.Command {
	var (
		seed         int64
		testFraction float64
		threshold    float64
		reportPath   string
		htmlPath     string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "train [data-file]",
		Short: "Fit every classifier kind, select the best and publish it",
		Long: `Train logistic regression and random forest classifiers on a curated
variant table (CSV, TSV or XLSX, optionally gzipped), evaluate both on a
stratified held-out split, and publish the selected model to MODEL_DIR.

Site annotations are read from ANNOTATIONS_FILE. When DATABASE_URL is set the
run manifest and every evaluation report are recorded in the registry.

Example: govariant-cli train clinvar_missense.csv --seed 42 --test-fraction 0.2 --report run.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			req := app.TrainingRequest{
				Seed:         c.Config.Pipeline.Seed,
				TestFraction: c.Config.Pipeline.TestFraction,
				Threshold:    c.Config.Pipeline.Threshold,
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = seed
			}
			if cmd.Flags().Changed("test-fraction") {
				req.TestFraction = testFraction
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = threshold
			}

			raw, err := excel.NewDataReader(args[0], c.Logger).ReadRecords(ctx)
			if err != nil {
				return err
			}
			req.Raw = raw

			result, err := c.TrainingService.Train(ctx, req)
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := os.WriteFile(reportPath, []byte(app.RenderMarkdown(result)), 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
			}
			if htmlPath != "" {
				if err := os.WriteFile(htmlPath, app.RenderHTML(result), 0o644); err != nil {
					return fmt.Errorf("failed to write html report: %w", err)
				}
			}
			if jsonOutput {
				return printJSON(result)
			}
			fmt.Print(app.RenderMarkdown(result))
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", app.DefaultSeed, "Random seed for splitting and forest fitting (default from SEED)")
	cmd.Flags().Float64Var(&testFraction, "test-fraction", app.DefaultTestFraction, "Held-out fraction per label (default from TEST_FRACTION)")
	cmd.Flags().Float64Var(&threshold, "threshold", app.DefaultThreshold, "Decision threshold for the confusion matrix (default from THRESHOLD)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the markdown run report to this path")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Write the HTML run report to this path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func newPredictCmd() *cobra.Command {
	var (
		handle     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "predict [data-file]",
		Short: "Score every variant in a table with a published model",
		Long: `Score variants with a published model. Without --handle the model is
MODEL_HANDLE, else the registry's latest for the current schema, else the
newest model in MODEL_DIR.

Example: govariant-cli predict candidates.xlsx --handle 0190c3a4-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := setup(ctx, handle == "")
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if handle != "" {
				h, err := core.ParseModelHandle(handle)
				if err != nil {
					return err
				}
				if err := c.Predictor.LoadFromStore(ctx, c.Store, h); err != nil {
					return err
				}
			} else if err := c.LoadInitialModel(ctx); err != nil {
				return err
			}
			if c.Predictor.Current() == nil {
				return core.ErrNoModelLoaded
			}

			raw, err := excel.NewDataReader(args[0], c.Logger).ReadRecords(ctx)
			if err != nil {
				return err
			}
			res, err := c.Predictor.PredictBatch(ctx, raw)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(res)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROW\tVARIANT\tHGVS_P\tPROBABILITY\tMODEL")
			for i, p := range res.Predictions {
				rec := res.Records[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%s\n", res.Indices[i], rec.Key(), rec.ProteinChange, p.Probability, p.Kind)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if res.Summary.Excluded > 0 {
				fmt.Fprintf(os.Stderr, "%d of %d rows excluded:\n", res.Summary.Excluded, res.Summary.Total)
				for _, reason := range res.Summary.Reasons() {
					fmt.Fprintf(os.Stderr, "  %s: %d\n", reason, res.Summary.ByReason[reason])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "Model handle to load")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print predictions as JSON")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded training runs, or show one with its reports",
		Long: `Query the run registry (requires DATABASE_URL).

Example: govariant-cli runs --limit 5
         govariant-cli runs 0190c3a4-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())
			if c.Registry == nil {
				return fmt.Errorf("run registry is not configured: set DATABASE_URL")
			}

			if len(args) == 1 {
				id, err := core.ParseRunID(args[0])
				if err != nil {
					return err
				}
				rec, err := c.Registry.GetRun(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(rec)
			}

			runs, err := c.Registry.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCREATED\tSCHEMA\tSEED\tTRAIN\tTEST\tEXCLUDED\tSELECTED\tHANDLE")
			for _, m := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
					m.RunID, m.CreatedAt.Format("2006-01-02 15:04:05"), m.SchemaVersion, m.Seed,
					m.TrainSize, m.TestSize, m.Excluded, m.SelectedKind, m.ModelHandle)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
