package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang-statement-reconciler/cmd/reconciler/config"
	"golang-statement-reconciler/internal/parsers"
	"golang-statement-reconciler/internal/reconciler"
	"golang-statement-reconciler/internal/reporter"
	"golang-statement-reconciler/internal/store"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultPrecision = 2

// stopSignals cancel a running merge
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// mergeOptions are the merge settings after flags, config file and
// environment have been combined
type mergeOptions struct {
	Input            string
	OutputFormat     string
	OutputFile       string
	Statements       []string
	Matching         string
	SectionThreshold float64
	Authority        string
	NoPresenceCheck  bool
	Concurrency      int
	MaxErrors        int
	NoRepair         bool
	Ticker           string
	Store            string
	Precision        int
	IncludeStats     bool
	Progress         bool
	Verbose          bool
	LogFormat        string
}

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge statements from several filings into one multi-period view",
	Long: `Merge reads one statement set per filing period and folds them, newest
filing first, into one catalog per statement type. Restated values from newer
filings overwrite older ones, values the authoritative filing does not report
are zeroed, and the result is ordered like the newest filing.

The input is a period bundle (.json), an aggregate bundle with a "years"
object, or a directory of bundles and <period>.<statement>.html inline XBRL
fragments.

Examples:
  # Merge a directory of filings and print tables
  reconciler merge --input ./filings/ACME

  # Spreadsheet with one sheet per statement
  reconciler merge --input ./filings/ACME --output-format xlsx --output-file acme.xlsx

  # Only the balance sheet, merging sections on strong evidence only
  reconciler merge --input acme.json --statements balance_sheet --matching strict

  # Keep run history
  reconciler merge --input ./filings/ACME --ticker ACME --store runs.db`,

	PreRunE: validateMergeFlags,
	RunE:    runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	// Input flags
	mergeCmd.Flags().StringP("input", "i", "", "filing bundle file or directory (required)")
	mergeCmd.Flags().StringSliceP("statements", "s", nil, "statement types to merge (default: all)")
	mergeCmd.Flags().String("ticker", "", "ticker recorded with the run (default: from the bundle)")
	mergeCmd.Flags().Int("concurrency", 3, "files decoded in parallel")
	mergeCmd.Flags().Int("max-errors", 0, "stop loading after this many failed files (0: never)")
	mergeCmd.Flags().Bool("no-repair", false, "do not repair malformed JSON")

	// Output flags
	mergeCmd.Flags().StringP("output-format", "f", "console", "output format: console, json, yaml, csv, xlsx")
	mergeCmd.Flags().StringP("output-file", "o", "", "output file path (default: stdout)")
	mergeCmd.Flags().Int("precision", defaultPrecision, "digits after the decimal point in console and csv output")
	mergeCmd.Flags().Bool("stats", false, "include merge statistics in console output")

	// Matching flags
	mergeCmd.Flags().String("matching", config.PresetDefault, "matching preset: "+strings.Join(config.MatchingPresets(), ", "))
	mergeCmd.Flags().Float64("section-threshold", 0, "minimum matched-item fraction to bind a relabeled section (0: preset value)")
	mergeCmd.Flags().String("authority", string(reconciler.AuthorityOwnPeriod), "presence authority: own-period, newest-covering")
	mergeCmd.Flags().Bool("no-presence-check", false, "keep values the authoritative filing does not report")

	// UI flags
	mergeCmd.Flags().Bool("progress", false, "show progress indicators")

	for _, name := range []string{
		"input", "statements", "ticker", "concurrency", "max-errors", "no-repair",
		"output-format", "output-file", "precision", "stats",
		"matching", "section-threshold", "authority", "no-presence-check", "progress",
	} {
		viper.BindPFlag(name, mergeCmd.Flags().Lookup(name))
	}
}

// loadMergeOptions reads merge settings from viper
func loadMergeOptions() *mergeOptions {
	opts := &mergeOptions{
		Input:            viper.GetString("input"),
		OutputFormat:     strings.ToLower(viper.GetString("output-format")),
		OutputFile:       viper.GetString("output-file"),
		Statements:       viper.GetStringSlice("statements"),
		Matching:         viper.GetString("matching"),
		SectionThreshold: viper.GetFloat64("section-threshold"),
		Authority:        viper.GetString("authority"),
		NoPresenceCheck:  viper.GetBool("no-presence-check"),
		Concurrency:      viper.GetInt("concurrency"),
		MaxErrors:        viper.GetInt("max-errors"),
		NoRepair:         viper.GetBool("no-repair"),
		Ticker:           viper.GetString("ticker"),
		Store:            viper.GetString("store"),
		Precision:        viper.GetInt("precision"),
		IncludeStats:     viper.GetBool("stats"),
		Progress:         viper.GetBool("progress"),
		Verbose:          viper.GetBool("verbose"),
		LogFormat:        viper.GetString("log-format"),
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = string(reporter.FormatConsole)
	}
	if !viper.IsSet("precision") {
		opts.Precision = defaultPrecision
	}
	return opts
}

func validateMergeFlags(cmd *cobra.Command, args []string) error {
	opts := loadMergeOptions()

	if opts.Input == "" {
		return errors.ValidationError(errors.CodeMissingField, "input", nil, nil).
			WithSuggestion("Pass --input with a filing bundle or a directory of filings")
	}
	if _, err := os.Stat(opts.Input); err != nil {
		if os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, opts.Input, err)
		}
		return errors.FileError(errors.CodeFilePermission, opts.Input, err)
	}

	format := reporter.OutputFormat(opts.OutputFormat)
	if !format.IsValid() {
		return errors.ExportError(errors.CodeUnsupportedFormat, opts.OutputFormat, nil)
	}
	if format.IsBinary() && opts.OutputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output-file", nil, nil).
			WithSuggestion(fmt.Sprintf("%s output must be written to a file; pass --output-file", format))
	}

	if opts.SectionThreshold < 0 || opts.SectionThreshold > 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "section-threshold", opts.SectionThreshold, nil).
			WithSuggestion("Use a fraction between 0.0 and 1.0")
	}
	if opts.Concurrency < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "concurrency", opts.Concurrency, nil).
			WithSuggestion("Use a positive number of workers")
	}

	if _, err := config.ParseStatementTypes(opts.Statements); err != nil {
		return err
	}

	if opts.OutputFile != "" {
		dir := filepath.Dir(opts.OutputFile)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return errors.FileError(errors.CodeDirectoryError, dir, err)
		}
	}

	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	opts := loadMergeOptions()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, stopSignals...)
	defer stop()

	machineOutput := opts.OutputFile == "" && opts.OutputFormat != string(reporter.FormatConsole)
	logConfig, err := config.CreateLoggerConfig(opts.Verbose, opts.LogFormat, machineOutput)
	if err != nil {
		return err
	}
	log, err := logger.NewLoggerWithWriter(logConfig, cmd.ErrOrStderr())
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "logger", logConfig, err)
	}
	logger.SetGlobalLogger(log)

	orchestrator, err := buildOrchestrator(opts)
	if err != nil {
		return err
	}

	if opts.Store != "" {
		st, err := store.Open(ctx, opts.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		orchestrator.WithRecorder(st)
	}

	stderr := cmd.ErrOrStderr()
	if opts.Progress {
		orchestrator.AddProgressCallback(func(p reconciler.ReconciliationProgress) {
			fmt.Fprintf(stderr, "\r[%d/%d] %s (%.1f%% complete)",
				p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
		})
	}

	result, runErr := orchestrator.Run(ctx, &reconciler.MergeRequest{Input: opts.Input, Ticker: opts.Ticker})
	if opts.Progress {
		fmt.Fprintf(stderr, "\n")
	}
	if result == nil {
		return runErr
	}

	if err := writeReport(cmd.OutOrStdout(), stderr, opts, result, log); err != nil {
		return err
	}

	if opts.Verbose {
		printMergeSummary(stderr, result)
	}

	return runErr
}

// buildOrchestrator wires loader, engine and orchestrator from opts
func buildOrchestrator(opts *mergeOptions) (*reconciler.Orchestrator, error) {
	statements, err := config.ParseStatementTypes(opts.Statements)
	if err != nil {
		return nil, err
	}

	matchingConfig, err := config.CreateMatchingConfig(opts.Matching, opts.SectionThreshold)
	if err != nil {
		return nil, err
	}

	loaderConfig, err := config.CreateLoaderConfig(opts.Concurrency, opts.MaxErrors, !opts.NoRepair, statements)
	if err != nil {
		return nil, err
	}
	loader, err := parsers.NewLoader(loaderConfig)
	if err != nil {
		return nil, err
	}

	engineConfig, err := config.CreateReconcilerConfig(matchingConfig, statements, !opts.NoPresenceCheck, opts.Authority)
	if err != nil {
		return nil, err
	}
	engine, err := reconciler.NewEngine(engineConfig)
	if err != nil {
		return nil, err
	}

	return reconciler.NewOrchestrator(engine, loader)
}

func writeReport(stdout, stderr io.Writer, opts *mergeOptions, result *reconciler.AggregateResult, log logger.Logger) error {
	reportConfig, err := config.CreateReportConfig(opts.OutputFormat, opts.Precision, opts.IncludeStats)
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if opts.OutputFile == "" {
		return generator.GenerateReportSafely(result, stdout)
	}

	written, err := generator.WriteToFile(result, opts.OutputFile)
	if err != nil {
		return err
	}
	if written != opts.OutputFile {
		fmt.Fprintf(stderr, "Warning: could not write to %s, report saved to %s\n", opts.OutputFile, written)
	}
	return nil
}

func printMergeSummary(w io.Writer, result *reconciler.AggregateResult) {
	fmt.Fprintf(w, "\nMerge completed.\n")
	if result.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", result.RunID)
	}
	for _, st := range result.Results() {
		stats := st.Stats
		if stats == nil {
			stats = &reconciler.StatementStats{}
		}
		fmt.Fprintf(w, "  %-20s %3d entries, %2d periods, %d filings (%d skipped), %d flagged, %d corrections\n",
			st.StatementType.Title()+":", st.Catalog.Len(), len(st.Periods),
			stats.Filings, stats.SkippedFilings, stats.Flagged, len(st.Corrections))
	}
	if len(result.LoadErrors) > 0 {
		fmt.Fprintf(w, "Skipped %d input problem(s):\n", len(result.LoadErrors))
		for _, e := range result.LoadErrors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}
