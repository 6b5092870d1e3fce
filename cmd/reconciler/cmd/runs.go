package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang-statement-reconciler/internal/store"
	"golang-statement-reconciler/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored merge runs",
	Long: `Runs reads the history written by 'reconciler merge --store'.

Examples:
  reconciler runs list --store runs.db
  reconciler runs list --store runs.db --ticker ACME --limit 5
  reconciler runs show 3f1c... --store runs.db
  reconciler runs show 3f1c... --store runs.db --document > run.json
  reconciler runs delete 3f1c... --store runs.db`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)

	runsListCmd.Flags().String("ticker", "", "only runs for this ticker")
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs (0: all)")

	runsShowCmd.Flags().Bool("document", false, "print the stored result document as JSON")
	runsShowCmd.Flags().Bool("yaml", false, "print the run summary as YAML")
}

func openStore(cmd *cobra.Command) (*store.SQLiteStore, context.Context, error) {
	path := viper.GetString("store")
	if path == "" {
		return nil, nil, errors.ConfigurationError(errors.CodeMissingConfig, "store", nil, nil).
			WithSuggestion("Pass --store with the database used by 'reconciler merge --store'")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return st, ctx, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	st, ctx, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ticker, _ := cmd.Flags().GetString("ticker")
	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := st.ListRuns(ctx, store.ListOptions{Ticker: ticker, Limit: limit})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs stored\n")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTICKER\tCREATED\tENTRIES\tCORRECTIONS\tFLAGGED\tPERIODS\n")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, valueOr(r.Ticker, "-"), r.CreatedAt.Local().Format(time.DateTime),
			r.Entries, r.Corrections, r.Flagged, periodRange(r.Periods))
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	st, ctx, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	record, err := st.LoadRun(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if document, _ := cmd.Flags().GetBool("document"); document {
		var buf bytes.Buffer
		if err := json.Indent(&buf, record.Document, "", "  "); err != nil {
			return errors.StorageError(errors.CodeQueryFailed, "decode stored document", err)
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(out)
		return err
	}

	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(record); err != nil {
			return errors.ExportError(errors.CodeWriteFailed, "yaml", err)
		}
		return encoder.Close()
	}

	printRunRecord(out, record)
	return nil
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	st, ctx, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRun(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
	return nil
}

func printRunRecord(w io.Writer, record *store.RunRecord) {
	fmt.Fprintf(w, "Run:     %s\n", record.ID)
	fmt.Fprintf(w, "Ticker:  %s\n", valueOr(record.Ticker, "-"))
	fmt.Fprintf(w, "Created: %s\n", record.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Periods: %s\n", valueOr(strings.Join(record.Periods, ", "), "-"))
	if record.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", record.Error)
	}
	fmt.Fprintf(w, "\n")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "STATEMENT\tENTRIES\tCORRECTIONS\tFLAGGED\tPERIODS\n")
	for _, s := range record.Statements {
		periods := periodRange(s.Periods)
		if s.Error != "" {
			periods += " (" + s.Error + ")"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", s.StatementType.Title(), s.Entries, s.Corrections, s.Flagged, periods)
	}
	tw.Flush()
}

// periodRange renders newest-first period keys as "2024..2021"
func periodRange(periods []string) string {
	switch len(periods) {
	case 0:
		return "-"
	case 1:
		return periods[0]
	default:
		return periods[0] + ".." + periods[len(periods)-1]
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
