package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

const version = "0.1.0"

var (
	serverFlag  string
	datasetFlag string
)

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     "storectl",
	Short:   "Superstore analytics CLI",
	Version: version,
	Long: `A command-line client for the superstore metrics server. Evaluates
measures under explicit filter contexts, inspects customer RFM profiles,
and manages dataset snapshots.`,
	Example: `  # Total sales and profit across the whole dataset
  $ storectl query -m TotalSales -m TotalProfit

  # Sales by region for 2023, largest first
  $ storectl query -m TotalSales -g region --from 2023-01-01 --to 2023-12-31

  # Monthly sales with year-over-year growth
  $ storectl query -m TotalSales -m YoYSalesGrowth --grain month

  # RFM profile for one customer
  $ storectl profile CG-12520

  # Rebuild the snapshot from a new fact file
  $ storectl refresh --source csv:/data/orders.csv`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if strings.Contains(err.Error(), "unknown command") {
			fmt.Println("\nRun 'storectl --help' for usage.")
		}
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(formatVersion())

	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", defaultServer(), "Server address")
	rootCmd.PersistentFlags().StringVarP(&datasetFlag, "dataset", "d", "", "Dataset ID (default dataset when empty)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(measuresCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(segmentsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(refreshCmd)
}

func defaultServer() string {
	if s := os.Getenv("SUPERSTORE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func formatVersion() string {
	return fmt.Sprintf("storectl version %s\n", version)
}

func newClient() (*apiClient, error) {
	return newAPIClient(serverFlag, datasetFlag)
}

// commandContext bounds one CLI call.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// formatValue renders a measure value, using "-" for the no-value sentinel.
func formatValue(v domain.Value) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// --- query ---

var (
	queryMeasures      []string
	queryGroupBy       string
	queryGrain         string
	queryRegions       []string
	queryCategories    []string
	querySubCategories []string
	querySegments      []string
	queryCustomers     []string
	queryFrom          string
	queryTo            string
	queryExpr          string
	queryLimit         int
	queryJSON          bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "evaluate measures under a filter context",
	Long: `Evaluate one or more measures against the current dataset snapshot.

Without --group-by or --grain the result is scalar. --group-by groups by a
fact dimension (region, category, sub_category, segment, product_name,
customer_id) ranked by sales. --grain groups by calendar period (year,
quarter, month) in chronological order.`,
	Example: `  # Profit margin for the Technology category in the West
  $ storectl query -m ProfitMargin --category Technology --region West

  # Top five products by sales
  $ storectl query -m TotalSales -g product_name --limit 5

  # High-value rows only, via a CEL expression
  $ storectl query -m TotalOrders --expr 'sales > 500.0 && discount == 0.0'`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVarP(&queryMeasures, "measure", "m", nil, "Measure to evaluate (repeatable)")
	queryCmd.Flags().StringVarP(&queryGroupBy, "group-by", "g", "", "Fact dimension to group by")
	queryCmd.Flags().StringVar(&queryGrain, "grain", "", "Calendar grain to group by (year, quarter, month)")
	queryCmd.Flags().StringSliceVar(&queryRegions, "region", nil, "Region slicer (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryCategories, "category", nil, "Category slicer (repeatable)")
	queryCmd.Flags().StringSliceVar(&querySubCategories, "subcategory", nil, "Sub-category slicer (repeatable)")
	queryCmd.Flags().StringSliceVar(&querySegments, "segment", nil, "Segment slicer (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryCustomers, "customer", nil, "Customer ID slicer (repeatable)")
	queryCmd.Flags().StringVar(&queryFrom, "from", "", "Inclusive order-date lower bound (YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryTo, "to", "", "Inclusive order-date upper bound (YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryExpr, "expr", "", "CEL row predicate")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Cap the number of returned groups (0 = all)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the raw JSON report")

	queryCmd.SilenceUsage = true
}

func runQuery(cmd *cobra.Command, args []string) error {
	if len(queryMeasures) == 0 {
		return fmt.Errorf("at least one --measure is required")
	}

	ctx, cancel := commandContext()
	defer cancel()

	q := &domain.Query{
		Measures: queryMeasures,
		GroupBy:  queryGroupBy,
		Grain:    domain.Grain(queryGrain),
		Limit:    queryLimit,
		Context: domain.FilterContext{
			Regions:       queryRegions,
			Categories:    queryCategories,
			SubCategories: querySubCategories,
			Segments:      querySegments,
			CustomerIDs:   queryCustomers,
			Expression:    queryExpr,
		},
	}

	if queryFrom != "" {
		from, err := time.Parse("2006-01-02", queryFrom)
		if err != nil {
			return fmt.Errorf("invalid --from date %q, want YYYY-MM-DD", queryFrom)
		}
		q.Context.DateFrom = &from
	}
	if queryTo != "" {
		to, err := time.Parse("2006-01-02", queryTo)
		if err != nil {
			return fmt.Errorf("invalid --to date %q, want YYYY-MM-DD", queryTo)
		}
		q.Context.DateTo = &to
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	report, err := client.Query(ctx, q)
	if err != nil {
		return err
	}

	if queryJSON {
		return printJSON(report)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if len(report.Groups) > 0 {
		fmt.Fprintf(w, "KEY\tROWS")
		for _, m := range queryMeasures {
			fmt.Fprintf(w, "\t%s", strings.ToUpper(m))
		}
		fmt.Fprintln(w)
		for _, g := range report.Groups {
			fmt.Fprintf(w, "%s\t%d", g.Key, g.Rows)
			for _, m := range queryMeasures {
				fmt.Fprintf(w, "\t%s", formatValue(g.Measures[m]))
			}
			fmt.Fprintln(w)
		}
	} else {
		fmt.Fprintln(w, "MEASURE\tVALUE")
		for _, m := range queryMeasures {
			fmt.Fprintf(w, "%s\t%s\n", m, formatValue(report.Scalars[m]))
		}
	}
	w.Flush()

	md := report.Metadata
	cached := ""
	if md.CacheHit {
		cached = " (cached)"
	}
	fmt.Printf("\n%d of %d rows matched, snapshot v%d, %dms%s\n",
		md.RowsMatched, md.RowsScanned, md.SnapshotVersion, md.EvalMs, cached)
	return nil
}

// --- measures ---

var measuresCmd = &cobra.Command{
	Use:   "measures",
	Short: "list the measure catalog",
	RunE:  runMeasures,
}

func init() {
	measuresCmd.SilenceUsage = true
}

func runMeasures(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	measures, err := client.Measures(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tDESCRIPTION")
	for _, m := range measures {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.Kind, m.Description)
	}
	return w.Flush()
}

// --- profile ---

var profileRef string

var profileCmd = &cobra.Command{
	Use:   "profile <customer-id>",
	Short: "show the RFM profile for a customer",
	Args:  cobra.ExactArgs(1),
	Example: `  # Profile against the snapshot reference date
  $ storectl profile CG-12520

  # Profile as of a specific date
  $ storectl profile CG-12520 --ref 2024-06-30`,
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profileRef, "ref", "", "Recency reference date (YYYY-MM-DD)")
	profileCmd.SilenceUsage = true
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	profile, err := client.Profile(ctx, args[0], profileRef)
	if err != nil {
		return err
	}

	fmt.Printf("Customer:     %s\n", profile.CustomerID)
	fmt.Printf("Frequency:    %d orders (%s)\n", profile.Frequency, profile.FrequencyBand)
	fmt.Printf("Recency:      %d days (%s)\n", profile.Recency, profile.RecencyBand)
	fmt.Printf("Monetary:     %.2f\n", profile.Monetary)
	fmt.Printf("First order:  %s\n", profile.FirstOrderDate.Format("2006-01-02"))
	fmt.Printf("Last order:   %s\n", profile.LastOrderDate.Format("2006-01-02"))
	return nil
}

// --- segments ---

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "show customer counts per RFM segment",
	RunE:  runSegments,
}

func init() {
	segmentsCmd.SilenceUsage = true
}

func runSegments(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	segments, err := client.Segments(ctx)
	if err != nil {
		return err
	}

	total := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FREQUENCY\tRECENCY\tCUSTOMERS")
	for _, s := range segments {
		fmt.Fprintf(w, "%s\t%s\t%d\n", s.FrequencyBand, s.RecencyBand, s.Customers)
		total += s.Customers
	}
	w.Flush()
	fmt.Printf("\n%d customers\n", total)
	return nil
}

// --- snapshot ---

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "show snapshot version, row count, and recent loads",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.SilenceUsage = true
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	resp, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}

	info := resp.Snapshot
	fmt.Printf("Dataset:    %s\n", info.DatasetID)
	fmt.Printf("Version:    %d\n", info.Version)
	fmt.Printf("Rows:       %d\n", info.Rows)
	fmt.Printf("Customers:  %d\n", info.Customers)
	fmt.Printf("Dates:      %s to %s (%d calendar days)\n",
		info.MinOrderDate.Format("2006-01-02"),
		info.MaxOrderDate.Format("2006-01-02"),
		info.CalendarDays)
	fmt.Printf("Loaded at:  %s\n", info.LoadedAt.Format(time.RFC3339))

	if len(resp.RecentLoads) > 0 {
		fmt.Println("\nRecent loads:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tROWS\tSKIPPED\tDURATION\tLOADED AT")
		for _, a := range resp.RecentLoads {
			fmt.Fprintf(w, "%s\t%d\t%d\t%dms\t%s\n",
				a.Source, a.Rows, a.Skipped, a.DurationMs, a.LoadedAt.Format(time.RFC3339))
		}
		w.Flush()
	}
	return nil
}

// --- refresh ---

var refreshSource string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "request a snapshot rebuild",
	Long: `Request an asynchronous snapshot rebuild. With --source csv:<path> the
server reloads facts from the file before rebuilding; the path must be
readable by the server process.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshSource, "source", "", "Fact source, e.g. csv:/data/orders.csv")
	refreshCmd.SilenceUsage = true
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	dataset, err := client.Refresh(ctx, refreshSource)
	if err != nil {
		return err
	}
	fmt.Printf("refresh requested for dataset %s\n", dataset)
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
