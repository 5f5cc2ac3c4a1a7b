package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/patentsearch/internal/querylog"
)

var logsCmd = &cobra.Command{
	Use:   "logs [log-file]",
	Short: "Analyze the query log",
	Long: `Logs reports query patterns and per-mode performance from the JSONL query
log. Use --export to write the report as JSON or sectioned CSV.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := app.QueryLog
		if len(args) == 1 {
			path = args[0]
		}

		entries, err := querylog.Load(path)
		if err != nil {
			return err
		}
		report := querylog.BuildReport(entries)

		p := report.Patterns
		fmt.Printf("Queries: %d total, %d unique\n", p.TotalQueries, p.UniqueQueries)
		fmt.Printf("Query length (words): min %.0f, max %.0f, avg %.1f\n", p.QueryLength.Min, p.QueryLength.Max, p.QueryLength.Avg)
		fmt.Printf("Scores: min %.4f, max %.4f, avg %.4f over %d\n",
			p.ScoreDistribution.Min, p.ScoreDistribution.Max, p.ScoreDistribution.Avg, p.ScoreDistribution.Count)

		fmt.Println("\nMode performance:")
		byMode := report.Performance.PerformanceByMode
		for _, mode := range slices.Sorted(maps.Keys(byMode)) {
			perf := byMode[mode]
			fmt.Printf("  %-16s %4d queries  avg %.3fs  min %.3fs  max %.3fs\n",
				mode, perf.QueryCount, perf.AvgTime, perf.MinTime, perf.MaxTime)
		}

		fmt.Println("\nMost common queries:")
		for _, qc := range p.MostCommonQueries {
			fmt.Printf("  %4d  %s\n", qc.Count, qc.Query)
		}

		export, _ := cmd.Flags().GetString("export")
		if export == "" {
			return nil
		}
		if export != "json" && export != "csv" {
			return fmt.Errorf("unknown export format %q", export)
		}
		name := fmt.Sprintf("query_analysis_%s.%s", time.Now().Format("20060102_150405"), export)
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		switch export {
		case "json":
			err = report.WriteJSON(f)
		case "csv":
			err = report.WriteCSV(f)
		default:
			err = fmt.Errorf("unknown export format %q", export)
		}
		if err != nil {
			return err
		}
		fmt.Println("\nWrote", name)
		return nil
	},
}

func init() {
	logsCmd.Flags().String("export", "", "write the report as json or csv")
	rootCmd.AddCommand(logsCmd)
}
