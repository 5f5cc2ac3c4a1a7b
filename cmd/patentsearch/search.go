package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/patentsearch/internal/batch"
	"github.com/dshills/patentsearch/internal/searcher"
	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// searchRequest builds a request from the search flags. A --profile applies the
// matching search config section first; flags the user set win over it.
func searchRequest(cmd *cobra.Command, svc *services, query string) searcher.Request {
	req := searcher.NewRequest(query)
	flags := cmd.Flags()

	if profile, _ := flags.GetString("profile"); profile != "" {
		svc.search.Optimized(query, profile).Apply(&req)
	}
	if flags.Changed("mode") {
		mode, _ := flags.GetString("mode")
		req.Mode = searcher.Mode(mode)
	}
	if flags.Changed("top-k") {
		req.TopK, _ = flags.GetInt("top-k")
	}
	if flags.Changed("alpha") {
		req.Alpha, _ = flags.GetFloat64("alpha")
	}
	if flags.Changed("rerank") {
		req.Rerank, _ = flags.GetBool("rerank")
	}
	if flags.Changed("log") {
		req.LogEnabled, _ = flags.GetBool("log")
	}
	return req
}

func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("mode", string(searcher.DefaultMode), "tfidf, semantic, hybrid or hybrid-advanced")
	f.Int("top-k", searcher.DefaultTopK, "number of results")
	f.Float64("alpha", searcher.DefaultAlpha, "semantic weight for hybrid mode")
	f.Bool("rerank", false, "rerank by keyword overlap")
	f.Bool("log", false, "append the search to the query log")
	f.String("profile", "", "search config profile to apply")
}

func printResults(results []types.SearchResult) {
	if len(results) == 0 {
		fmt.Println("  no results")
		return
	}
	for _, r := range results {
		fmt.Printf("%3d. %-20s %.4f  %s [%s]\n", r.Rank, r.BaseDocID, r.Score, r.Title, r.DocType)
		if r.Snippet != "" {
			fmt.Printf("     %s\n", r.Snippet)
		}
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed patents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		resp, err := svc.searcher.Search(ctx, searchRequest(cmd, svc, strings.Join(args, " ")))
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return batch.WriteJSON(os.Stdout, resp)
		}
		fmt.Printf("%d results for %q in %s mode (%.3fs)\n", resp.TotalResults, resp.Query, resp.Mode, resp.SearchTime)
		printResults(resp.Results)
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <query>",
	Short: "Run a query in every search mode",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		req := searcher.NewRequest(strings.Join(args, " "))
		req.TopK, _ = cmd.Flags().GetInt("top-k")

		resp, err := svc.searcher.Compare(ctx, req)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return batch.WriteJSON(os.Stdout, resp)
		}
		for _, mode := range searcher.Modes {
			out := resp.Results[mode]
			fmt.Printf("\n== %s ==\n", mode)
			if out == nil {
				continue
			}
			if out.Error != "" {
				fmt.Printf("  error: %s\n", out.Error)
				continue
			}
			printResults(out.Results)
		}
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <keywords>",
	Short: "Find patents whose title or abstract contains the keywords",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		topK, _ := cmd.Flags().GetInt("top-k")
		var filters *storage.SearchFilters
		if docTypes, _ := cmd.Flags().GetStringSlice("doc-type"); len(docTypes) > 0 {
			filters = &storage.SearchFilters{DocTypes: docTypes}
		}

		resp, err := svc.searcher.Lookup(ctx, strings.Join(args, " "), topK, filters)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return batch.WriteJSON(os.Stdout, resp)
		}
		if len(resp.Results) == 0 {
			fmt.Println("  no matches")
			return nil
		}
		for _, m := range resp.Results {
			fmt.Printf("%3d. %-20s %.4f  %s [%s]\n", m.Rank, m.DocID, m.Score, m.Title, m.DocType)
			if m.Abstract != "" {
				fmt.Printf("     %s\n", m.Abstract)
			}
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <queries-file>",
	Short: "Run every query in a file and export the results",
	Long: `Batch reads one query per line (blank lines and lines starting with # are
skipped), runs them concurrently and writes {prefix}_{mode}_{timestamp}.csv,
.json and _summary.json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		queries, err := batch.LoadQueries(args[0])
		if err != nil {
			return fmt.Errorf("failed to read queries: %w", err)
		}
		if len(queries) == 0 {
			return batch.ErrNoQueries
		}

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		runner, err := svc.batchRunner()
		if err != nil {
			return err
		}
		defer runner.Release()

		base := searchRequest(cmd, svc, "")
		results, err := runner.Run(ctx, queries, base)
		if err != nil {
			return err
		}

		prefix, _ := cmd.Flags().GetString("prefix")
		format, _ := cmd.Flags().GetString("format")
		written, err := batch.Save(prefix, string(base.Mode), format, results, time.Now())
		for _, name := range written {
			fmt.Println("Wrote", name)
		}
		if err != nil {
			return err
		}

		summary := batch.Summarize(results)
		fmt.Printf("%d queries, %d failed, %d results, %.3fs total\n",
			summary.TotalQueries, summary.FailedQueries, summary.TotalResults, summary.TotalSearchTime)
		if summary.FailedQueries == summary.TotalQueries {
			return errors.New("every query failed")
		}
		return nil
	},
}

func init() {
	addSearchFlags(searchCmd)
	searchCmd.Flags().Bool("json", false, "print the response as JSON")

	compareCmd.Flags().Int("top-k", searcher.DefaultTopK, "number of results per mode")
	compareCmd.Flags().Bool("json", false, "print the response as JSON")

	lookupCmd.Flags().Int("top-k", searcher.DefaultTopK, "number of patents")
	lookupCmd.Flags().StringSlice("doc-type", nil, "restrict to grant or application")
	lookupCmd.Flags().Bool("json", false, "print the response as JSON")

	addSearchFlags(batchCmd)
	batchCmd.Flags().String("prefix", "batch_results", "output file prefix")
	batchCmd.Flags().String("format", batch.FormatBoth, "csv, json or both")

	rootCmd.AddCommand(searchCmd, compareCmd, lookupCmd, batchCmd)
}
