package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/patentsearch/internal/indexer"
	"github.com/dshills/patentsearch/internal/ingest"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse USPTO bulk XML into JSONL",
	Long: `Parse reads every XML file under <data-dir>/grants and <data-dir>/applications
and writes one JSON record per patent to grants.jsonl and applications.jsonl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = app.DataDir
		}

		counts, err := ingest.NewParser(logger).ParseCorpus(ctx, app.DataDir, out)
		if err != nil {
			return err
		}
		fmt.Printf("Parsed %d grants and %d applications into %s\n", counts.Grants, counts.Applications, out)
		return nil
	},
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Split parsed patents into overlapping chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		size, _ := cmd.Flags().GetInt("chunk-size")
		overlap, _ := cmd.Flags().GetInt("overlap")
		chunker, err := ingest.NewChunker(size, overlap)
		if err != nil {
			return err
		}

		n, err := ingest.NewParser(logger).PreprocessCorpus(ctx, chunker, app.DataDir)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d chunks to %s\n", n, filepath.Join(app.DataDir, ingest.ChunksFile))
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [jsonl files...]",
	Short: "Index parsed patents into the database",
	Long: `Index stores patents and their chunks, embeds every chunk without an
embedding and rebuilds the TF-IDF index. With no arguments it reads
grants.jsonl and applications.jsonl from the data directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		paths := args
		if len(paths) == 0 {
			for _, name := range []string{ingest.GrantsFile, ingest.ApplicationsFile} {
				p := filepath.Join(app.DataDir, name)
				if _, err := os.Stat(p); err == nil {
					paths = append(paths, p)
				}
			}
			if len(paths) == 0 {
				return fmt.Errorf("no %s or %s in %s, run parse first", ingest.GrantsFile, ingest.ApplicationsFile, app.DataDir)
			}
		}

		force, _ := cmd.Flags().GetBool("force")
		skip, _ := cmd.Flags().GetBool("skip-embeddings")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		stats, err := svc.indexer.IndexFiles(ctx, paths, &indexer.Config{
			Workers:        app.Workers,
			BatchSize:      batchSize,
			Force:          force,
			SkipEmbeddings: skip,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Patents: %d indexed, %d unchanged, %d failed\n", stats.PatentsIndexed, stats.PatentsSkipped, stats.PatentsFailed)
		fmt.Printf("Chunks: %d created, %d embedded in %s\n", stats.ChunksCreated, stats.EmbeddingsCreated, stats.Duration)
		for _, msg := range stats.ErrorMessages {
			fmt.Printf("  error: %s\n", msg)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>...",
	Short: "Remove patents with their chunks and embeddings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.indexer.Remove(ctx, args)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d patents\n", len(res.Removed))
		for _, id := range res.Missing {
			fmt.Printf("  not found: %s\n", id)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", "", "directory holding grants/, applications/ and the JSONL outputs")
	_ = v.BindPFlag("data_dir", pf.Lookup("data-dir"))

	parseCmd.Flags().String("out", "", "output directory (default: the data directory)")

	preprocessCmd.Flags().Int("chunk-size", ingest.DefaultChunkSize, "tokens per chunk")
	preprocessCmd.Flags().Int("overlap", ingest.DefaultChunkOverlap, "tokens shared by neighbouring chunks")

	indexCmd.Flags().Bool("force", false, "re-chunk patents whose content is unchanged")
	indexCmd.Flags().Bool("skip-embeddings", false, "store patents and chunks without embedding them")
	indexCmd.Flags().Int("batch-size", 0, "patents per transaction (default 50)")

	rootCmd.AddCommand(parseCmd, preprocessCmd, indexCmd, deleteCmd)
}
