package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/patentsearch/internal/api"
	"github.com/dshills/patentsearch/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and web frontend",
	Long: `Serve starts the patent search API under /api/v1, the OpenAPI document at
/apidocs.json and the web frontend at /. Draft routes need a reachable Ollama
server; they answer 503 when it is down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

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

		gen, err := svc.generator(ctx)
		if err != nil {
			return err
		}

		handler := api.NewHandler(api.Services{
			Searcher:     svc.searcher,
			Batch:        runner,
			Drafter:      gen,
			Analyzer:     svc.orchestrator(gen),
			Store:        svc.store,
			SearchConfig: svc.search,
			QueryLog:     app.QueryLog,
		}, &logger)

		if !gen.Available(ctx) {
			logger.Warn().Str("url", app.Ollama.URL).Msg("ollama is not reachable, draft routes will answer 503")
		}
		return api.Serve(ctx, app.Listen, handler, &logger)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdio",
	Long: `Mcp speaks the Model Context Protocol on stdin and stdout so assistants can
search, summarize and index patents. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		deps := mcp.Deps{
			Storage:  svc.store,
			Indexer:  svc.indexer,
			Searcher: svc.searcher,
			Logger:   logger,
		}
		if withDraft, _ := cmd.Flags().GetBool("draft"); withDraft {
			gen, err := svc.generator(ctx)
			if err != nil {
				return err
			}
			deps.Drafter = gen
		}

		server, err := mcp.NewServer(deps)
		if err != nil {
			return err
		}
		return server.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default :8000)")
	_ = v.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))

	mcpCmd.Flags().Bool("draft", true, "register the generate_draft tool")

	rootCmd.AddCommand(serveCmd, mcpCmd)
}
