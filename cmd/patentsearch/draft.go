package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/patentsearch/internal/batch"
	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/orchestrator"
	"github.com/dshills/patentsearch/internal/searcher"
)

// descriptionArg returns the description from --file or the joined arguments
func descriptionArg(cmd *cobra.Command, args []string) (string, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("provide the invention description as arguments or with --file")
	}
	return strings.Join(args, " "), nil
}

var draftCmd = &cobra.Command{
	Use:   "draft [description]",
	Short: "Generate a patent application draft with Ollama",
	Long: `Draft sends the invention description to a local Ollama model using the
utility, software or medical template. With --analyze every section of the draft
is searched against the index to find similar patents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		description, err := descriptionArg(cmd, args)
		if err != nil {
			return err
		}
		if err := draft.ValidateDescription(description); err != nil {
			return err
		}

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		gen, err := svc.generator(ctx)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		model, _ := flags.GetString("model")
		template, _ := flags.GetString("template")
		noCache, _ := flags.GetBool("no-cache")
		asJSON, _ := flags.GetBool("json")

		if analyze, _ := flags.GetBool("analyze"); analyze {
			req := orchestrator.NewRequest(description)
			req.Model = model
			req.TemplateType = template
			req.UseCache = !noCache
			mode, _ := flags.GetString("mode")
			req.SearchMode = searcher.Mode(mode)
			req.TopK, _ = flags.GetInt("top-k")

			resp, err := svc.orchestrator(gen).GenerateWithAnalysis(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return batch.WriteJSON(os.Stdout, resp)
			}
			printAnalysis(resp)
			return nil
		}

		req := draft.Request{Description: description, Model: model, TemplateType: template, UseCache: !noCache}
		if stream, _ := flags.GetBool("stream"); stream && !asJSON {
			res, err := gen.Stream(ctx, req, func(chunk string) error {
				_, err := fmt.Print(chunk)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "\n\n%s, %s template, %.1fs\n", res.Model, res.TemplateType, res.GenerationTime)
			return nil
		}

		res, err := gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		if asJSON {
			return batch.WriteJSON(os.Stdout, res)
		}
		fmt.Println(res.Draft)
		fmt.Fprintf(os.Stderr, "\n%s, %s template, %.1fs, cached=%v\n", res.Model, res.TemplateType, res.GenerationTime, res.Cached)
		return nil
	},
}

func printAnalysis(resp *orchestrator.Response) {
	if !resp.Success {
		fmt.Println(resp.Message)
		return
	}
	fmt.Println(resp.Draft)

	names := make([]string, 0, len(resp.SectionSimilarities))
	for name := range resp.SectionSimilarities {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\n== Similar patents by section ==")
	for _, name := range names {
		sec := resp.SectionSimilarities[name]
		fmt.Printf("\n%s (top %.3f)\n", strings.ToUpper(name), sec.TopSimilarityScore)
		for _, p := range sec.SimilarPatents {
			fmt.Printf("  %-20s %.4f  %s\n", p.PatentID, p.SimilarityScore, p.Title)
		}
	}
	fmt.Printf("\nTotal analysis time %.1fs\n", resp.TotalAnalysisTime)
}

var modelsCmd = &cobra.Command{
	Use:   "models [name]",
	Short: "List installed Ollama models or describe one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		gen := draft.NewGenerator(app.Ollama.URL, draft.WithModel(app.Ollama.Model), draft.WithLogger(logger))

		if len(args) == 1 {
			info, err := gen.ModelInfo(ctx, args[0])
			if err != nil {
				return err
			}
			return batch.WriteJSON(os.Stdout, info)
		}

		models, err := gen.ListModels(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			marker := " "
			if m.Name == gen.DefaultModel() {
				marker = "*"
			}
			fmt.Printf("%s %-24s %8.1f MB  %s\n", marker, m.Name, float64(m.Size)/(1<<20), m.Description)
		}
		return nil
	},
}

func init() {
	f := draftCmd.Flags()
	f.String("file", "", "read the description from a file")
	f.String("model", "", "Ollama model (default from config)")
	f.String("template", draft.TemplateUtility, "utility, software or medical")
	f.Bool("no-cache", false, "skip the draft cache")
	f.Bool("stream", false, "print the draft as it is generated")
	f.Bool("json", false, "print the result as JSON")
	f.Bool("analyze", false, "search similar patents for every section")
	f.String("mode", string(searcher.ModeHybrid), "search mode for --analyze")
	f.Int("top-k", searcher.DefaultTopK, "similar patents per section for --analyze")

	rootCmd.AddCommand(draftCmd, modelsCmd)
}
