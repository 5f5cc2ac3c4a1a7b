package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/dshills/patentsearch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the search configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective application settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *app
		if shown.Embedding.APIKey != "" {
			shown.Embedding.APIKey = "****"
		}
		if shown.Draft.RedisPassword != "" {
			shown.Draft.RedisPassword = "****"
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(shown)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [section]",
	Short: "Print a search config section (default, modes.<m>, profiles.<p>, query_types.<q>)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := config.LoadSearchConfig(app.SearchConfig, logger)

		section := config.SectionDefault
		if len(args) == 1 {
			section = args[0]
		}
		if query, _ := cmd.Flags().GetString("query"); query != "" {
			profile, _ := cmd.Flags().GetString("profile")
			fmt.Fprintf(os.Stderr, "query type: %s\n", config.DetectQueryType(query))
			return yaml.NewEncoder(os.Stdout).Encode(sc.Optimized(query, profile))
		}
		return yaml.NewEncoder(os.Stdout).Encode(sc.Section(section))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <section> <key> <value>",
	Short: "Set one search config value and save the file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := config.LoadSearchConfig(app.SearchConfig, logger)
		if err := sc.Update(args[0], args[1], args[2]); err != nil {
			return err
		}
		if err := sc.Save(""); err != nil {
			return err
		}
		fmt.Printf("Set %s.%s = %s in %s\n", args[0], args[1], args[2], sc.Path())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("search-config", "", "search profiles YAML file")
	_ = v.BindPFlag("search_config", pf.Lookup("search-config"))

	configGetCmd.Flags().String("query", "", "show the settings optimized for this query")
	configGetCmd.Flags().String("profile", "", "profile to apply with --query")

	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
