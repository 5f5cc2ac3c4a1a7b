// Package main is the entry point for the patentsearch CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/patentsearch/internal/config"
)

// Set at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	v      = config.NewViper()
	app    *config.App
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "patentsearch",
	Short: "Search USPTO patents and draft applications with a local LLM",
	Long: `patentsearch parses USPTO bulk XML, indexes patents into SQLite and searches
them with TF-IDF, embedding or hybrid ranking. It serves the HTTP API with a web
frontend, an MCP stdio server, and generates application drafts with Ollama.

Typical pipeline: parse -> preprocess -> index -> serve.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		if err := readConfigFile(cmd); err != nil {
			return err
		}

		var err error
		app, err = config.Load(v)
		if err != nil {
			return err
		}

		logger, err = config.NewLogger(app.LogLevel, app.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		log.Logger = logger
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./patentsearch.yaml or ~/.config/patentsearch/config.yaml)")
	pf.String("db", "", "SQLite database path")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console or json)")

	_ = v.BindPFlag("db_path", pf.Lookup("db"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log_format", pf.Lookup("log-format"))
}

// readConfigFile loads the --config file, or the first default location found
func readConfigFile(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("patentsearch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "patentsearch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
