package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/patentsearch/internal/api"
	"github.com/dshills/patentsearch/internal/storage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("patentsearch %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("API Version: %s\n", api.Version)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		fmt.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
