package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/seo-relay/internal/catalog"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of seo-relay",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("seo-relay %s (catalog %s)\n", version, catalog.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
