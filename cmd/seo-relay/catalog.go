// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/seo-relay/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the supported request types",
	Long: `Catalog prints the request types the worker handles, with the upstream
path each maps to and the defaults it injects. This is the same table the
worker dispatches on and the relay advertises on /metadata and /tools/list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(catalog.Tools())
		}
		writeCatalog(os.Stdout)
		return nil
	},
}

func writeCatalog(w io.Writer) {
	fmt.Fprintf(w, "catalog %s\n\n", catalog.Version)
	fmt.Fprintf(w, "%-30s  %-6s  %-45s  %s\n", "Type", "Mode", "Path", "Defaults")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, e := range catalog.Entries() {
		mode := "live"
		if e.Async() {
			mode = "task"
		}
		var defaults []string
		for _, p := range e.Params {
			if p.Default != nil {
				defaults = append(defaults, fmt.Sprintf("%s=%v", p.Name, p.Default))
			}
		}
		sort.Strings(defaults)
		fmt.Fprintf(w, "%-30s  %-6s  %-45s  %s\n", e.Type, mode, e.Path, strings.Join(defaults, " "))
	}
}

func init() {
	catalogCmd.Flags().Bool("json", false, "print tool descriptors as JSON")

	rootCmd.AddCommand(catalogCmd)
}
