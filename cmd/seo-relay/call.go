// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/seo-relay/internal/catalog"
)

var callCmd = &cobra.Command{
	Use:   "call <type> [field=value ...]",
	Short: "Run one request and print its response envelope",
	Long: `Call builds a single request envelope from its arguments, processes it
exactly as the worker would, and prints the response envelope on stdout.

Field values are parsed as JSON when possible, so limit=10 is a number,
check_spell=false a boolean and keywords='["a","b"]' an array; anything else
is a string. The type may omit the "dataforseo_" prefix.

  seo-relay call backlinks target=example.com
  seo-relay call serp keyword="coffee beans" location_code=2826`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	line, err := buildCallRequest(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	creds, err := resolveCredentials(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	comps := &components{}
	defer comps.Close()

	proc, err := newProcessor(ctx, cfg, creds, comps)
	if err != nil {
		return err
	}

	resp := proc.Handle(ctx, line)

	enc := json.NewEncoder(os.Stdout)
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

// buildCallRequest turns CLI arguments into one request line.
func buildCallRequest(args []string) ([]byte, error) {
	typ := args[0]
	if _, ok := catalog.Lookup(typ); !ok {
		if _, ok := catalog.Lookup("dataforseo_" + typ); ok {
			typ = "dataforseo_" + typ
		}
	}

	req := map[string]any{"type": typ}
	for _, arg := range args[1:] {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not field=value", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		req[key] = v
	}
	return json.Marshal(req)
}

func init() {
	callCmd.Flags().Bool("pretty", false, "indent the response envelope")

	rootCmd.AddCommand(callCmd)
}
