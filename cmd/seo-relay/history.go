// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/seo-relay/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently relayed exchanges",
	Long: `History reads the exchange log written by "serve" when history.db_path
(or --history-db) is set. Newest exchanges come first.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dbPath = cfg.History.DBPath
	}
	if dbPath == "" {
		return fmt.Errorf("no history database: pass --db or set history.db_path")
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		counts, err := store.Counts(ctx)
		if err != nil {
			return err
		}
		outcomes := make([]string, 0, len(counts))
		for o := range counts {
			outcomes = append(outcomes, o)
		}
		sort.Strings(outcomes)
		for _, o := range outcomes {
			fmt.Printf("%-15s %d\n", o, counts[o])
		}
		return nil
	}

	f := history.Filter{}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	f.RequestType, _ = cmd.Flags().GetString("type")
	f.Outcome, _ = cmd.Flags().GetString("outcome")

	exchanges, err := store.Recent(ctx, f)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml":
		return history.WriteYAML(os.Stdout, exchanges)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exchanges)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q (want table, yaml or json)", format)
	}

	if len(exchanges) == 0 {
		fmt.Println("No exchanges recorded.")
		return nil
	}
	fmt.Printf("%-20s  %-9s  %-30s  %-13s  %8s  %s\n", "At", "Runner", "Type", "Outcome", "Duration", "Error")
	fmt.Println(strings.Repeat("-", 110))
	for _, e := range exchanges {
		fmt.Printf("%-20s  %-9s  %-30s  %-13s  %8s  %s\n",
			e.At.Local().Format("2006-01-02 15:04:05"), e.Runner, e.RequestType, e.Outcome, e.Duration, e.Error)
	}
	return nil
}

func init() {
	f := historyCmd.Flags()
	f.String("db", "", "history database (default: history.db_path from config)")
	f.Int("limit", 50, "maximum number of exchanges")
	f.String("type", "", "filter by request type")
	f.String("outcome", "", "filter by outcome: success, error, exit_error, framing_error, failed")
	f.String("format", "table", "output format: table, yaml or json")
	f.Bool("stats", false, "print counts per outcome instead")

	rootCmd.AddCommand(historyCmd)
}
