// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process line-delimited JSON requests on stdin",
	Long: `Worker reads one JSON request envelope per line from stdin, performs the
matching DataForSEO call, and writes exactly one JSON response envelope per
line to stdout, in input order. Diagnostics go to stderr only.

Credentials are required; the worker exits non-zero before reading any input
when neither the flags, the environment nor the secrets directory supply them.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	creds, err := resolveCredentials(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps := &components{}
	defer comps.Close()

	proc, err := newProcessor(ctx, cfg, creds, comps)
	if err != nil {
		return err
	}

	announce, _ := cmd.Flags().GetBool("announce")
	logger.Debugw("worker ready", "announce", announce, "base_url", cfg.Upstream.BaseURL)
	return proc.Serve(ctx, os.Stdin, os.Stdout, announce)
}

func init() {
	workerCmd.Flags().Bool("announce", false, "write an initialize envelope before reading input")

	rootCmd.AddCommand(workerCmd)
}
