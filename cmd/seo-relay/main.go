// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the seo-relay CLI: the stdio worker,
// the HTTP relay, and tooling around the request catalogue.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/seo-relay/internal/logging"
	"github.com/pdiddy/seo-relay/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds key files loaded from the secrets directory at startup.
var loadedSecrets secrets.Set

// logger is built in PersistentPreRunE and always writes to stderr.
var logger = logging.Nop()

// secretDefault returns fallback if set, or the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the seo-relay CLI.
var rootCmd = &cobra.Command{
	Use:   "seo-relay",
	Short: "Relay AI-agent requests to the DataForSEO API",
	Long: `seo-relay exposes DataForSEO (SERP, keyword volume, backlinks, on-page,
domain, app, merchant and business data) to AI-agent tooling.

The worker subcommand reads one JSON request per line on stdin and writes one
JSON response per line on stdout. The serve subcommand accepts the same
requests over HTTP and hands each to a worker, in-process by default.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		l, err := logging.New(debug)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		logger = l

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./seo-relay.yaml or ~/.config/seo-relay/config.yaml)")
	pf.Bool("debug", false, "human-readable debug logging on stderr")
	pf.String("secrets-dir", ".secrets/", "directory of secret key files")
	pf.String("credentials", "", `inline credentials as JSON: {"username":"..","password":".."}`)
	pf.String("credentials-file", "", "YAML or JSON file holding username and password")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("seo-relay")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "seo-relay"))
		}
	}

	viper.SetEnvPrefix("SEO_RELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
