// Package cmd provides the CLI commands for the Storyglot authorization
// service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storyglot/authz/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "storyglot-authz",
	Short: "Storyglot authorization service",
	Long: `storyglot-authz is the authorization engine for the Storyglot platform.

It evaluates required rules against role-based abilities and tenant resource
policies, and exposes the decision over a small HTTP API.

Quick start:
  1. Create a config file: storyglot-authz.yaml
  2. Run: storyglot-authz serve

Configuration:
  Config is loaded from storyglot-authz.yaml in the current directory,
  $HOME/.storyglot-authz/, or /etc/storyglot-authz/.

  Environment variables can override config values with the STORYGLOT_AUTHZ_
  prefix. Example: STORYGLOT_AUTHZ_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the authorization server
  policy      Import or list tenant resource policies
  hash-key    Generate a SHA256 hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./storyglot-authz.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
