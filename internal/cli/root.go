// Package cli defines the Cobra commands for the cowork client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mweinbach/cowork/config"
	"github.com/mweinbach/cowork/logger"
)

var (
	serverURL string
	debug     bool
	version   = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "cowork",
	Short: "Terminal client for a cowork session server",
	Long: `Cowork connects to a running cowork session server over a
websocket, keeps a local copy of the session transcript in sync with
the event stream, and lets you send messages, answer questions and
approve tool runs from the terminal.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation attaches to the configured server.
		return runAttach(cmd, args)
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the settings file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if debug {
		cfg.Debug = true
	}
	logger.SetDebug(cfg.Debug)
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Websocket URL of the session server (overrides settings.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(configCmd)
}
