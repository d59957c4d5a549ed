package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mweinbach/cowork/config"
	"github.com/mweinbach/cowork/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved client configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path, err := paths.ConfigFilePath()
		if err != nil {
			return err
		}
		fmt.Printf("file:       %s\n", path)
		fmt.Printf("server:     %s\n", cfg.ServerURL)
		if cfg.DefaultProvider != "" {
			fmt.Printf("provider:   %s\n", cfg.DefaultProvider)
		}
		if cfg.DefaultModel != "" {
			fmt.Printf("model:      %s\n", cfg.DefaultModel)
		}
		fmt.Printf("mcp:        %v\n", cfg.EnableMCP)
		fmt.Printf("reconnect:  %s .. %s\n", cfg.ReconnectMin(), cfg.ReconnectMax())
		fmt.Printf("debug:      %v\n", cfg.Debug)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with the current defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		path, _ := paths.ConfigFilePath()
		fmt.Println("wrote", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
