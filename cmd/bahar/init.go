package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/config"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "advanced",
	Short:   "Write a starter config and create the database",
	Long: `Write a starter configuration file (YAML or TOML, chosen by extension)
and create the local database with every migration applied.

An existing config file is left untouched.

Examples:
  bahar init
  bahar init --config ~/.config/bahar/config.toml`,
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := config.WriteDefault(path); err != nil {
				fatalf("failed to write config: %v", err)
			}
			fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		} else {
			fmt.Printf("%s Using existing %s\n", ui.RenderAccent("→"), path)
		}

		loadConfig(path)
		a := openApp(context.Background())
		defer closeApp(a)

		fmt.Printf("%s Database ready at %s (%s)\n", ui.RenderPass("✓"), cfg.Database.Path, cfg.Database.Mode)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
