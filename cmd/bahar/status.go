package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "advanced",
	Short:   "Show dictionary, queue and sync status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		stats, err := a.Stats(ctx)
		if err != nil {
			fatalf("failed to read status: %v", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"database": cfg.Database.Path,
				"mode":     cfg.Database.Mode,
				"replica":  a.DB.HasReplica(),
				"remote":   cfg.Remote.APIURL,
				"stats":    stats,
			})
			return
		}

		var size string
		if info, err := os.Stat(cfg.Database.Path); err == nil {
			size = fmt.Sprintf(" (%.1f KB)", float64(info.Size())/1024)
		}

		fmt.Printf("\n%s\n\n", ui.RenderBold("Bahar Status"))
		fmt.Printf("Database:   %s%s\n", cfg.Database.Path, size)
		fmt.Printf("Mode:       %s\n", cfg.Database.Mode)
		fmt.Printf("Entries:    %d (%d indexed)\n", stats.Entries, stats.Indexed)
		fmt.Printf("Due today:  %d\n", stats.Due)
		if stats.Backlog > 0 {
			fmt.Printf("Backlog:    %s\n", ui.RenderWarn(fmt.Sprint(stats.Backlog)))
		} else {
			fmt.Printf("Backlog:    0\n")
		}

		if a.DB.HasReplica() {
			fmt.Printf("Replica:    %s\n", cfg.Database.ReplicaURL)
		} else {
			fmt.Printf("Replica:    %s\n", ui.RenderMuted("none"))
		}
		if cfg.Remote.Enabled() {
			fmt.Printf("Remote API: %s\n", cfg.Remote.APIURL)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
