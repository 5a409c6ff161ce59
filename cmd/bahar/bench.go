package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/app"
	"github.com/Shunseii/bahar-sub001/internal/config"
	"github.com/Shunseii/bahar-sub001/internal/loadtest"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "advanced",
	Short:   "Measure search and grading latency under concurrent load",
	Long: `Seed a throwaway local database with synthetic entries, then run
concurrent workers that mix search queries with flashcard grades.

Searches read the in-memory index in parallel; grades go through the
single write queue. The report shows latency percentiles for each.

Your own dictionary is never touched.

Examples:
  bahar bench
  bahar bench --entries 5000 --workers 100 --ops 50
  bahar bench --grade-ratio 0 --json`,
	Run: func(cmd *cobra.Command, args []string) {
		wl := loadtest.DefaultWorkload()
		wl.Entries, _ = cmd.Flags().GetInt("entries")
		wl.Workers, _ = cmd.Flags().GetInt("workers")
		wl.OpsPerWorker, _ = cmd.Flags().GetInt("ops")
		wl.GradeRatio, _ = cmd.Flags().GetFloat64("grade-ratio")
		wl.Seed, _ = cmd.Flags().GetInt64("seed")
		if err := wl.Validate(); err != nil {
			fatalf("%v", err)
		}

		dir, err := os.MkdirTemp("", "bahar-bench-")
		if err != nil {
			fatalf("failed to create temp dir: %v", err)
		}
		defer os.RemoveAll(dir)

		benchCfg := *cfg
		benchCfg.Database = config.DatabaseConfig{Path: filepath.Join(dir, "bench.db"), Mode: config.ModeLocal}
		benchCfg.Remote = config.RemoteConfig{}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := app.Open(ctx, &benchCfg, logger)
		if err != nil {
			fatalf("%v", err)
		}
		defer closeApp(a)

		if !jsonOutput {
			fmt.Printf("%s Seeding %d entries...\n", ui.RenderAccent("🔄"), wl.Entries)
		}
		ds, err := loadtest.Seed(ctx, a.Dictionary, wl.Entries, wl.Seed)
		if err != nil {
			fatalf("seeding failed: %v", err)
		}

		targets := loadtest.Targets{Dictionary: a.Dictionary, Search: a.Search, Scheduler: a.Scheduler}
		report, err := loadtest.Run(ctx, targets, ds, wl)
		if err != nil {
			fatalf("bench failed: %v", err)
		}
		if err := loadtest.VerifyIndexConsistency(ctx, targets, ds); err != nil {
			fatalf("index check failed: %v", err)
		}

		if jsonOutput {
			report.Search.Durations = nil
			report.Grade.Durations = nil
			outputJSON(report)
			return
		}
		fmt.Println()
		report.Print(os.Stdout)
		fmt.Printf("%s Index consistent with store\n", ui.RenderPass("✓"))
	},
}

func init() {
	def := loadtest.DefaultWorkload()
	benchCmd.Flags().Int("entries", def.Entries, "Entries to seed")
	benchCmd.Flags().Int("workers", def.Workers, "Concurrent workers")
	benchCmd.Flags().Int("ops", def.OpsPerWorker, "Operations per worker")
	benchCmd.Flags().Float64("grade-ratio", def.GradeRatio, "Fraction of operations that grade a card (0.0-1.0)")
	benchCmd.Flags().Int64("seed", def.Seed, "Random seed")
	rootCmd.AddCommand(benchCmd)
}
