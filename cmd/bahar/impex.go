package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/impex"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Import a dictionary snapshot",
	Long: `Import a JSON snapshot written by 'bahar export' (or a bare JSON array
of entries). Every entry is validated before anything is written; a single
bad entry rejects the whole file and every problem is listed.

Entries with an existing id are overwritten. Flashcards in the file replace
the stored ones; entries without flashcards keep their review progress.

When remote.api_url is set, an accepted file is also uploaded to the remote
dictionary in the background. Use "-" to read standard input.

Examples:
  bahar import backup.json
  bahar import words.json --regenerate-ids --atomic`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		atomic, _ := cmd.Flags().GetBool("atomic")
		regenIDs, _ := cmd.Flags().GetBool("regenerate-ids")
		regenTimes, _ := cmd.Flags().GetBool("regenerate-timestamps")
		if !cmd.Flags().Changed("batch-size") {
			batchSize = cfg.Impex.BatchSize
		}
		if !cmd.Flags().Changed("atomic") {
			atomic = cfg.Impex.Atomic
		}

		var r io.Reader = os.Stdin
		name := "stdin.json"
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				fatalf("failed to open %s: %v", args[0], err)
			}
			defer f.Close()
			r, name = f, filepath.Base(args[0])
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx)
		defer closeApp(a)

		report, err := a.Impex.Import(ctx, r, impex.ImportOptions{
			BatchSize:            batchSize,
			RegenerateIDs:        regenIDs,
			RegenerateTimestamps: regenTimes,
			Atomic:               atomic,
			SourceName:           name,
		})
		var partial *impex.PartialImportError
		if errors.As(err, &partial) {
			fmt.Fprintf(os.Stderr, "%s Imported %d of %d entries before failing\n",
				ui.RenderWarn("⚠"), partial.Committed, partial.Total)
		}
		if err != nil {
			fatalErr("import failed", err)
		}

		if jsonOutput {
			outputJSON(report)
			return
		}
		fmt.Printf("%s Imported %d entries (%s, %d batches) in %v\n",
			ui.RenderPass("✓"), report.Imported, report.Version, report.Batches, report.Elapsed.Round(time.Millisecond))
	},
}

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	GroupID: "data",
	Short:   "Export the dictionary as a JSON snapshot",
	Long: `Export every entry as a versioned JSON snapshot. Entries whose stored
JSON fields are corrupt are skipped and listed on stderr.

Without a file the snapshot goes to standard output. With --remote the
snapshot is fetched from the remote dictionary API instead.

Examples:
  bahar export backup.json --flashcards
  bahar export | jq '.entries | length'`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withCards, _ := cmd.Flags().GetBool("flashcards")
		fromRemote, _ := cmd.Flags().GetBool("remote")

		out := os.Stdout
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Create(args[0])
			if err != nil {
				fatalf("failed to create %s: %v", args[0], err)
			}
			defer f.Close()
			out = f
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx)
		defer closeApp(a)

		if fromRemote {
			if a.Remote == nil {
				fatalf("remote.api_url is not set")
			}
			data, err := a.Remote.Export(ctx, withCards)
			if err != nil {
				fatalf("remote export failed: %v", err)
			}
			if _, err := out.Write(data); err != nil {
				fatalf("failed to write snapshot: %v", err)
			}
			return
		}

		w := bufio.NewWriter(out)
		report, err := a.Impex.Export(ctx, w, impex.ExportOptions{IncludeFlashcards: withCards})
		if err != nil {
			fatalf("export failed: %v", err)
		}
		if err := w.Flush(); err != nil {
			fatalf("failed to write snapshot: %v", err)
		}

		for _, s := range report.Skipped {
			fmt.Fprintf(os.Stderr, "%s skipped %s\n", ui.RenderWarn("⚠"), s)
		}
		if out != os.Stdout {
			fmt.Printf("%s Exported %d entries to %s\n", ui.RenderPass("✓"), report.Exported, args[0])
		}
	},
}

func init() {
	importCmd.Flags().Int("batch-size", impex.DefaultImportBatchSize, "Entries per transaction (default impex.batch_size)")
	importCmd.Flags().Bool("atomic", false, "Write everything in one transaction (default impex.atomic)")
	importCmd.Flags().Bool("regenerate-ids", false, "Give every entry and flashcard a new id")
	importCmd.Flags().Bool("regenerate-timestamps", false, "Stamp every entry as created now")

	exportCmd.Flags().Bool("flashcards", false, "Include flashcards and their review state")
	exportCmd.Flags().Bool("remote", false, "Fetch the snapshot from the remote dictionary API")

	rootCmd.AddCommand(importCmd, exportCmd)
}
