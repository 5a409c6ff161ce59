package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var entryCmd = &cobra.Command{
	Use:     "entry",
	GroupID: "dict",
	Short:   "Add, show, edit and remove dictionary entries",
}

var entryAddCmd = &cobra.Command{
	Use:   "add <word> <translation>",
	Short: "Add an entry with its forward and reverse flashcards",
	Long: `Add a dictionary entry. Both flashcards are created due now.

Examples:
  bahar entry add كتاب book --type ism --root ك,ت,ب --tag noun
  bahar entry add "كَتَبَ" "to write" --type "fi'l"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		in := dictionary.EntryInput{Word: args[0], Translation: args[1]}
		applyEntryFlags(cmd, &in)
		if in.Type == "" {
			in.Type = schema.WordTypeIsm
		}

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		e, err := a.Dictionary.CreateEntry(ctx, in)
		if err != nil {
			fatalErr("failed to add entry", err)
		}

		if jsonOutput {
			outputJSON(e)
			return
		}
		fmt.Printf("%s Added %s (%s) %s\n", ui.RenderPass("✓"), e.Word, e.Translation, ui.RenderMuted(e.ID))
	},
}

var entryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an entry and its flashcards",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		e, err := a.Dictionary.GetEntry(ctx, args[0])
		if err != nil {
			fatalErr("failed to load entry", err)
		}
		cards, err := a.Dictionary.Flashcards(ctx, e.ID)
		if err != nil {
			fatalErr("failed to load flashcards", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"entry": e, "flashcards": cards})
			return
		}

		fmt.Printf("\n%s  %s\n", ui.RenderBold(e.Word), e.Translation)
		fmt.Printf("%s\n", ui.RenderMuted(fmt.Sprintf("%s · %s", e.Type, e.ID)))
		if e.Definition != "" {
			fmt.Printf("\n%s\n", e.Definition)
		}
		if len(e.Root) > 0 {
			fmt.Printf("Root: %s\n", strings.Join(e.Root, " "))
		}
		if len(e.Tags) > 0 {
			fmt.Printf("Tags: %s\n", strings.Join(e.Tags, ", "))
		}
		for _, ex := range e.Examples {
			fmt.Printf("  • %s", ex.Sentence)
			if ex.Translation != "" {
				fmt.Printf(" %s", ui.RenderMuted("("+ex.Translation+")"))
			}
			fmt.Println()
		}

		rows := make([][]string, 0, len(cards))
		for _, c := range cards {
			hidden := ""
			if c.IsHidden {
				hidden = "yes"
			}
			rows = append(rows, []string{
				string(c.Direction), c.State.String(), c.Due,
				fmt.Sprint(c.Reps), fmt.Sprint(c.Lapses), hidden,
			})
		}
		fmt.Println()
		fmt.Println(ui.Table([]string{"Direction", "State", "Due", "Reps", "Lapses", "Hidden"}, rows))
	},
}

var entryEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of an entry",
	Long: `Change fields of an entry. Only the flags given are changed.

Examples:
  bahar entry edit 3f0c... --translation "a book"
  bahar entry edit 3f0c... --tag noun --tag common`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		e, err := a.Dictionary.GetEntry(ctx, args[0])
		if err != nil {
			fatalErr("failed to load entry", err)
		}

		in := dictionary.EntryInput{
			Word:        e.Word,
			Translation: e.Translation,
			Definition:  e.Definition,
			Type:        e.Type,
			Root:        e.Root,
			Tags:        e.Tags,
			Antonyms:    e.Antonyms,
			Examples:    e.Examples,
			Morphology:  e.Morphology,
		}
		if cmd.Flags().Changed("word") {
			in.Word, _ = cmd.Flags().GetString("word")
		}
		if cmd.Flags().Changed("translation") {
			in.Translation, _ = cmd.Flags().GetString("translation")
		}
		applyEntryFlags(cmd, &in)

		updated, err := a.Dictionary.UpdateEntry(ctx, e.ID, in)
		if err != nil {
			fatalErr("failed to update entry", err)
		}
		if jsonOutput {
			outputJSON(updated)
			return
		}
		fmt.Printf("%s Updated %s (%s)\n", ui.RenderPass("✓"), updated.Word, updated.Translation)
	},
}

var entryRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove an entry, or every entry with --all",
	Long: `Remove an entry and its flashcards.

With --all every entry is removed locally and, when remote.api_url is set,
the remote dictionary is asked to do the same.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		yes, _ := cmd.Flags().GetBool("yes")
		if all == (len(args) == 1) {
			fatalf("give either an entry id or --all")
		}

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		if !all {
			if err := a.Dictionary.DeleteEntry(ctx, args[0]); err != nil {
				fatalErr("failed to remove entry", err)
			}
			fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), args[0])
			return
		}

		if !yes {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				fatalf("refusing to remove every entry without --yes")
			}
			confirm := false
			err := huh.NewConfirm().
				Title("Remove every entry and flashcard?").
				Affirmative("Remove all").
				Negative("Cancel").
				Value(&confirm).
				Run()
			if err != nil || !confirm {
				fmt.Println("Cancelled")
				return
			}
		}

		n, err := a.Dictionary.DeleteAll(ctx)
		if err != nil {
			fatalErr("failed to remove entries", err)
		}
		fmt.Printf("%s Removed %d entries\n", ui.RenderPass("✓"), n)
	},
}

// applyEntryFlags copies the optional entry flags that were set into in.
func applyEntryFlags(cmd *cobra.Command, in *dictionary.EntryInput) {
	f := cmd.Flags()
	if f.Changed("definition") {
		in.Definition, _ = f.GetString("definition")
	}
	if f.Changed("type") {
		t, _ := f.GetString("type")
		in.Type = schema.WordType(t)
	}
	if f.Changed("root") {
		in.Root, _ = f.GetStringSlice("root")
	}
	if f.Changed("tag") {
		in.Tags, _ = f.GetStringSlice("tag")
	}
}

func registerEntryFlags(cmd *cobra.Command) {
	cmd.Flags().String("definition", "", "Definition text")
	cmd.Flags().String("type", "", "Word type: ism, fi'l, harf, expression")
	cmd.Flags().StringSlice("root", nil, "Root letters, comma separated")
	cmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
}

func init() {
	registerEntryFlags(entryAddCmd)
	registerEntryFlags(entryEditCmd)
	entryEditCmd.Flags().String("word", "", "New word")
	entryEditCmd.Flags().String("translation", "", "New translation")
	entryRmCmd.Flags().Bool("all", false, "Remove every entry")
	entryRmCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	entryCmd.AddCommand(entryAddCmd, entryShowCmd, entryEditCmd, entryRmCmd)
	rootCmd.AddCommand(entryCmd)
}
