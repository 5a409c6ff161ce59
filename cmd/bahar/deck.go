package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/scheduler"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var deckCmd = &cobra.Command{
	Use:     "deck",
	GroupID: "review",
	Short:   "Manage decks (saved flashcard filters)",
}

var deckAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a deck",
	Long: `Create a deck from tag, word type and card state filters.
Empty filters match every card.

Examples:
  bahar deck add verbs --type "fi'l"
  bahar deck add "new nouns" --type ism --state new`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tags, _ := cmd.Flags().GetStringSlice("tag")
		types, _ := cmd.Flags().GetStringSlice("type")
		stateNames, _ := cmd.Flags().GetStringSlice("state")

		states, err := parseStates(stateNames)
		if err != nil {
			fatalf("%v", err)
		}
		filters := schema.DeckFilters{Tags: tags, States: states}
		for _, t := range types {
			filters.Types = append(filters.Types, schema.WordType(t))
		}

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		d, err := a.Dictionary.CreateDeck(ctx, args[0], filters)
		if err != nil {
			fatalErr("failed to create deck", err)
		}
		if jsonOutput {
			outputJSON(d)
			return
		}
		fmt.Printf("%s Created deck %s %s\n", ui.RenderPass("✓"), d.Name, ui.RenderMuted(d.ID))
	},
}

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decks with their due counts",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		decks, err := a.Dictionary.ListDecks(ctx)
		if err != nil {
			fatalf("failed to list decks: %v", err)
		}

		type deckRow struct {
			*schema.Deck
			Counts scheduler.Counts `json:"counts"`
		}
		out := make([]deckRow, 0, len(decks))
		for _, d := range decks {
			counts, err := a.Scheduler.Counts(ctx, scheduler.QueueOptions{DeckID: d.ID})
			if err != nil {
				fatalf("failed to count deck %s: %v", d.Name, err)
			}
			out = append(out, deckRow{Deck: d, Counts: counts})
		}

		if jsonOutput {
			outputJSON(out)
			return
		}
		if len(out) == 0 {
			fmt.Println("No decks. Create one with 'bahar deck add'.")
			return
		}

		rows := make([][]string, 0, len(out))
		for _, d := range out {
			rows = append(rows, []string{
				d.Name, describeFilters(d.Filters),
				fmt.Sprint(d.Counts.Regular), fmt.Sprint(d.Counts.Backlog), d.ID,
			})
		}
		fmt.Println(ui.Table([]string{"Name", "Filters", "Due", "Backlog", "ID"}, rows))
	},
}

var deckRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a deck (its cards are kept)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		if err := a.Dictionary.DeleteDeck(ctx, args[0]); err != nil {
			fatalErr("failed to remove deck", err)
		}
		fmt.Printf("%s Removed deck %s\n", ui.RenderPass("✓"), args[0])
	},
}

func describeFilters(f schema.DeckFilters) string {
	var parts []string
	if len(f.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(f.Tags, ","))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		parts = append(parts, "types="+strings.Join(types, ","))
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = s.String()
		}
		parts = append(parts, "states="+strings.Join(states, ","))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

func init() {
	deckAddCmd.Flags().StringSlice("tag", nil, "Only entries with this tag (repeatable)")
	deckAddCmd.Flags().StringSlice("type", nil, "Only entries of this word type (repeatable)")
	deckAddCmd.Flags().StringSlice("state", nil, "Only cards in this state: new, learning, review, relearning")

	deckCmd.AddCommand(deckAddCmd, deckListCmd, deckRmCmd)
	rootCmd.AddCommand(deckCmd)
}
