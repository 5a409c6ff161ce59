package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/dictionary"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "review",
	Short:   "Show or change review settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show review settings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		s, err := a.Dictionary.Settings(ctx)
		if err != nil {
			fatalf("failed to read settings: %v", err)
		}
		printSettings(s)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change review settings",
	Long: `Change review settings. Only the flags given are changed.

Examples:
  bahar settings set --reverse
  bahar settings set --antonyms hint`,
	Run: func(cmd *cobra.Command, args []string) {
		var patch dictionary.SettingsPatch
		if cmd.Flags().Changed("reverse") {
			v, _ := cmd.Flags().GetBool("reverse")
			patch.ShowReverseFlashcards = &v
		}
		if cmd.Flags().Changed("antonyms") {
			v, _ := cmd.Flags().GetString("antonyms")
			mode := schema.AntonymsMode(v)
			patch.ShowAntonymsInFlashcard = &mode
		}
		if patch == (dictionary.SettingsPatch{}) {
			fatalf("nothing to change; pass --reverse or --antonyms")
		}

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		s, err := a.Dictionary.UpdateSettings(ctx, patch)
		if err != nil {
			fatalErr("failed to update settings", err)
		}
		printSettings(s)
	},
}

func printSettings(s schema.Settings) {
	if jsonOutput {
		outputJSON(s)
		return
	}
	fmt.Printf("%s\n", ui.RenderBold("Settings"))
	fmt.Printf("  Reverse flashcards:  %v\n", s.ShowReverseFlashcards)
	fmt.Printf("  Antonyms on cards:   %s\n", s.ShowAntonymsInFlashcard)
}

func init() {
	settingsSetCmd.Flags().Bool("reverse", false, "Include reverse (translation → word) cards in review")
	settingsSetCmd.Flags().String("antonyms", "", "Where antonyms appear: hidden, hint, answer")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
