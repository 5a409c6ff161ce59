package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/search"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:     "search [query...]",
	GroupID: "dict",
	Short:   "Search the dictionary in Arabic or English",
	Long: `Search words, translations, definitions, tags and morphology.

Arabic queries ignore diacritics and letter variants. Short queries must
match exactly or as a prefix; longer ones tolerate one or two typos.
With no query the most recently updated entries are listed.

Examples:
  bahar search كتب
  bahar search "to write"
  bahar search --tag noun --type ism`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		types, _ := cmd.Flags().GetStringSlice("type")

		q := search.Query{
			Term:   strings.Join(args, " "),
			Limit:  limit,
			Offset: offset,
			Filters: search.Filters{
				Tags: tags,
			},
		}
		for _, t := range types {
			q.Filters.Types = append(q.Filters.Types, schema.WordType(t))
		}

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		res, err := a.Search.Search(ctx, q)
		if err != nil {
			fatalf("search failed: %v", err)
		}

		if jsonOutput {
			type hit struct {
				*schema.Entry
				Score     float64 `json:"score"`
				Highlight string  `json:"highlight"`
			}
			hits := make([]hit, 0, len(res.Hits))
			for _, h := range res.Hits {
				hits = append(hits, hit{Entry: h.Entry, Score: h.Score, Highlight: search.Highlight(h.Entry.Word, q.Term)})
			}
			outputJSON(map[string]any{
				"count":     res.Count,
				"language":  res.Language.String(),
				"tolerance": res.Tolerance,
				"hits":      hits,
			})
			return
		}

		if len(res.Hits) == 0 {
			fmt.Printf("No entries match %q\n", q.Term)
			return
		}
		for _, h := range res.Hits {
			word := ui.RenderHighlight(search.Highlight(h.Entry.Word, q.Term))
			translation := ui.RenderHighlight(search.Highlight(h.Entry.Translation, q.Term))
			fmt.Printf("%s  %s  %s\n", word, translation, ui.RenderMuted(string(h.Entry.Type)+" · "+h.Entry.ID))
		}
		fmt.Printf("\n%s\n", ui.RenderMuted(fmt.Sprintf("%d of %d results in %v", len(res.Hits), res.Count, res.Elapsed)))
	},
}

func init() {
	searchCmd.Flags().IntP("limit", "n", 20, "Maximum results")
	searchCmd.Flags().Int("offset", 0, "Skip this many results")
	searchCmd.Flags().StringSlice("tag", nil, "Only entries with this tag (repeatable)")
	searchCmd.Flags().StringSlice("type", nil, "Only entries of this word type (repeatable)")
	rootCmd.AddCommand(searchCmd)
}
