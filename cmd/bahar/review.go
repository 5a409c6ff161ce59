package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Shunseii/bahar-sub001/internal/scheduler"
	"github.com/Shunseii/bahar-sub001/internal/scheduler/fsrs"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "review",
	Short:   "List cards due for review",
	Long: `List the cards due at a point in time. Cards overdue by more than
schedule.backlog_threshold_days are listed separately with --backlog.

--at accepts RFC 3339 or a phrase relative to now.

Examples:
  bahar queue
  bahar queue --at tomorrow
  bahar queue --at "in 3 days" --deck 9b1e...
  bahar queue --backlog`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := queueOptions(cmd)
		backlog, _ := cmd.Flags().GetBool("backlog")

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		list := a.Scheduler.Today
		if backlog {
			list = a.Scheduler.Backlog
		}
		items, err := list(ctx, opts)
		if err != nil {
			fatalErr("failed to load queue", err)
		}
		counts, err := a.Scheduler.Counts(ctx, opts)
		if err != nil {
			fatalErr("failed to count queue", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"counts": counts, "items": items})
			return
		}

		fmt.Printf("%s %d due, %d in backlog (as of %s)\n\n",
			ui.RenderAccent("📚"), counts.Regular, counts.Backlog, opts.Now.Format("2006-01-02 15:04"))
		if len(items) == 0 {
			return
		}
		rows := make([][]string, 0, len(items))
		for _, it := range items {
			rows = append(rows, []string{
				it.Entry.Word, it.Entry.Translation, string(it.Card.Direction),
				it.Card.State.String(), it.Card.Due, it.Card.ID,
			})
		}
		fmt.Println(ui.Table([]string{"Word", "Translation", "Direction", "State", "Due", "Card"}, rows))
	},
}

var reviewCmd = &cobra.Command{
	Use:     "review",
	GroupID: "review",
	Short:   "Review due cards interactively",
	Long: `Step through today's queue. Each card shows its prompt, then the
answer, then asks for a grade. The interval each grade would give is shown
next to it.

Needs an interactive terminal; use 'bahar grade' in scripts.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fatalf("review needs an interactive terminal; use 'bahar grade <card-id> <rating>'")
		}
		opts := queueOptions(cmd)

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		items, err := a.Scheduler.Today(ctx, opts)
		if err != nil {
			fatalErr("failed to load queue", err)
		}
		if len(items) == 0 {
			fmt.Printf("%s Nothing due\n", ui.RenderPass("✓"))
			return
		}

		reviewed := 0
		for i, it := range items {
			rating, ok := reviewOne(ctx, a.Scheduler, it, i+1, len(items))
			if !ok {
				break
			}
			if _, err := a.Scheduler.Grade(ctx, it.Card.ID, rating, time.Time{}); err != nil {
				fatalErr("failed to grade card", err)
			}
			reviewed++
		}
		fmt.Printf("\n%s Reviewed %d of %d cards\n", ui.RenderPass("✓"), reviewed, len(items))
	},
}

// reviewOne shows a card and returns the chosen grade. ok is false when
// the user stops.
func reviewOne(ctx context.Context, svc *scheduler.Service, it scheduler.ReviewItem, n, total int) (fsrs.Rating, bool) {
	prompt, answer := it.Entry.Word, it.Entry.Translation
	if it.Card.Direction == schema.DirectionReverse {
		prompt, answer = answer, prompt
	}

	fmt.Printf("\n%s %s\n\n", ui.RenderMuted(fmt.Sprintf("[%d/%d]", n, total)), ui.RenderBold(prompt))

	reveal := true
	err := huh.NewConfirm().
		Title("Show answer?").
		Affirmative("Show").
		Negative("Stop").
		Value(&reveal).
		Run()
	if err != nil || !reveal {
		return 0, false
	}

	fmt.Printf("%s\n", ui.RenderAccent(answer))
	if it.Entry.Definition != "" {
		fmt.Printf("%s\n", ui.RenderMuted(it.Entry.Definition))
	}

	preview, err := svc.Preview(ctx, it.Card.ID, time.Time{})
	if err != nil {
		fatalErr("failed to preview card", err)
	}

	now := time.Now()
	options := make([]huh.Option[fsrs.Rating], 0, len(fsrs.Ratings))
	for _, r := range fsrs.Ratings {
		label := r.String()
		if next, ok := preview.Outcomes[r]; ok {
			label = fmt.Sprintf("%-5s  %s", r, untilDue(schema.FromMillis(next.DueMs), now))
		}
		options = append(options, huh.NewOption(label, r))
	}

	rating := fsrs.Good
	err = huh.NewSelect[fsrs.Rating]().
		Title("How well did you recall it?").
		Options(options...).
		Value(&rating).
		Run()
	if err != nil {
		return 0, false
	}
	return rating, true
}

var gradeCmd = &cobra.Command{
	Use:     "grade <card-id> <rating>",
	GroupID: "review",
	Short:   "Grade one card (again, hard, good, easy or 1-4)",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		rating, err := fsrs.ParseRating(args[1])
		if err != nil {
			fatalf("%v", err)
		}
		at, _ := cmd.Flags().GetString("at")
		now, err := parseAt(at, time.Now())
		if err != nil {
			fatalf("%v", err)
		}

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		card, err := a.Scheduler.Grade(ctx, args[0], rating, now)
		if err != nil {
			fatalErr("failed to grade card", err)
		}
		if jsonOutput {
			outputJSON(card)
			return
		}
		fmt.Printf("%s Graded %s, next review %s (%s)\n",
			ui.RenderPass("✓"), rating, card.Due, untilDue(schema.FromMillis(card.DueMs), now))
	},
}

var backlogCmd = &cobra.Command{
	Use:     "backlog",
	GroupID: "review",
	Short:   "Manage overdue cards",
}

var backlogClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Grade every backlog card as hard",
	Long: `Grade every card overdue by more than the backlog threshold as "hard",
one card at a time. Interrupting leaves the remaining cards in the backlog;
running the command again continues with them.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := queueOptions(cmd)

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx)
		defer closeApp(a)

		it := a.Scheduler.ClearBacklog(opts)
		for it.Next(ctx) {
			if !jsonOutput {
				p := it.Progress()
				fmt.Printf("\r%s Cleared %d/%d", ui.RenderAccent("🔄"), p.Cleared, p.Total)
			}
		}
		p := it.Progress()
		if jsonOutput {
			outputJSON(p)
		} else if p.Total > 0 {
			fmt.Println()
		}
		if err := it.Err(); err != nil {
			fatalErr("backlog clear stopped", err)
		}
		if !jsonOutput {
			fmt.Printf("%s Backlog cleared (%d cards)\n", ui.RenderPass("✓"), p.Cleared)
		}
	},
}

var resetCmd = &cobra.Command{
	Use:     "reset <entry-id>",
	GroupID: "review",
	Short:   "Reset the review progress of an entry's cards",
	Long: `Reset both flashcards of an entry to new, due now. With --card only
that card is reset and the argument is a card id.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		single, _ := cmd.Flags().GetBool("card")

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		var cards []*schema.Flashcard
		if single {
			c, err := a.Scheduler.Reset(ctx, args[0])
			if err != nil {
				fatalErr("failed to reset card", err)
			}
			cards = append(cards, c)
		} else {
			var err error
			if cards, err = a.Scheduler.ResetEntry(ctx, args[0]); err != nil {
				fatalErr("failed to reset entry", err)
			}
		}

		if jsonOutput {
			outputJSON(cards)
			return
		}
		fmt.Printf("%s Reset %d card(s)\n", ui.RenderPass("✓"), len(cards))
	},
}

var hideCmd = &cobra.Command{
	Use:     "hide <card-id>",
	GroupID: "review",
	Short:   "Hide a card from every queue (--undo to show it again)",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		undo, _ := cmd.Flags().GetBool("undo")

		ctx := context.Background()
		a := openApp(ctx)
		defer closeApp(a)

		if err := a.Scheduler.SetHidden(ctx, args[0], !undo); err != nil {
			fatalErr("failed to update card", err)
		}
		state := "hidden"
		if undo {
			state = "visible"
		}
		fmt.Printf("%s Card %s is %s\n", ui.RenderPass("✓"), args[0], state)
	},
}

// queueOptions reads --at, --deck and --limit.
func queueOptions(cmd *cobra.Command) scheduler.QueueOptions {
	at, _ := cmd.Flags().GetString("at")
	deck, _ := cmd.Flags().GetString("deck")
	limit, _ := cmd.Flags().GetInt("limit")

	now, err := parseAt(at, time.Now())
	if err != nil {
		fatalf("%v", err)
	}
	return scheduler.QueueOptions{Now: now, DeckID: deck, Limit: limit}
}

func registerQueueFlags(cmd *cobra.Command) {
	cmd.Flags().String("at", "", `Evaluate the queue at this time ("tomorrow", "in 2 days", RFC 3339)`)
	cmd.Flags().String("deck", "", "Restrict to a deck id")
	cmd.Flags().IntP("limit", "n", 0, "Maximum cards (0 = all)")
}

func init() {
	registerQueueFlags(queueCmd)
	registerQueueFlags(reviewCmd)
	registerQueueFlags(backlogClearCmd)
	queueCmd.Flags().Bool("backlog", false, "List backlog cards instead of today's queue")
	gradeCmd.Flags().String("at", "", "Grade as of this time")
	resetCmd.Flags().Bool("card", false, "Argument is a card id; reset only that card")
	hideCmd.Flags().Bool("undo", false, "Show the card again")

	backlogCmd.AddCommand(backlogClearCmd)
	rootCmd.AddCommand(queueCmd, reviewCmd, gradeCmd, backlogCmd, resetCmd, hideCmd)
}
