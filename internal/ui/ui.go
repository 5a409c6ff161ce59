// Package ui renders styled terminal output for the CLI.
package ui

import (
	"html"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
	markStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Init picks the color profile for w, honoring NO_COLOR and CLICOLOR_FORCE.
func Init(w io.Writer) {
	SetProfile(termenv.NewOutput(w).EnvColorProfile())
}

// SetProfile forces a color profile. termenv.Ascii disables styling.
func SetProfile(p termenv.Profile) {
	lipgloss.SetColorProfile(p)
}

func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }
func RenderBold(s string) string   { return boldStyle.Render(s) }

// RenderHighlight turns search highlighter output (escaped HTML with <mark>
// spans) into styled terminal text.
func RenderHighlight(marked string) string {
	var b strings.Builder
	rest := marked
	for {
		open := strings.Index(rest, "<mark>")
		if open < 0 {
			b.WriteString(html.UnescapeString(rest))
			return b.String()
		}
		b.WriteString(html.UnescapeString(rest[:open]))
		rest = rest[open+len("<mark>"):]

		end := strings.Index(rest, "</mark>")
		if end < 0 {
			b.WriteString(markStyle.Render(html.UnescapeString(rest)))
			return b.String()
		}
		b.WriteString(markStyle.Render(html.UnescapeString(rest[:end])))
		rest = rest[end+len("</mark>"):]
	}
}

// Table renders rows under a header with a rounded border.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}
