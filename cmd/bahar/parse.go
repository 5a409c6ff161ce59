package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/Shunseii/bahar-sub001/internal/schema"
)

var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseAt reads an absolute RFC 3339 time or a phrase such as "tomorrow",
// "in 3 days" or "next monday 9am" relative to base. Empty means base.
func parseAt(s string, base time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return base, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	r, err := timeParser.Parse(s, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	return r.Time, nil
}

// parseStates maps card state names to values.
func parseStates(names []string) ([]schema.CardState, error) {
	out := make([]schema.CardState, 0, len(names))
	for _, n := range names {
		found := false
		for s := schema.StateNew; s <= schema.StateRelearning; s++ {
			if strings.EqualFold(n, s.String()) {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown card state %q (want new, learning, review or relearning)", n)
		}
	}
	return out, nil
}

// untilDue renders how far a due time is from now, e.g. "10m" or "4d".
func untilDue(due, now time.Time) string {
	d := due.Sub(now)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%.1fy", d.Hours()/24/365)
	}
}
