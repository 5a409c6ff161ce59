package schema

import "strings"

// Deck is a named saved filter over flashcards.
type Deck struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Filters     DeckFilters `json:"filters"`
	CreatedAtMs int64       `json:"created_at_timestamp_ms"`
	UpdatedAtMs int64       `json:"updated_at_timestamp_ms"`
}

// DeckFilters restrict which cards belong to a deck. Empty slices match everything.
type DeckFilters struct {
	Tags   []string    `json:"tags,omitempty"`
	Types  []WordType  `json:"types,omitempty"`
	States []CardState `json:"states,omitempty"`
}

// Validate checks the deck.
func (d *Deck) Validate() error {
	fe := &fieldErrors{}
	if strings.TrimSpace(d.Name) == "" {
		fe.add("name", "is required")
	}
	for i, t := range d.Filters.Types {
		if !t.IsValid() {
			fe.add(indexed("filters.types", i), "unknown word type %q", t)
		}
	}
	for i, s := range d.Filters.States {
		if !s.IsValid() {
			fe.add(indexed("filters.states", i), "unknown card state %d", s)
		}
	}
	return fe.err()
}
