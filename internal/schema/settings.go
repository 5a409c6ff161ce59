package schema

// AntonymsMode controls where antonyms appear on a flashcard.
type AntonymsMode string

const (
	AntonymsHidden AntonymsMode = "hidden"
	AntonymsHint   AntonymsMode = "hint"
	AntonymsAnswer AntonymsMode = "answer"
)

func (m AntonymsMode) IsValid() bool {
	switch m {
	case AntonymsHidden, AntonymsHint, AntonymsAnswer:
		return true
	}
	return false
}

// Settings are the per-user preferences stored in the singleton settings row.
type Settings struct {
	ShowReverseFlashcards   bool         `json:"show_reverse_flashcards"`
	ShowAntonymsInFlashcard AntonymsMode `json:"show_antonyms_in_flashcard"`
	UpdatedAtMs             int64        `json:"updated_at_timestamp_ms"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		ShowReverseFlashcards:   false,
		ShowAntonymsInFlashcard: AntonymsHidden,
	}
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	fe := &fieldErrors{}
	if !s.ShowAntonymsInFlashcard.IsValid() {
		fe.add("show_antonyms_in_flashcard", "must be hidden, hint or answer (got %q)", s.ShowAntonymsInFlashcard)
	}
	return fe.err()
}
