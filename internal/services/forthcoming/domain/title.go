package domain

// Title is a primary/secondary screen title with fade timings in ticks.
type Title struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	FadeIn    Tick   `json:"fade_in"`
	Stay      Tick   `json:"stay"`
	FadeOut   Tick   `json:"fade_out"`
}

// NarrativeTitle shows text with the short fade used for the two warnings.
func NarrativeTitle(text string) Title {
	return Title{Primary: text, FadeIn: 5, Stay: 100, FadeOut: 5}
}

// ClosingTitle shows the closing text with a slower fade.
func ClosingTitle(text string) Title {
	return Title{Primary: text, FadeIn: 10, Stay: 100, FadeOut: 10}
}

// ClearedTitle replaces any displayed title with an empty one.
func ClearedTitle() Title {
	return Title{FadeIn: 10, Stay: 1, FadeOut: 10}
}
