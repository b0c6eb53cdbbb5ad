package domain

// Phase is one step of the fixed punishment timeline.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDelay1
	PhaseTitle1
	PhaseDelay2
	PhaseTitle2
	PhaseFadeOut
	PhaseEffectsStart
	PhaseEffectGrind
	PhaseTerminal
)

var phaseNames = [...]string{
	PhaseIdle:         "idle",
	PhaseDelay1:       "delay1",
	PhaseTitle1:       "title1",
	PhaseDelay2:       "delay2",
	PhaseTitle2:       "title2",
	PhaseFadeOut:      "fade_out",
	PhaseEffectsStart: "effects_start",
	PhaseEffectGrind:  "effect_grind",
	PhaseTerminal:     "terminal",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
