package domain

import "time"

// Tick is one host frame. The host runs TicksPerSecond frames per second.
type Tick int64

// TicksPerSecond matches the host frame rate.
const TicksPerSecond Tick = 20

// TickDuration is the wall-clock length of one tick.
const TickDuration = time.Second / time.Duration(TicksPerSecond)

// Seconds converts a whole number of seconds into ticks.
func Seconds(n int) Tick {
	return Tick(n) * TicksPerSecond
}

// Relative delays of the punishment timeline. Each delay is measured from the
// phase that schedules the next one.
const (
	// Trigger -> Title1.
	DelayTitle1 Tick = 40
	// Title1 -> Title2.
	DelayTitle2 Tick = 100
	// Title1 -> EffectsStart.
	DelayEffects Tick = 200
	// Title2 -> FadeOut.
	DelayFadeOut Tick = 200
	// EffectsStart -> Terminal, and the duration of every debuff.
	EffectDuration Tick = 2400
	// Spacing between ambient pulses.
	PulseInterval Tick = 20
	// Number of ambient pulses.
	PulseCount = 120
)
