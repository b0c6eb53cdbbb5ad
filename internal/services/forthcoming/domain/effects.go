package domain

// EffectKind names a negative status effect understood by the host.
type EffectKind string

const (
	EffectPoison        EffectKind = "poison"
	EffectWither        EffectKind = "wither"
	EffectSlowness      EffectKind = "slowness"
	EffectMiningFatigue EffectKind = "mining_fatigue"
	EffectNausea        EffectKind = "nausea"
	EffectBlindness     EffectKind = "blindness"
	EffectHunger        EffectKind = "hunger"
	EffectWeakness      EffectKind = "weakness"
	EffectUnluck        EffectKind = "unluck"
)

// Effect is one status effect application. Amplifier 0 is level I.
type Effect struct {
	Kind      EffectKind `json:"kind"`
	Amplifier int        `json:"amplifier"`
	Duration  Tick       `json:"duration_ticks"`
}

// DebuffBundle returns the fixed set of effects applied at EffectsStart.
func DebuffBundle() []Effect {
	return []Effect{
		{Kind: EffectPoison, Amplifier: 0, Duration: EffectDuration},
		{Kind: EffectWither, Amplifier: 0, Duration: EffectDuration},
		{Kind: EffectSlowness, Amplifier: 2, Duration: EffectDuration},
		{Kind: EffectMiningFatigue, Amplifier: 2, Duration: EffectDuration},
		{Kind: EffectNausea, Amplifier: 1, Duration: EffectDuration},
		{Kind: EffectBlindness, Amplifier: 0, Duration: EffectDuration},
		{Kind: EffectHunger, Amplifier: 1, Duration: EffectDuration},
		{Kind: EffectWeakness, Amplifier: 1, Duration: EffectDuration},
		{Kind: EffectUnluck, Amplifier: 0, Duration: EffectDuration},
	}
}
