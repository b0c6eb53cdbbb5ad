package domain

// SoundKind names a sound the host can play at the actor's location.
type SoundKind string

const (
	SoundAmbientCave    SoundKind = "ambient.cave"
	SoundBatAmbient     SoundKind = "entity.bat.ambient"
	SoundUnderwaterLoop SoundKind = "ambient.underwater.loop"
	SoundPlayerLevelUp  SoundKind = "entity.player.levelup"
	defaultSoundVolume            = 2.0
)

// Sound is one sound playback.
type Sound struct {
	Kind   SoundKind `json:"kind"`
	Volume float32   `json:"volume"`
	Pitch  float32   `json:"pitch"`
}

var pulseRotation = [...]SoundKind{SoundAmbientCave, SoundBatAmbient, SoundUnderwaterLoop}

// PulseSound returns the ambient sound for pulse i: a three-way rotation with
// pitch rising by 1/240 per pulse.
func PulseSound(i int) Sound {
	return Sound{
		Kind:   pulseRotation[i%len(pulseRotation)],
		Volume: defaultSoundVolume,
		Pitch:  1 + float32(i)/240,
	}
}

// Narrative sounds.
var (
	AwakeningSound   = Sound{Kind: SoundAmbientCave, Volume: defaultSoundVolume, Pitch: 0.8}
	ForthcomingSound = Sound{Kind: SoundBatAmbient, Volume: defaultSoundVolume, Pitch: 0.8}
	ClosingSound     = Sound{Kind: SoundPlayerLevelUp, Volume: defaultSoundVolume, Pitch: 1}
)
