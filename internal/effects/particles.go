// Package effects содержит приёмники визуальных и звуковых эффектов механики
// пороха: запись в лог, публикацию в шину событий и их комбинации.
package effects

import "github.com/annel0/gunpowder/internal/vec"

// Particles — параметры частиц, передаваемые клиентам вместе с событием.
type Particles struct {
	DustCount  int     `yaml:"dust_count" json:"dust_count"`
	DustColor  [3]int  `yaml:"dust_color" json:"dust_color"` // RGB
	DustSize   float64 `yaml:"dust_size" json:"dust_size"`
	FlameCount int     `yaml:"flame_count" json:"flame_count"`
	LavaCount  int     `yaml:"lava_count" json:"lava_count"`
	SmokeCount int     `yaml:"smoke_count" json:"smoke_count"`
}

// DefaultParticles возвращает параметры по умолчанию.
func DefaultParticles() Particles {
	return Particles{
		DustCount:  3,
		DustColor:  [3]int{50, 50, 50},
		DustSize:   1.2,
		FlameCount: 8,
		LavaCount:  2,
		SmokeCount: 3,
	}
}

// Effect — вид эффекта.
type Effect string

const (
	EffectPlace            Effect = "place"
	EffectAmbient          Effect = "ambient"
	EffectIgnite           Effect = "ignite"
	EffectExplosionTrigger Effect = "explosion_trigger"
)

// Sound — звук, сопровождающий эффект.
type Sound struct {
	Name   string  `json:"name"`
	Volume float64 `json:"volume"`
	Pitch  float64 `json:"pitch"`
}

// sounds — звуковое сопровождение эффектов.
var sounds = map[Effect][]Sound{
	EffectPlace: {{Name: "block.sand.place", Volume: 0.5, Pitch: 0.8}},
	EffectIgnite: {
		{Name: "entity.creeper.primed", Volume: 0.7, Pitch: 1.4},
		{Name: "block.fire.ambient", Volume: 0.5, Pitch: 1.2},
	},
	EffectExplosionTrigger: {{Name: "entity.tnt.primed", Volume: 1.0, Pitch: 1.0}},
}

// Payload — полезная нагрузка события эффекта.
type Payload struct {
	Effect    Effect         `json:"effect"`
	World     string         `json:"world"`
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Z         int            `json:"z"`
	Tick      uint64         `json:"tick,omitempty"`
	Particles map[string]any `json:"particles,omitempty"`
	Sounds    []Sound        `json:"sounds,omitempty"`
}

// payloadFor собирает нагрузку: только частицы, относящиеся к эффекту.
func payloadFor(effect Effect, c vec.Cell, p Particles, tick uint64) Payload {
	pl := Payload{
		Effect: effect,
		World:  c.World,
		X:      c.X,
		Y:      c.Y,
		Z:      c.Z,
		Tick:   tick,
		Sounds: sounds[effect],
	}
	switch effect {
	case EffectAmbient:
		pl.Particles = map[string]any{
			"dust": p.DustCount, "dust_color": p.DustColor, "dust_size": p.DustSize,
		}
	case EffectIgnite:
		pl.Particles = map[string]any{
			"flame": p.FlameCount, "lava": p.LavaCount, "smoke": p.SmokeCount,
		}
	}
	return pl
}
