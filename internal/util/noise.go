package util

import (
	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина
const (
	noiseAlpha  = 2.0 // Сглаживание шума
	noiseBeta   = 2.0 // Частота шума
	noiseOctave = 3   // Количество октав
)

// Noise — детерминированный генератор шума Перлина для одного сида.
type Noise struct {
	seed int64
	p    *perlin.Perlin
}

// NewNoise создаёт генератор шума с указанным сидом.
func NewNoise(seed int64) *Noise {
	return &Noise{seed: seed, p: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctave, seed)}
}

// Seed возвращает сид генератора.
func (n *Noise) Seed() int64 { return n.seed }

// At возвращает значение шума для указанных координат (от 0 до 1).
func (n *Noise) At(x, y float64) float64 {
	// Значение шума примерно от -1 до 1
	v := (n.p.Noise2D(x, y) + 1.0) / 2.0
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
