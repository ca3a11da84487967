package world

import (
	"math/rand"

	"github.com/annel0/gunpowder/internal/util"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

// Константы высот для генерации
const (
	MinY       = 40 // Ниже — сплошной камень
	BaseHeight = 64 // Средняя высота поверхности
	Amplitude  = 6  // Разброс высоты
	SeaLevel   = 62 // Уровень воды
)

// Generator генерирует ландшафт: камень, землю или песок, воду в низинах
// и растительность на поверхности, на которой порох не держится.
type Generator struct {
	Seed        int64
	NoiseScale  float64 // Масштаб шума высоты
	FloraScale  float64 // Масштаб шума растительности
	FloraChance float64 // Доля травы и цветов на суше
	height      *util.Noise
	flora       *util.Noise
}

// NewGenerator создаёт генератор для сида.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:        seed,
		NoiseScale:  0.05,
		FloraScale:  0.1,
		FloraChance: 0.25,
		height:      util.NewNoise(seed),
		flora:       util.NewNoise(seed + 42),
	}
}

// SurfaceHeight возвращает Y первой клетки над грунтом в колонке (x, z).
func (g *Generator) SurfaceHeight(x, z int) int {
	n := g.height.At(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	return BaseHeight + int((n-0.5)*2*Amplitude)
}

// GenerateChunk генерирует чанк по его координатам.
func (g *Generator) GenerateChunk(coords vec.Vec2) *Chunk {
	ch := NewChunk(coords)

	// Для каждого чанка свой детерминированный генератор случайных чисел
	rng := rand.New(rand.NewSource(g.Seed + int64(coords.X*31) + int64(coords.Y*17)))

	for lx := 0; lx < ChunkSize; lx++ {
		for lz := 0; lz < ChunkSize; lz++ {
			x := coords.X*ChunkSize + lx
			z := coords.Y*ChunkSize + lz
			top := g.SurfaceHeight(x, z)

			for y := MinY; y < top; y++ {
				ch.setRaw(vec.Vec3{X: lx, Y: y, Z: lz}, g.groundAt(y, top))
			}

			if top <= SeaLevel {
				for y := top; y <= SeaLevel; y++ {
					ch.setRaw(vec.Vec3{X: lx, Y: y, Z: lz}, block.WaterBlockID)
				}
				continue
			}

			if id, ok := g.floraAt(x, z, rng); ok {
				ch.setRaw(vec.Vec3{X: lx, Y: top, Z: lz}, id)
			}
		}
	}
	return ch
}

// groundAt возвращает материал грунта на высоте y для колонки с поверхностью top.
func (g *Generator) groundAt(y, top int) block.BlockID {
	switch {
	case y == top-1 && top <= SeaLevel+1:
		return block.SandBlockID
	case y == top-1:
		return block.GrassBlockID
	case y >= top-3:
		return block.DirtBlockID
	default:
		return block.StoneBlockID
	}
}

var (
	flowers = []block.BlockID{
		block.PoppyBlockID, block.DandelionBlockID, block.CornflowerBlockID,
		block.OxeyeDaisyBlockID, block.AzureBluetBlockID, block.AlliumBlockID,
	}
	grasses = []block.BlockID{block.ShortGrassBlockID, block.TallGrassBlockID, block.FernBlockID}
)

// floraAt решает, что растёт на поверхности колонки.
func (g *Generator) floraAt(x, z int, rng *rand.Rand) (block.BlockID, bool) {
	density := g.flora.At(float64(x)*g.FloraScale, float64(z)*g.FloraScale)
	roll := rng.Float64()
	switch {
	case roll >= g.FloraChance*density*2:
		return block.AirBlockID, false
	case density > 0.7:
		return block.OakLeavesBlockID, true // Кусты в густых местах
	case roll < g.FloraChance*0.2:
		return flowers[rng.Intn(len(flowers))], true
	default:
		return grasses[rng.Intn(len(grasses))], true
	}
}
