package world

import (
	"sort"

	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

// ChunkSize — ширина чанка по X и Z.
const ChunkSize = 16

// Chunk — колонна мира 16×16 на всю высоту. Блоки хранятся разреженно
// в локальных координатах (X и Z от 0 до 15), отсутствие записи — воздух.
//
// Чанк не синхронизирован: его защищает владеющий World.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка (X, Z)

	blocks  map[vec.Vec3]block.BlockID
	changes map[vec.Vec3]struct{} // Изменения после генерации или загрузки
}

// NewChunk создаёт пустой чанк.
func NewChunk(coords vec.Vec2) *Chunk {
	return &Chunk{
		Coords:  coords,
		blocks:  make(map[vec.Vec3]block.BlockID),
		changes: make(map[vec.Vec3]struct{}),
	}
}

// Locate возвращает чанк клетки и её локальные координаты в нём.
func Locate(c vec.Cell) (vec.Vec2, vec.Vec3) {
	col := c.Column()
	chunk := col.ToChunkCoords()
	local := col.LocalInChunk()
	return chunk, vec.Vec3{X: local.X, Y: c.Y, Z: local.Y}
}

// GetBlock возвращает блок в локальных координатах.
func (ch *Chunk) GetBlock(local vec.Vec3) block.BlockID {
	return ch.blocks[local]
}

// SetBlock ставит блок и запоминает изменение для сохранения.
func (ch *Chunk) SetBlock(local vec.Vec3, id block.BlockID) {
	ch.setRaw(local, id)
	ch.changes[local] = struct{}{}
}

// setRaw ставит блок без учёта изменений (генерация, загрузка).
func (ch *Chunk) setRaw(local vec.Vec3, id block.BlockID) {
	if id == block.AirBlockID {
		delete(ch.blocks, local)
		return
	}
	ch.blocks[local] = id
}

// ApplyStored применяет сохранённый блок без пометки об изменении.
func (ch *Chunk) ApplyStored(local vec.Vec3, id block.BlockID) {
	ch.setRaw(local, id)
}

// Changes возвращает изменённые позиции в детерминированном порядке.
func (ch *Chunk) Changes() []vec.Vec3 {
	out := make([]vec.Vec3, 0, len(ch.changes))
	for p := range ch.changes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.X < b.X
	})
	return out
}

// ChangeCount возвращает число несохранённых изменений.
func (ch *Chunk) ChangeCount() int { return len(ch.changes) }

// ClearChanges сбрасывает список изменений после сохранения.
func (ch *Chunk) ClearChanges() {
	ch.changes = make(map[vec.Vec3]struct{})
}

// Len возвращает число непустых блоков.
func (ch *Chunk) Len() int { return len(ch.blocks) }
