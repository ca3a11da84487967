package world

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

func TestLocate_NegativeCoords(t *testing.T) {
	coords, local := Locate(vec.At("w", -1, 70, 17))
	assert.Equal(t, vec.Vec2{X: -1, Y: 1}, coords)
	assert.Equal(t, vec.Vec3{X: 15, Y: 70, Z: 1}, local)

	coords, local = Locate(vec.At("w", 16, 0, -16))
	assert.Equal(t, vec.Vec2{X: 1, Y: -1}, coords)
	assert.Equal(t, vec.Vec3{X: 0, Y: 0, Z: 0}, local)
}

func TestChunk_ChangesTracked(t *testing.T) {
	ch := NewChunk(vec.Vec2{X: 2, Y: 3})
	ch.ApplyStored(vec.Vec3{X: 1, Y: 60, Z: 1}, block.StoneBlockID)
	assert.Zero(t, ch.ChangeCount(), "Загрузка не считается изменением")

	ch.SetBlock(vec.Vec3{X: 4, Y: 61, Z: 0}, block.SandBlockID)
	ch.SetBlock(vec.Vec3{X: 1, Y: 60, Z: 1}, block.AirBlockID)

	assert.Equal(t, []vec.Vec3{{X: 1, Y: 60, Z: 1}, {X: 4, Y: 61, Z: 0}}, ch.Changes())
	assert.Equal(t, block.AirBlockID, ch.GetBlock(vec.Vec3{X: 1, Y: 60, Z: 1}))
	assert.Equal(t, 1, ch.Len(), "Воздух не хранится")

	ch.ClearChanges()
	assert.Zero(t, ch.ChangeCount())
}
