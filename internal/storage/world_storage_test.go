package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world"
	"github.com/annel0/gunpowder/internal/world/block"
)

func setupTestStorage(t *testing.T) *WorldStorage {
	t.Helper()
	storage, err := NewWorldStorage(t.TempDir())
	require.NoError(t, err, "Не удалось создать хранилище")
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestSaveAndLoadChunk(t *testing.T) {
	storage := setupTestStorage(t)

	chunk := world.NewChunk(vec.Vec2{X: 10, Y: 20})
	chunk.SetBlock(vec.Vec3{X: 5, Y: 64, Z: 5}, block.PlanksBlockID)
	chunk.SetBlock(vec.Vec3{X: 8, Y: 70, Z: 3}, block.TNTBlockID)

	require.NoError(t, storage.SaveChunk("overworld", chunk))
	assert.Zero(t, chunk.ChangeCount(), "После сохранения изменения сброшены")

	loaded := world.NewChunk(vec.Vec2{X: 10, Y: 20})
	require.NoError(t, storage.LoadChunk("overworld", loaded))
	assert.Equal(t, block.PlanksBlockID, loaded.GetBlock(vec.Vec3{X: 5, Y: 64, Z: 5}))
	assert.Equal(t, block.TNTBlockID, loaded.GetBlock(vec.Vec3{X: 8, Y: 70, Z: 3}))
	assert.Zero(t, loaded.ChangeCount(), "Загрузка не считается изменением")
}

func TestSaveChunk_MergesDeltas(t *testing.T) {
	storage := setupTestStorage(t)
	coords := vec.Vec2{X: 0, Y: 0}

	chunk := world.NewChunk(coords)
	chunk.SetBlock(vec.Vec3{X: 1, Y: 64, Z: 1}, block.StoneBlockID)
	require.NoError(t, storage.SaveChunk("w", chunk))

	chunk.SetBlock(vec.Vec3{X: 2, Y: 64, Z: 2}, block.DirtBlockID)
	require.NoError(t, storage.SaveChunk("w", chunk))

	delta, err := storage.LoadDelta("w", coords)
	require.NoError(t, err)
	assert.Len(t, delta.BlockDeltas, 2, "Второе сохранение дополняет первое")
}

func TestSaveChunk_FuseStoredAsAir(t *testing.T) {
	storage := setupTestStorage(t)

	chunk := world.NewChunk(vec.Vec2{X: 1, Y: 1})
	p := vec.Vec3{X: 4, Y: 65, Z: 4}
	chunk.SetBlock(p, block.FuseBlockID)
	require.NoError(t, storage.SaveChunk("w", chunk))

	loaded := world.NewChunk(vec.Vec2{X: 1, Y: 1})
	loaded.ApplyStored(p, block.GrassBlockID)
	require.NoError(t, storage.LoadChunk("w", loaded))
	assert.Equal(t, block.AirBlockID, loaded.GetBlock(p))
}

func TestWorldsAreSeparated(t *testing.T) {
	storage := setupTestStorage(t)

	chunk := world.NewChunk(vec.Vec2{X: 3, Y: 3})
	chunk.SetBlock(vec.Vec3{X: 0, Y: 60, Z: 0}, block.StoneBlockID)
	require.NoError(t, storage.SaveChunk("a", chunk))

	n, err := storage.Chunks("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = storage.Chunks("b")
	require.NoError(t, err)
	assert.Zero(t, n)

	delta, err := storage.LoadDelta("b", vec.Vec2{X: 3, Y: 3})
	require.NoError(t, err)
	assert.Empty(t, delta.BlockDeltas)
}

func TestClosedStorage(t *testing.T) {
	storage, err := NewWorldStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, storage.Close())
	require.NoError(t, storage.Close(), "Повторное закрытие безопасно")

	chunk := world.NewChunk(vec.Vec2{})
	chunk.SetBlock(vec.Vec3{Y: 64}, block.StoneBlockID)
	assert.ErrorIs(t, storage.SaveChunk("w", chunk), ErrNotReady)
	assert.ErrorIs(t, storage.LoadChunk("w", chunk), ErrNotReady)
}

func TestWorld_PersistsThroughStorage(t *testing.T) {
	storage := setupTestStorage(t)
	opts := world.Options{ID: "overworld", Seed: 7, Store: storage, Scheduler: scheduler.NewTickScheduler()}

	w, err := world.New(opts)
	require.NoError(t, err)
	c := vec.Cell{World: "overworld", X: 2, Y: 120, Z: 2}
	w.SetBlock(c, block.PlanksBlockID)
	_, err = w.Save()
	require.NoError(t, err)

	reloaded, err := world.New(opts)
	require.NoError(t, err)
	assert.Equal(t, block.PlanksBlockID, reloaded.MaterialAt(c))
}
