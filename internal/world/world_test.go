package world

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

// platformY — высота площадки над любым рельефом.
const platformY = 100

func newTestWorld(t *testing.T, store ChunkStore) (*World, *scheduler.TickScheduler) {
	t.Helper()
	sched := scheduler.NewTickScheduler()
	w, err := New(Options{
		ID:              "overworld",
		Seed:            1,
		Scheduler:       sched,
		Store:           store,
		TNTFuseTicks:    10,
		ExplosionRadius: 1.5,
		Logger:          logging.NewWriterLogger("world", io.Discard, logging.TRACE),
	})
	require.NoError(t, err)

	for x := -6; x <= 6; x++ {
		for z := -6; z <= 6; z++ {
			w.SetBlock(vec.At("overworld", x, platformY-1, z), block.StoneBlockID)
		}
	}
	return w, sched
}

func cell(x, y, z int) vec.Cell { return vec.At("overworld", x, platformY+y, z) }

func TestNew_RequiresScheduler(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestWorld_Blocks(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	assert.Equal(t, block.StoneBlockID, w.MaterialAt(cell(0, -1, 0)))
	assert.True(t, w.MaterialAt(cell(0, 0, 0)).IsAir())

	w.SetBlock(cell(0, 0, 0), block.WaterBlockID)
	assert.True(t, w.IsLiquid(cell(0, 0, 0)))
	w.SetEmpty(cell(0, 0, 0))
	assert.True(t, w.MaterialAt(cell(0, 0, 0)).IsAir())

	foreign := vec.At("nether", 0, platformY-1, 0)
	w.SetBlock(foreign, block.StoneBlockID)
	assert.True(t, w.MaterialAt(foreign).IsAir(), "Чужой мир не изменяется")
	assert.False(t, w.Loaded("nether"))
	assert.True(t, w.Loaded("overworld"))

	assert.Equal(t, block.StoneBlockID, w.MaterialAt(vec.At("overworld", 0, MinY-5, 0)))
}

func TestWorld_SurfaceAt(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	c := w.SurfaceAt(20, 20)
	assert.True(t, w.MaterialAt(c).IsAir())
	assert.False(t, w.MaterialAt(c.Down()).IsAir())
}

func TestWorld_Items(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	require.NoError(t, w.GiveItem("steve", block.ItemGunpowder, 2))
	require.NoError(t, w.TakeItem("steve", block.ItemGunpowder, 1))
	assert.Equal(t, map[block.ItemKind]int{block.ItemGunpowder: 1}, w.Inventory("steve"))

	err := w.TakeItem("steve", block.ItemGunpowder, 5)
	assert.ErrorIs(t, err, ErrNotEnoughItems)
	assert.ErrorIs(t, w.TakeItem("alex", block.ItemGunpowder, 1), ErrNotEnoughItems)

	require.NoError(t, w.DropItem(cell(1, 0, 1), block.ItemGunpowder, 1))
	require.NoError(t, w.DropItem(cell(1, 0, 1), block.ItemString, 2))
	assert.Equal(t, 2, w.ClearDrops(cell(1, 0, 1), block.ItemString))
	assert.Equal(t, map[block.ItemKind]int{block.ItemGunpowder: 1}, w.DropsAt(cell(1, 0, 1)))
	assert.Equal(t, []vec.Cell{cell(1, 0, 1)}, w.DropCells())

	assert.ErrorIs(t, w.DropItem(vec.At("nether", 0, 0, 0), block.ItemGunpowder, 1), ErrForeignWorld)
}

func TestWorld_PrimeDetonates(t *testing.T) {
	w, sched := newTestWorld(t, nil)
	w.SetBlock(cell(0, 0, 0), block.TNTBlockID)
	w.SetBlock(cell(1, 0, 0), block.PlanksBlockID)

	assert.True(t, w.Prime(cell(0, 0, 0)))
	assert.False(t, w.Prime(cell(0, 0, 0)), "Заряд уже активен")
	assert.Equal(t, []vec.Cell{cell(0, 0, 0)}, w.Charges())
	assert.True(t, w.MaterialAt(cell(0, 0, 0)).IsAir())
	assert.False(t, w.Prime(cell(3, 0, 3)), "Не взрывчатка")

	sched.Advance(9)
	assert.Equal(t, block.PlanksBlockID, w.MaterialAt(cell(1, 0, 0)))
	sched.Advance(1)

	assert.True(t, w.MaterialAt(cell(1, 0, 0)).IsAir(), "Взрыв разрушил доски")
	assert.Empty(t, w.Charges())
	assert.Equal(t, uint64(1), w.Explosions())
}

func TestWorld_ExplodeFilterAndChain(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	w.SetBlock(cell(1, 0, 0), block.PlanksBlockID)
	w.SetBlock(cell(-1, 0, 0), block.CobbleBlockID)
	w.SetBlock(cell(0, 0, 1), block.TNTBlockID)

	var seen []vec.Cell
	w.OnExplode(func(affected []vec.Cell) []vec.Cell {
		seen = affected
		out := affected[:0:0]
		for _, c := range affected {
			if c != cell(-1, 0, 0) {
				out = append(out, c)
			}
		}
		return out
	})
	var changed []vec.Cell
	w.OnBlockChange(func(c vec.Cell) { changed = append(changed, c) })

	destroyed := w.Explode(cell(0, 0, 0), 1.5)

	assert.Contains(t, seen, cell(-1, 0, 0))
	assert.Equal(t, block.CobbleBlockID, w.MaterialAt(cell(-1, 0, 0)), "Отфильтрованная клетка цела")
	assert.Contains(t, destroyed, cell(1, 0, 0))
	assert.Contains(t, destroyed, cell(0, -1, 0), "Пол под взрывом разрушен")
	assert.NotContains(t, destroyed, cell(0, 0, 1))
	assert.Equal(t, []vec.Cell{cell(0, 0, 1)}, w.Charges(), "Взрывчатка поджигается цепочкой")
	assert.Contains(t, changed, cell(1, 1, 0), "Блоки над воронкой получают уведомление")
}

func TestWorld_ChangeBlockNotifies(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	var changed []vec.Cell
	w.OnBlockChange(func(c vec.Cell) { changed = append(changed, c) })

	require.NoError(t, w.ChangeBlock(cell(2, -1, 2), block.AirBlockID))
	assert.Equal(t, []vec.Cell{cell(2, -1, 2), cell(2, 0, 2)}, changed)
	assert.ErrorIs(t, w.ChangeBlock(vec.At("nether", 0, 0, 0), block.StoneBlockID), ErrForeignWorld)
}

// memStore — хранилище чанков в памяти.
type memStore struct {
	saved map[vec.Vec2]map[vec.Vec3]block.BlockID
}

func (s *memStore) LoadChunk(_ string, ch *Chunk) error {
	for p, id := range s.saved[ch.Coords] {
		ch.ApplyStored(p, id)
	}
	return nil
}

func (s *memStore) SaveChunk(_ string, ch *Chunk) error {
	m, ok := s.saved[ch.Coords]
	if !ok {
		m = make(map[vec.Vec3]block.BlockID)
		s.saved[ch.Coords] = m
	}
	for _, p := range ch.Changes() {
		m[p] = ch.GetBlock(p)
	}
	ch.ClearChanges()
	return nil
}

func TestWorld_SaveAndReload(t *testing.T) {
	store := &memStore{saved: make(map[vec.Vec2]map[vec.Vec3]block.BlockID)}
	w, _ := newTestWorld(t, store)
	w.SetBlock(cell(3, 0, 3), block.PlanksBlockID)

	n, err := w.Save()
	require.NoError(t, err)
	assert.Positive(t, n)

	n, err = w.Save()
	require.NoError(t, err)
	assert.Zero(t, n, "Без изменений сохранять нечего")

	reloaded, _ := newTestWorld(t, store)
	assert.Equal(t, block.PlanksBlockID, reloaded.MaterialAt(cell(3, 0, 3)))
}

func TestWorld_PrimeNotifiesCellAbove(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	w.SetBlock(cell(0, 0, 0), block.TNTBlockID)
	var changed []vec.Cell
	w.OnBlockChange(func(c vec.Cell) { changed = append(changed, c) })

	require.True(t, w.Prime(cell(0, 0, 0)))
	assert.Equal(t, []vec.Cell{cell(0, 1, 0)}, changed, "Клетка над зарядом теряет опору")
}

func TestWorld_ExplodeRadiusClamped(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	var seen []vec.Cell
	w.OnExplode(func(affected []vec.Cell) []vec.Cell {
		seen = affected
		return nil
	})

	w.Explode(cell(0, 0, 0), 1000)
	r := int(MaxExplosionRadius)
	for _, c := range seen {
		assert.LessOrEqual(t, dist2(c, cell(0, 0, 0)), r*r, "Клетка %s вне предельного радиуса", c)
	}
	assert.NotEmpty(t, seen)

	w.Explode(cell(0, 0, 0), 0)
	for _, c := range seen {
		assert.LessOrEqual(t, dist2(c, cell(0, 0, 0)), 2, "Нулевой радиус заменяется радиусом мира")
	}
}

func dist2(a, b vec.Cell) int {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return dx*dx + dy*dy + dz*dz
}
