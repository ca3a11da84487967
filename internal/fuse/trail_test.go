package fuse

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

var player = Actor{ID: "steve"}

func TestNewTrail_RequiresHost(t *testing.T) {
	_, err := NewTrail(Options{})
	assert.Error(t, err)

	_, err = NewTrail(Options{World: newFakeWorld()})
	assert.Error(t, err)

	_, err = NewTrail(Options{World: newFakeWorld(), Items: newFakeItems()})
	assert.Error(t, err, "Без планировщика механика не собирается")
}

func TestNewTrail_ClampsSettings(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Settings = Settings{AmbientIntervalTicks: 0, FuseStepTicks: -4}
	})
	assert.Equal(t, 1, h.trail.Settings().AmbientIntervalTicks)
	assert.Equal(t, 1, h.trail.Settings().FuseStepTicks)
}

func TestPlace_ConsumesGunpowder(t *testing.T) {
	h := newHarness(t)
	h.items.inventory[player.ID] = 2

	node, err := h.trail.Place(player, at(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, at(0, 0, 0), node.Cell)
	assert.Equal(t, 1, h.items.inventory[player.ID])
	assert.Equal(t, block.FuseBlockID, h.world.MaterialAt(at(0, 0, 0)))
	assert.Len(t, h.sink.of("place"), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.placements.WithLabelValues("accepted")))
}

func TestPlace_NoMaterial(t *testing.T) {
	h := newHarness(t)

	_, err := h.trail.Place(player, at(0, 0, 0))
	reason, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNoMaterial, reason)
	assert.Zero(t, h.trail.Len())
	assert.Equal(t, block.AirBlockID, h.world.MaterialAt(at(0, 0, 0)))
}

func TestPlace_Unauthorized(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Authorizer = AuthorizerFunc(func(actor string, c vec.Cell) bool { return c.X < 0 })
	})
	h.items.inventory[player.ID] = 1

	_, err := h.trail.Place(player, at(3, 0, 0))
	reason, _ := IsRejected(err)
	assert.Equal(t, ReasonUnauthorized, reason)
	assert.Equal(t, 1, h.items.inventory[player.ID], "При отказе порох не списывается")

	_, err = h.trail.Place(player, at(-3, 0, 0))
	assert.NoError(t, err)
}

// Цветок под клеткой — отказ, реестр не меняется.
func TestPlace_FlowerSupportRejected(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(4, 0, 4))
	h.world.SetBlock(at(0, 0, 0), block.PoppyBlockID)

	_, err := h.trail.Place(creative, at(0, 1, 0))

	var pe *PlacementError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ReasonDisallowedSupport, pe.Reason)
	assert.Equal(t, at(0, 1, 0), pe.Cell)
	assert.Equal(t, []vec.Cell{at(4, 0, 4)}, h.trail.Nodes())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.placements.WithLabelValues(string(ReasonDisallowedSupport))))
}

// Узел над узлом запрещён, даже если клетка сверху пуста.
func TestPlace_StackingRejected(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(0, 0, 0))
	require.Equal(t, block.AirBlockID, h.world.MaterialAt(at(0, 1, 0)))

	_, err := h.trail.Place(creative, at(0, 1, 0))
	reason, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, ReasonStacked, reason)

	d := h.trail.Check(creative, at(0, -1, 0))
	assert.False(t, d.Accepted, "Снизу тоже нельзя")
	assert.Equal(t, 1, h.trail.Len())
}

func TestPlace_TwiceKeepsOneNode(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(0, 0, 0))

	_, err := h.trail.Place(creative, at(0, 0, 0))
	reason, _ := IsRejected(err)
	assert.Equal(t, ReasonTargetOccupied, reason)
	assert.Equal(t, 1, h.trail.Len())
	h.assertCoupled(t)
}

func TestPlace_SchedulerClosedRefunds(t *testing.T) {
	h := newHarness(t)
	h.items.inventory[player.ID] = 1
	h.sched.Shutdown()

	_, err := h.trail.Place(player, at(0, 0, 0))
	assert.ErrorIs(t, err, scheduler.ErrClosed)
	_, rejected := IsRejected(err)
	assert.False(t, rejected)
	assert.Equal(t, 1, h.items.inventory[player.ID], "Порох возвращён")
	assert.Equal(t, block.AirBlockID, h.world.MaterialAt(at(0, 0, 0)))
}

// Сломанный игроком узел возвращает ему порох.
func TestBreak_RestitutesActor(t *testing.T) {
	h := newHarness(t)
	h.items.inventory[player.ID] = 1
	_, err := h.trail.Place(player, at(0, 0, 0))
	require.NoError(t, err)
	require.Zero(t, h.items.inventory[player.ID])

	ok, err := h.trail.Break(player, at(0, 0, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, h.items.inventory[player.ID])
	assert.Zero(t, h.trail.Len())
	assert.Equal(t, block.AirBlockID, h.world.MaterialAt(at(0, 0, 0)))
	assert.Empty(t, h.items.drops)
	assert.Zero(t, h.sched.Pending())

	ok, err = h.trail.Break(player, at(0, 0, 0))
	require.NoError(t, err)
	assert.False(t, ok, "Повторное снятие ничего не делает")
	assert.Equal(t, 1, h.items.inventory[player.ID])
}

func TestBreak_CreativeGetsNothing(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(0, 0, 0))

	ok, err := h.trail.Break(creative, at(0, 0, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, h.items.inventory[creative.ID])
}

func TestExplode_FiltersAndDrops(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(0, 0, 0), at(1, 0, 0))
	h.world.SetBlock(at(5, 0, 0), block.PlanksBlockID)

	left := h.trail.Explode([]vec.Cell{at(0, 0, 0), at(5, 0, 0), at(0, 0, 0)})

	assert.Equal(t, []vec.Cell{at(5, 0, 0), at(0, 0, 0)}, left,
		"Узел исключается, повтор клетки после снятия хост обрабатывает сам")
	assert.Equal(t, 1, h.items.drops[at(0, 0, 0)])
	assert.Equal(t, []vec.Cell{at(1, 0, 0)}, h.trail.Nodes())
	assert.Equal(t, block.AirBlockID, h.world.MaterialAt(at(0, 0, 0)))

	h.sched.Tick()
	assert.Equal(t, []vec.Cell{at(0, 0, 0)}, h.items.cleaned, "Через тик выпавшие нитки убираются")
}

func TestExplode_DropFailureStillRemoves(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(0, 0, 0))
	h.items.failDrop = errors.New("мир выгружен")

	left := h.trail.Explode([]vec.Cell{at(0, 0, 0)})
	assert.Empty(t, left)
	assert.Zero(t, h.trail.Len())
}

func TestPhysicsUpdate(t *testing.T) {
	t.Run("опора на месте", func(t *testing.T) {
		h := newHarness(t)
		h.place(t, at(0, 0, 0))
		assert.False(t, h.trail.PhysicsUpdate(at(0, 0, 0)))
		assert.Equal(t, 1, h.trail.Len())
	})

	t.Run("опора пропала", func(t *testing.T) {
		h := newHarness(t)
		h.place(t, at(0, 0, 0))
		h.world.SetEmpty(at(0, -1, 0))

		assert.True(t, h.trail.PhysicsUpdate(at(0, 0, 0)))
		assert.Zero(t, h.trail.Len())
		assert.Equal(t, block.AirBlockID, h.world.MaterialAt(at(0, 0, 0)))
		assert.Equal(t, 1, h.items.drops[at(0, 0, 0)])
	})

	t.Run("опора залита", func(t *testing.T) {
		h := newHarness(t)
		h.place(t, at(0, 0, 0))
		h.world.SetBlock(at(0, -1, 0), block.WaterBlockID)
		assert.True(t, h.trail.PhysicsUpdate(at(0, 0, 0)))
	})

	t.Run("чужой материал", func(t *testing.T) {
		h := newHarness(t)
		h.place(t, at(0, 0, 0))
		h.world.SetBlock(at(0, 0, 0), block.SandBlockID)

		assert.True(t, h.trail.PhysicsUpdate(at(0, 0, 0)))
		assert.Equal(t, block.SandBlockID, h.world.MaterialAt(at(0, 0, 0)), "Чужой блок не трогаем")
		assert.Equal(t, 1, h.items.drops[at(0, 0, 0)])
	})

	t.Run("нет узла", func(t *testing.T) {
		h := newHarness(t)
		assert.False(t, h.trail.PhysicsUpdate(at(0, 0, 0)))
		assert.Empty(t, h.items.drops)
	})
}

// В любой момент покоя таймеры есть ровно у узлов реестра.
func TestTimerRegistryCoupling(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(0, 0, 0), at(1, 0, 0), at(2, 0, 0), at(5, 0, 5), at(-4, 0, 2))
	h.assertCoupled(t)

	_, err := h.trail.Break(creative, at(5, 0, 5))
	require.NoError(t, err)
	h.assertCoupled(t)

	run, err := h.trail.Ignite(context.Background(), at(1, 0, 0))
	require.NoError(t, err)
	h.burn(t, run)
	h.assertCoupled(t)

	h.sched.Advance(50)
	h.assertCoupled(t)
	assert.Equal(t, []vec.Cell{at(-4, 0, 2)}, h.trail.Nodes())
}

func TestSetEnabled(t *testing.T) {
	h := newHarness(t)
	h.place(t, at(0, 0, 0), at(1, 0, 0), at(4, 0, 4))
	run, err := h.trail.Ignite(context.Background(), at(0, 0, 0))
	require.NoError(t, err)
	h.sched.Tick()

	h.trail.SetEnabled(false)

	assert.False(t, h.trail.Enabled())
	assert.Zero(t, h.trail.Len())
	assert.Zero(t, h.sched.Pending(), "Все таймеры отменены")
	assert.True(t, run.Done())
	assert.ErrorIs(t, run.Err(), ErrDisabled)
	assert.Equal(t, block.AirBlockID, h.world.MaterialAt(at(4, 0, 4)))

	_, err = h.trail.Place(creative, at(0, 0, 0))
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = h.trail.Ignite(context.Background(), at(0, 0, 0))
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = h.trail.Break(creative, at(0, 0, 0))
	assert.ErrorIs(t, err, ErrDisabled)

	h.trail.SetEnabled(true)
	h.place(t, at(0, 0, 0))
	assert.Equal(t, 1, h.trail.Len())
}

func TestReload(t *testing.T) {
	h := newHarness(t)
	support, err := block.SupportPolicyFromNames([]string{"cactus"})
	require.NoError(t, err)

	h.trail.Reload(Settings{AmbientIntervalTicks: 2, FuseStepTicks: 1, Support: support})
	h.place(t, at(0, 0, 0), at(1, 0, 0))

	h.sched.Advance(5)
	// Тики 1, 3, 5 для каждого из двух узлов
	assert.Len(t, h.sink.of("ambient"), 6)

	run, err := h.trail.Ignite(context.Background(), at(0, 0, 0))
	require.NoError(t, err)
	h.sched.Advance(2)
	assert.True(t, run.Done(), "Шаг в один тик")

	h.world.SetBlock(at(3, 0, 3), block.CactusBlockID)
	_, err = h.trail.Place(creative, at(3, 1, 3))
	reason, _ := IsRejected(err)
	assert.Equal(t, ReasonDisallowedSupport, reason)
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ignitions.Inc()

	n, err := testutil.GatherAndCount(reg, "fuse_ignitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
