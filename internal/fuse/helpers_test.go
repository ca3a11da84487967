package fuse

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

const testWorld = "overworld"

func at(x, y, z int) vec.Cell { return vec.At(testWorld, x, y, z) }

// fakeWorld — мир в памяти. Prime не убирает взрывчатку, чтобы проверять,
// что механика сама не поджигает заряд дважды.
type fakeWorld struct {
	blocks map[vec.Cell]block.BlockID
	primed map[vec.Cell]int
}

func newFakeWorld() *fakeWorld {
	w := &fakeWorld{
		blocks: make(map[vec.Cell]block.BlockID),
		primed: make(map[vec.Cell]int),
	}
	// Каменный пол под y=0
	for x := -8; x <= 8; x++ {
		for z := -8; z <= 8; z++ {
			w.blocks[at(x, -1, z)] = block.StoneBlockID
		}
	}
	return w
}

func (w *fakeWorld) MaterialAt(c vec.Cell) block.BlockID     { return w.blocks[c] }
func (w *fakeWorld) IsLiquid(c vec.Cell) bool                { return w.blocks[c].IsLiquid() }
func (w *fakeWorld) SetBlock(c vec.Cell, id block.BlockID)   { w.blocks[c] = id }
func (w *fakeWorld) SetEmpty(c vec.Cell)                     { delete(w.blocks, c) }
func (w *fakeWorld) IsVolatile(c vec.Cell) bool              { return w.blocks[c].IsVolatile() }
func (w *fakeWorld) Prime(c vec.Cell) bool {
	if !w.IsVolatile(c) {
		return false
	}
	w.primed[c]++
	return true
}

type fakeItems struct {
	inventory map[string]int
	drops     map[vec.Cell]int
	cleaned   []vec.Cell
	failDrop  error
}

func newFakeItems() *fakeItems {
	return &fakeItems{inventory: make(map[string]int), drops: make(map[vec.Cell]int)}
}

func (i *fakeItems) GiveItem(actor string, kind block.ItemKind, n int) error {
	i.inventory[actor] += n
	return nil
}

func (i *fakeItems) TakeItem(actor string, kind block.ItemKind, n int) error {
	if i.inventory[actor] < n {
		return fmt.Errorf("у %s нет %s", actor, kind)
	}
	i.inventory[actor] -= n
	return nil
}

func (i *fakeItems) DropItem(c vec.Cell, kind block.ItemKind, n int) error {
	if i.failDrop != nil {
		return i.failDrop
	}
	i.drops[c] += n
	return nil
}

func (i *fakeItems) ClearDrops(c vec.Cell, kind block.ItemKind) int {
	i.cleaned = append(i.cleaned, c)
	return 0
}

type sinkEvent struct {
	Effect string
	Cell   vec.Cell
	Tick   uint64
}

// recordingSink записывает эффекты. fail задаёт ошибку по имени эффекта,
// panicOn — эффект, на котором приёмник паникует.
type recordingSink struct {
	now     func() uint64
	events  []sinkEvent
	fail    map[string]error
	panicOn string
}

func (s *recordingSink) record(effect string, c vec.Cell) error {
	if s.panicOn == effect {
		panic("приёмник сломан")
	}
	if err := s.fail[effect]; err != nil {
		return err
	}
	var tick uint64
	if s.now != nil {
		tick = s.now()
	}
	s.events = append(s.events, sinkEvent{Effect: effect, Cell: c, Tick: tick})
	return nil
}

func (s *recordingSink) EmitPlace(c vec.Cell) error            { return s.record("place", c) }
func (s *recordingSink) EmitAmbient(c vec.Cell) error          { return s.record("ambient", c) }
func (s *recordingSink) EmitIgnite(c vec.Cell) error           { return s.record("ignite", c) }
func (s *recordingSink) EmitExplosionTrigger(c vec.Cell) error { return s.record("explosion_trigger", c) }

func (s *recordingSink) of(effect string) []sinkEvent {
	var out []sinkEvent
	for _, e := range s.events {
		if e.Effect == effect {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	trail   *Trail
	world   *fakeWorld
	items   *fakeItems
	sink    *recordingSink
	sched   *scheduler.TickScheduler
	metrics *Metrics
}

var creative = Actor{ID: "builder", Creative: true}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	sched := scheduler.NewTickScheduler()
	h := &harness{
		world:   newFakeWorld(),
		items:   newFakeItems(),
		sink:    &recordingSink{now: sched.CurrentTick},
		sched:   sched,
		metrics: NewMetrics(nil),
	}
	opts := Options{
		World:     h.world,
		Items:     h.items,
		Sink:      h.sink,
		Scheduler: sched,
		Settings:  DefaultSettings(),
		Metrics:   h.metrics,
		Logger:    logging.NewWriterLogger("fuse", io.Discard, logging.TRACE),
	}
	for _, m := range mutate {
		m(&opts)
	}

	trail, err := NewTrail(opts)
	require.NoError(t, err)
	h.trail = trail
	return h
}

func (h *harness) place(t *testing.T, cells ...vec.Cell) {
	t.Helper()
	for _, c := range cells {
		_, err := h.trail.Place(creative, c)
		require.NoError(t, err, "укладка в %s", c)
	}
}

func (h *harness) burn(t *testing.T, run *Run) {
	t.Helper()
	h.sched.RunUntil(1000, run.Done)
	require.True(t, run.Done(), "Горение должно завершиться")
}

// assertCoupled проверяет, что таймеры частиц есть ровно у узлов реестра.
func (h *harness) assertCoupled(t *testing.T) {
	t.Helper()
	for _, c := range h.trail.Nodes() {
		n, ok := h.trail.Registry().Get(c)
		require.True(t, ok)
		require.True(t, h.sched.Active(n.AmbientHandle()), "У узла %s нет таймера", c)
	}
	require.Equal(t, h.trail.Len()+h.trail.ActiveRuns(), h.sched.Pending(),
		"Лишние задачи в планировщике")
}
