package fuse

import (
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
)

func newRegistry(sink Sink, interval int) (*Registry, *Ambient, *scheduler.TickScheduler, *Metrics) {
	sched := scheduler.NewTickScheduler()
	m := NewMetrics(nil)
	a := NewAmbient(sched, sink, interval, m, logging.NewWriterLogger("fuse", io.Discard, logging.TRACE))
	return NewRegistry(a), a, sched, m
}

func TestRegistry_InsertTwiceKeepsOne(t *testing.T) {
	r, _, sched, _ := newRegistry(NopSink, 10)

	first, created, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)
	assert.False(t, created, "Повторная вставка не создаёт узел")
	assert.Same(t, first, second)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, sched.Pending(), "Таймер запускается один раз")
}

func TestRegistry_RemoveAbsentIsNoop(t *testing.T) {
	r, _, sched, m := newRegistry(NopSink, 10)
	_, _, err := r.Insert(at(1, 0, 0))
	require.NoError(t, err)

	n, ok := r.Remove(at(5, 0, 5))
	assert.Nil(t, n)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, sched.Pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeNodes))
}

func TestRegistry_RemoveStopsTimerOnce(t *testing.T) {
	r, _, sched, _ := newRegistry(NopSink, 10)
	node, _, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)
	h := node.AmbientHandle()
	require.True(t, sched.Active(h))

	removed, ok := r.Remove(at(0, 0, 0))
	require.True(t, ok)
	assert.Same(t, node, removed)
	assert.False(t, sched.Active(h))
	assert.Zero(t, removed.AmbientHandle(), "Владение таймером переходит в \"нет\"")

	_, ok = r.Remove(at(0, 0, 0))
	assert.False(t, ok, "Второе снятие — пустая операция")
	assert.Zero(t, sched.Pending())
}

func TestRegistry_InsertOnClosedScheduler(t *testing.T) {
	r, _, sched, _ := newRegistry(NopSink, 10)
	sched.Shutdown()

	_, _, err := r.Insert(at(0, 0, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scheduler.ErrClosed))
	assert.Zero(t, r.Len(), "При ошибке узел не добавляется")
}

func TestRegistry_CellsSortedAndClear(t *testing.T) {
	r, _, sched, _ := newRegistry(NopSink, 10)
	for _, c := range []struct{ x, y, z int }{{2, 0, 0}, {0, 1, 0}, {1, 0, 0}} {
		_, _, err := r.Insert(at(c.x, c.y, c.z))
		require.NoError(t, err)
	}

	assert.Equal(t, at(1, 0, 0), r.Cells()[0])
	assert.Equal(t, at(2, 0, 0), r.Cells()[1])
	assert.Equal(t, at(0, 1, 0), r.Cells()[2])

	assert.Equal(t, 3, r.Clear())
	assert.Zero(t, r.Len())
	assert.Zero(t, sched.Pending())
}

func TestNeighbors_ClimbRule(t *testing.T) {
	got := Neighbors(at(0, 0, 0))

	want := []struct{ x, y, z int }{
		{0, 0, -1}, {0, 1, -1},
		{0, 0, 1}, {0, 1, 1},
		{1, 0, 0}, {1, 1, 0},
		{-1, 0, 0}, {-1, 1, 0},
		{0, -1, 0}, {0, 1, 0},
	}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, at(w.x, w.y, w.z), got[i], "Сосед #%d", i)
	}
	assert.NotContains(t, got, at(1, -1, 0), "Спуск по диагонали не предусмотрен")
}
