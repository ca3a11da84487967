package fuse

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmbient_FiresEveryInterval(t *testing.T) {
	sink := &recordingSink{}
	r, _, sched, _ := newRegistry(sink, 5)
	_, _, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)

	sched.Advance(11)
	// Первый показ в ближайшем тике, затем на 6-м и 11-м
	assert.Len(t, sink.of("ambient"), 3)
}

func TestAmbient_StaleFiringSelfCancels(t *testing.T) {
	sink := &recordingSink{}
	r, a, sched, m := newRegistry(sink, 5)
	node, _, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)
	h := node.AmbientHandle()

	// Снятие в обход реестра не трогает таймер: имитируем гонку отмены
	// и срабатывания.
	delete(r.nodes, at(0, 0, 0))
	require.True(t, sched.Active(h))

	a.fire(at(0, 0, 0), h)

	assert.False(t, sched.Active(h), "Устаревший таймер снимает себя сам")
	assert.Empty(t, sink.of("ambient"), "Снятый узел не показывает частиц")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleFirings))
}

func TestAmbient_ForeignHandleIsStale(t *testing.T) {
	sink := &recordingSink{}
	r, a, sched, m := newRegistry(sink, 5)
	old, _, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)
	oldHandle := old.AmbientHandle()
	r.Remove(at(0, 0, 0))
	_, _, err = r.Insert(at(0, 0, 0))
	require.NoError(t, err)

	a.fire(at(0, 0, 0), oldHandle)

	assert.Empty(t, sink.of("ambient"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleFirings))
	assert.Equal(t, 1, sched.Pending(), "Таймер нового узла не затронут")
}

func TestAmbient_WorldUnloadedRetractsNode(t *testing.T) {
	sink := &recordingSink{fail: map[string]error{
		"ambient": fmt.Errorf("показ частиц: %w", ErrWorldUnloaded),
	}}
	r, _, sched, m := newRegistry(sink, 5)
	_, _, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)

	sched.Advance(1)

	assert.False(t, r.Contains(at(0, 0, 0)), "Узел выгруженного мира снимается")
	assert.Zero(t, sched.Pending(), "Таймер остановлен")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidations.WithLabelValues("unloaded")))
}

func TestAmbient_OtherSinkErrorsSwallowed(t *testing.T) {
	sink := &recordingSink{fail: map[string]error{"ambient": errors.New("сеть недоступна")}}
	r, _, sched, m := newRegistry(sink, 1)
	_, _, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)

	sched.Advance(3)

	assert.True(t, r.Contains(at(0, 0, 0)))
	assert.Equal(t, 1, sched.Pending())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sinkFailures.WithLabelValues("ambient")))
}

func TestAmbient_SinkPanicRecovered(t *testing.T) {
	sink := &recordingSink{panicOn: "ambient"}
	r, _, sched, _ := newRegistry(sink, 1)
	_, _, err := r.Insert(at(0, 0, 0))
	require.NoError(t, err)

	assert.NotPanics(t, func() { sched.Advance(2) })
	assert.True(t, r.Contains(at(0, 0, 0)))
}
