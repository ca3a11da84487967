package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNow_NextTick(t *testing.T) {
	s := NewTickScheduler()
	calls := 0
	_, err := s.RunNow(func() { calls++ })
	require.NoError(t, err)

	assert.Equal(t, 0, calls, "RunNow не выполняется синхронно")
	s.Tick()
	assert.Equal(t, 1, calls)
	s.Advance(5)
	assert.Equal(t, 1, calls, "Одноразовая задача выполняется один раз")
	assert.Equal(t, 0, s.Pending())
}

func TestRunAfter_Delay(t *testing.T) {
	s := NewTickScheduler()
	var firedAt uint64
	_, err := s.RunAfter(3, func() { firedAt = s.CurrentTick() })
	require.NoError(t, err)

	s.Advance(2)
	assert.Zero(t, firedAt)
	s.Tick()
	assert.Equal(t, uint64(3), firedAt)
}

func TestRunEvery_Interval(t *testing.T) {
	s := NewTickScheduler()
	var ticks []uint64
	h, err := s.RunEvery(3, func() { ticks = append(ticks, s.CurrentTick()) })
	require.NoError(t, err)

	s.Advance(7)
	assert.Equal(t, []uint64{1, 4, 7}, ticks)
	assert.True(t, s.Active(h))

	assert.True(t, s.Cancel(h))
	assert.False(t, s.Cancel(h), "Повторная отмена — no-op")
	s.Advance(5)
	assert.Len(t, ticks, 3)
}

func TestSelfCancel(t *testing.T) {
	s := NewTickScheduler()
	calls := 0
	var h Handle
	h, _ = s.RunEvery(1, func() {
		calls++
		if calls == 2 {
			s.Cancel(h)
		}
	})

	s.Advance(10)
	assert.Equal(t, 2, calls)
	assert.False(t, s.Active(h))
}

func TestCancelledEarlierInSameTick(t *testing.T) {
	s := NewTickScheduler()
	secondRan := false
	var second Handle
	_, _ = s.RunNow(func() { s.Cancel(second) })
	second, _ = s.RunNow(func() { secondRan = true })

	s.Tick()
	assert.False(t, secondRan, "Задача, отменённая раньше в том же тике, не выполняется")
}

func TestOrderWithinTick(t *testing.T) {
	s := NewTickScheduler()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, _ = s.RunNow(func() { order = append(order, i) })
	}
	s.Tick()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestScheduledDuringTickRunsNextTick(t *testing.T) {
	s := NewTickScheduler()
	inner := false
	_, _ = s.RunNow(func() {
		_, _ = s.RunNow(func() { inner = true })
	})

	s.Tick()
	assert.False(t, inner)
	s.Tick()
	assert.True(t, inner)
}

func TestShutdown(t *testing.T) {
	s := NewTickScheduler()
	calls := 0
	_, _ = s.RunEvery(1, func() { calls++ })
	s.Shutdown()

	assert.True(t, s.Closed())
	assert.Equal(t, 0, s.Tick())
	assert.Equal(t, 0, calls)

	_, err := s.RunNow(func() {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunUntil(t *testing.T) {
	s := NewTickScheduler()
	done := false
	_, _ = s.RunAfter(4, func() { done = true })

	n := s.RunUntil(100, func() bool { return done })
	assert.Equal(t, 4, n)
	assert.Equal(t, 100, NewTickScheduler().RunUntil(100, func() bool { return false }))
}
