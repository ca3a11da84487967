package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/gunpowder/internal/logging"
)

type job struct {
	fn   func()
	done chan struct{}
}

// Clock крутит TickScheduler в реальном времени на отдельной горутине.
// Эта горутина и есть единственный логический поток ядра: тики и задания,
// переданные через Do, выполняются на ней строго по очереди.
type Clock struct {
	sched    *TickScheduler
	interval time.Duration

	inbox    chan job
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool

	ticks atomic.Uint64

	// OnTick вызывается после каждого тика на потоке часов.
	OnTick func(tick uint64, ran int, took time.Duration)
}

// NewClock создаёт часы с частотой tickRate тиков в секунду (по умолчанию 20).
func NewClock(sched *TickScheduler, tickRate int) *Clock {
	if tickRate <= 0 {
		tickRate = 20
	}
	return &Clock{
		sched:    sched,
		interval: time.Second / time.Duration(tickRate),
		inbox:    make(chan job, 256),
		stopChan: make(chan struct{}),
	}
}

// Interval возвращает длительность одного тика.
func (c *Clock) Interval() time.Duration { return c.interval }

// Ticks возвращает число тиков, выполненных часами.
func (c *Clock) Ticks() uint64 { return c.ticks.Load() }

// Start запускает цикл часов.
func (c *Clock) Start() {
	if c.running.CompareAndSwap(false, true) {
		c.wg.Add(1)
		go c.loop()
	}
}

// Stop останавливает цикл и дожидается его завершения. Планировщик при
// этом не закрывается.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		if c.running.CompareAndSwap(true, false) {
			close(c.stopChan)
			c.wg.Wait()
		}
	})
}

// Do выполняет fn на потоке часов и ждёт завершения. ctx ограничивает
// только ожидание постановки в очередь: поставленное задание Do ждёт до
// конца. nil возвращается тогда и только тогда, когда fn выполнена.
func (c *Clock) Do(ctx context.Context, fn func()) error {
	if !c.running.Load() {
		return ErrClosed
	}
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case c.inbox <- j:
	case <-c.stopChan:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-j.done:
		return nil
	case <-c.stopChan:
		// Цикл мог успеть выполнить задание перед остановкой
		c.wg.Wait()
		select {
		case <-j.done:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (c *Clock) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case j := <-c.inbox:
			c.safely("job", j.fn)
			close(j.done)
		case <-ticker.C:
			start := time.Now()
			ran := 0
			c.safely("tick", func() { ran = c.sched.Tick() })
			n := c.ticks.Add(1)
			if c.OnTick != nil {
				c.OnTick(n, ran, time.Since(start))
			}
		}
	}
}

// safely не даёт панике в колбэке остановить игровой цикл.
func (c *Clock) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("❌ Паника в %s планировщика: %v\n%s", what, r, debug.Stack())
		}
	}()
	fn()
}
