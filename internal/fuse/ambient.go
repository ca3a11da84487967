package fuse

import (
	"errors"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
)

// Ambient держит по одному повторяющемуся таймеру частиц на каждый узел.
type Ambient struct {
	sched    scheduler.Scheduler
	sink     Sink
	interval int
	registry *Registry
	metrics  *Metrics
	log      *logging.Logger
}

// NewAmbient создаёт фоновый планировщик с периодом interval тиков.
func NewAmbient(sched scheduler.Scheduler, sink Sink, interval int, m *Metrics, log *logging.Logger) *Ambient {
	if interval < 1 {
		interval = 1
	}
	return &Ambient{sched: sched, sink: sink, interval: interval, metrics: m, log: log}
}

func (a *Ambient) bind(r *Registry) { a.registry = r }

// Start запускает повторяющуюся задачу частиц для клетки.
func (a *Ambient) Start(c vec.Cell) (scheduler.Handle, error) {
	var h scheduler.Handle
	var err error
	h, err = a.sched.RunEvery(a.interval, func() { a.fire(c, h) })
	return h, err
}

// Stop отменяет задачу. Повторный вызов безопасен.
func (a *Ambient) Stop(h scheduler.Handle) bool {
	if h == 0 {
		return false
	}
	return a.sched.Cancel(h)
}

func (a *Ambient) fire(c vec.Cell, h scheduler.Handle) {
	// Отмена и срабатывание могут перемежаться: таймер, переживший свой
	// узел, снимает себя сам и больше ничего не показывает.
	if a.registry == nil || !a.registry.owns(c, h) {
		a.sched.Cancel(h)
		a.metrics.staleFirings.Inc()
		a.log.Trace("Устаревший таймер частиц %d для %s снят", h, c)
		return
	}

	err := emit(a.log, a.metrics, "ambient", c, a.sink.EmitAmbient)
	if errors.Is(err, ErrWorldUnloaded) {
		if _, ok := a.registry.Remove(c); ok {
			a.metrics.invalidations.WithLabelValues("unloaded").Inc()
			a.log.Debug("Мир клетки %s выгружен, узел снят", c)
		}
	}
}

// SetInterval меняет период для новых таймеров; запущенные сохраняют свой.
func (a *Ambient) SetInterval(interval int) {
	if interval < 1 {
		interval = 1
	}
	a.interval = interval
}
