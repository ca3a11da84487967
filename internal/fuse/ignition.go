package fuse

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
)

type cellSet map[vec.Cell]struct{}

func (s cellSet) has(c vec.Cell) bool {
	_, ok := s[c]
	return ok
}

// Run — один прогон горения (волновой фронт). Живёт, пока фронт не опустеет.
type Run struct {
	ID    uint64
	Start vec.Cell

	frontier []vec.Cell
	pending  cellSet // Клетки, стоящие во frontier
	visited  cellSet
	primed   cellSet

	handle   scheduler.Handle
	steps    int
	consumed []vec.Cell
	charges  []vec.Cell
	done     bool
	err      error

	span trace.Span
}

// Done сообщает, завершён ли прогон.
func (r *Run) Done() bool { return r.done }

// Err возвращает причину досрочной остановки (nil при нормальном догорании).
func (r *Run) Err() error { return r.err }

// Steps возвращает число выполненных шагов.
func (r *Run) Steps() int { return r.steps }

// Consumed возвращает сгоревшие клетки в порядке горения.
func (r *Run) Consumed() []vec.Cell {
	return append([]vec.Cell(nil), r.consumed...)
}

// Primed возвращает подожжённые заряды взрывчатки.
func (r *Run) Primed() []vec.Cell {
	return append([]vec.Cell(nil), r.charges...)
}

// Propagator ведёт горение: раз в step тиков сжигает весь текущий фронт
// и собирает следующий из соседей.
type Propagator struct {
	registry *Registry
	world    World
	sink     Sink
	sched    scheduler.Scheduler
	step     int
	metrics  *Metrics
	log      *logging.Logger
	tracer   trace.Tracer

	nextID uint64
	active map[uint64]*Run
}

// NewPropagator создаёт распространитель горения.
func NewPropagator(reg *Registry, world World, sink Sink, sched scheduler.Scheduler, step int, m *Metrics, log *logging.Logger, tracer trace.Tracer) *Propagator {
	if step < 1 {
		step = 1
	}
	return &Propagator{
		registry: reg,
		world:    world,
		sink:     sink,
		sched:    sched,
		step:     step,
		metrics:  m,
		log:      log,
		tracer:   tracer,
		active:   make(map[uint64]*Run),
	}
}

// SetStep меняет шаг горения для новых прогонов.
func (p *Propagator) SetStep(step int) {
	if step < 1 {
		step = 1
	}
	p.step = step
}

// Active возвращает число горящих прогонов.
func (p *Propagator) Active() int { return len(p.active) }

// Ignite поджигает узел в клетке start. Первый шаг выполняется в ближайшем тике.
func (p *Propagator) Ignite(ctx context.Context, start vec.Cell) (*Run, error) {
	if !p.registry.Contains(start) {
		return nil, ErrNotFuse
	}
	for _, r := range p.active {
		if r.pending.has(start) {
			return nil, ErrAlreadyBurning
		}
	}

	p.nextID++
	run := &Run{
		ID:       p.nextID,
		Start:    start,
		frontier: []vec.Cell{start},
		pending:  cellSet{start: {}},
		visited:  make(cellSet),
		primed:   make(cellSet),
	}

	_, run.span = p.tracer.Start(ctx, "fuse.ignite", trace.WithAttributes(
		attribute.String("fuse.start", start.String()),
		attribute.Int64("fuse.run_id", int64(run.ID)),
		attribute.Int("fuse.step_ticks", p.step),
	))

	h, err := p.sched.RunEvery(p.step, func() { p.advance(run) })
	if err != nil {
		run.span.RecordError(err)
		run.span.SetStatus(codes.Error, "scheduler unavailable")
		run.span.End()
		return nil, fmt.Errorf("планирование поджига %s: %w", start, err)
	}
	run.handle = h
	p.active[run.ID] = run

	p.metrics.ignitions.Inc()
	p.metrics.activeRuns.Set(float64(len(p.active)))
	p.log.Debug("🔥 Поджиг #%d в %s, шаг %d тиков", run.ID, start, p.step)
	return run, nil
}

// advance выполняет один шаг: весь текущий фронт сгорает за раз.
func (p *Propagator) advance(run *Run) {
	if run.done {
		p.sched.Cancel(run.handle)
		return
	}

	current := run.frontier
	run.frontier = nil
	run.steps++

	burned := 0
	for _, b := range current {
		delete(run.pending, b)
		if run.visited.has(b) {
			continue
		}
		run.visited[b] = struct{}{}
		// Узел, снятый между шагами, молча выпадает из фронта.
		if !p.registry.Contains(b) {
			continue
		}
		p.burn(run, b)
		burned++
	}

	run.span.AddEvent("step", trace.WithAttributes(
		attribute.Int("fuse.step", run.steps),
		attribute.Int("fuse.burned", burned),
		attribute.Int("fuse.next_frontier", len(run.frontier)),
	))

	if len(run.frontier) == 0 {
		p.finish(run, nil)
	}
}

func (p *Propagator) burn(run *Run, b vec.Cell) {
	emit(p.log, p.metrics, "ignite", b, p.sink.EmitIgnite)

	p.registry.Remove(b)
	p.world.SetEmpty(b)
	run.consumed = append(run.consumed, b)
	p.metrics.consumed.Inc()
	p.metrics.invalidations.WithLabelValues("ignition").Inc()

	for _, n := range Neighbors(b) {
		if p.world.IsVolatile(n) {
			if run.primed.has(n) {
				continue
			}
			run.primed[n] = struct{}{}
			if p.world.Prime(n) {
				run.charges = append(run.charges, n)
				p.metrics.chainReactions.Inc()
				emit(p.log, p.metrics, "explosion_trigger", n, p.sink.EmitExplosionTrigger)
			}
			continue
		}
		if !p.registry.Contains(n) || run.visited.has(n) || run.pending.has(n) {
			continue
		}
		run.pending[n] = struct{}{}
		run.frontier = append(run.frontier, n)
	}
}

func (p *Propagator) finish(run *Run, err error) {
	if run.done {
		return
	}
	run.done = true
	run.err = err
	p.sched.Cancel(run.handle)
	delete(p.active, run.ID)
	p.metrics.activeRuns.Set(float64(len(p.active)))

	run.span.SetAttributes(
		attribute.Int("fuse.consumed", len(run.consumed)),
		attribute.Int("fuse.primed", len(run.charges)),
		attribute.Int("fuse.steps", run.steps),
	)
	if err != nil {
		run.span.SetStatus(codes.Error, err.Error())
	}
	run.span.End()

	p.log.Debug("Поджиг #%d завершён: сгорело %d, зарядов %d, шагов %d", run.ID, len(run.consumed), len(run.charges), run.steps)
}

// Abort останавливает все горящие прогоны с причиной err.
func (p *Propagator) Abort(err error) int {
	n := 0
	for _, run := range p.active {
		p.finish(run, err)
		n++
	}
	return n
}
