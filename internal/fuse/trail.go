// Package fuse реализует механику пороховой дорожки: укладку узлов с проверкой
// опоры, фоновые частицы на каждый узел, снятие узлов при внешних
// воздействиях и послойное горение с цепной реакцией взрывчатки.
//
// Все методы Trail должны вызываться с одного логического потока —
// того же, на котором планировщик выполняет свои задачи.
package fuse

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

// Options — зависимости Trail. World, Items и Scheduler обязательны.
type Options struct {
	World      World
	Items      Items
	Authorizer Authorizer
	Sink       Sink
	Scheduler  scheduler.Scheduler
	Settings   Settings
	Metrics    *Metrics
	Logger     *logging.Logger
	Tracer     trace.Tracer
}

// Trail — точка входа механики для слоя событий хоста.
type Trail struct {
	world    World
	items    Items
	auth     Authorizer
	sink     Sink
	sched    scheduler.Scheduler
	settings Settings
	metrics  *Metrics
	log      *logging.Logger

	ambient    *Ambient
	registry   *Registry
	propagator *Propagator

	enabled bool
}

// NewTrail собирает механику из зависимостей хоста.
func NewTrail(opts Options) (*Trail, error) {
	if opts.World == nil {
		return nil, errors.New("fuse: world is required")
	}
	if opts.Items == nil {
		return nil, errors.New("fuse: items are required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("fuse: scheduler is required")
	}
	if opts.Authorizer == nil {
		opts.Authorizer = AllowAll
	}
	if opts.Sink == nil {
		opts.Sink = NopSink
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetFuseLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/annel0/gunpowder/internal/fuse")
	}
	settings := opts.Settings.normalized()

	t := &Trail{
		world:    opts.World,
		items:    opts.Items,
		auth:     opts.Authorizer,
		sink:     opts.Sink,
		sched:    opts.Scheduler,
		settings: settings,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		enabled:  true,
	}
	t.ambient = NewAmbient(t.sched, t.sink, settings.AmbientIntervalTicks, t.metrics, t.log)
	t.registry = NewRegistry(t.ambient)
	t.propagator = NewPropagator(t.registry, t.world, t.sink, t.sched, settings.FuseStepTicks, t.metrics, t.log, opts.Tracer)
	return t, nil
}

// Registry даёт доступ к реестру узлов (только для чтения вызывающим).
func (t *Trail) Registry() *Registry { return t.registry }

// Settings возвращает действующие настройки.
func (t *Trail) Settings() Settings { return t.settings }

// Enabled сообщает, включена ли механика.
func (t *Trail) Enabled() bool { return t.enabled }

// Len возвращает число уложенных узлов.
func (t *Trail) Len() int { return t.registry.Len() }

// Contains сообщает, лежит ли порох в клетке.
func (t *Trail) Contains(c vec.Cell) bool { return t.registry.Contains(c) }

// Nodes возвращает отсортированные клетки узлов.
func (t *Trail) Nodes() []vec.Cell { return t.registry.Cells() }

// ActiveRuns возвращает число горящих фитилей.
func (t *Trail) ActiveRuns() int { return t.propagator.Active() }

// Surroundings собирает всё, что нужно валидатору, для клетки c.
func (t *Trail) Surroundings(actor Actor, c vec.Cell) Surroundings {
	below := c.Down()
	return Surroundings{
		Target:        t.world.MaterialAt(c),
		Support:       t.world.MaterialAt(below),
		SupportLiquid: t.world.IsLiquid(below),
		NodeAbove:     t.registry.Contains(c.Up()),
		NodeBelow:     t.registry.Contains(below),
		NodeAt:        t.registry.Contains(c),
		Authorized:    t.auth.CanBuild(actor.ID, c),
	}
}

// Check проверяет укладку без изменений состояния.
func (t *Trail) Check(actor Actor, c vec.Cell) Decision {
	return Validate(t.Surroundings(actor, c), t.settings.Support)
}

// Place укладывает порох в клетку c от имени actor. Отказ возвращается как
// *PlacementError.
func (t *Trail) Place(actor Actor, c vec.Cell) (*Node, error) {
	if !t.enabled {
		return nil, ErrDisabled
	}

	if d := t.Check(actor, c); !d.Accepted {
		return nil, t.rejected(actor, c, d.Reason)
	}

	if !actor.Creative {
		if err := t.items.TakeItem(actor.ID, block.ItemGunpowder, 1); err != nil {
			t.log.Debug("У %s нет пороха: %v", actor.ID, err)
			return nil, t.rejected(actor, c, ReasonNoMaterial)
		}
	}

	node, _, err := t.registry.Insert(c)
	if err != nil {
		if !actor.Creative {
			if gErr := t.items.GiveItem(actor.ID, block.ItemGunpowder, 1); gErr != nil {
				t.log.Warn("Не удалось вернуть порох %s: %v", actor.ID, gErr)
			}
		}
		t.metrics.placements.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("укладка пороха в %s: %w", c, err)
	}

	t.world.SetBlock(c, block.FuseBlockID)
	emit(t.log, t.metrics, "place", c, t.sink.EmitPlace)
	t.metrics.placements.WithLabelValues("accepted").Inc()
	t.log.Debug("Порох уложен в %s игроком %s", c, actor.ID)
	return node, nil
}

func (t *Trail) rejected(actor Actor, c vec.Cell, r Reason) error {
	t.metrics.placements.WithLabelValues(string(r)).Inc()
	t.log.Debug("Укладка в %s игроком %s отклонена: %s", c, actor.ID, r)
	return &PlacementError{Cell: c, Reason: r}
}

// Ignite поджигает дорожку, начиная с клетки c.
func (t *Trail) Ignite(ctx context.Context, c vec.Cell) (*Run, error) {
	if !t.enabled {
		return nil, ErrDisabled
	}
	return t.propagator.Ignite(ctx, c)
}

// Break снимает узел, разрушенный игроком. Игроку возвращается одна единица
// пороха, если он не в творческом режиме.
func (t *Trail) Break(actor Actor, c vec.Cell) (bool, error) {
	if !t.enabled {
		return false, ErrDisabled
	}
	if _, ok := t.registry.Remove(c); !ok {
		return false, nil
	}
	t.world.SetEmpty(c)
	t.metrics.invalidations.WithLabelValues("break").Inc()

	if actor.Creative {
		return true, nil
	}
	if err := t.items.GiveItem(actor.ID, block.ItemGunpowder, 1); err != nil {
		return true, fmt.Errorf("возврат пороха %s: %w", actor.ID, err)
	}
	return true, nil
}

// Explode обрабатывает взрыв, задевший клетки affected. Узлы в зоне снимаются
// с выпадением пороха, а их клетки исключаются из возвращаемого списка, чтобы
// хост не разрушал их своим механизмом.
func (t *Trail) Explode(affected []vec.Cell) []vec.Cell {
	out := make([]vec.Cell, 0, len(affected))
	for _, c := range affected {
		if !t.enabled || !t.registry.Contains(c) {
			out = append(out, c)
			continue
		}
		t.registry.Remove(c)
		t.world.SetEmpty(c)
		t.metrics.invalidations.WithLabelValues("explosion").Inc()
		t.restituteWorld(c)
	}
	return out
}

// PhysicsUpdate реагирует на изменение соседей клетки c. Узел снимается,
// если в клетке оказался чужой материал или пропала опора. Возвращает true,
// если узел был снят.
func (t *Trail) PhysicsUpdate(c vec.Cell) bool {
	if !t.enabled || !t.registry.Contains(c) {
		return false
	}

	material := t.world.MaterialAt(c)
	below := c.Down()
	supportLost := t.world.IsLiquid(below) || t.settings.Support.Disallowed(t.world.MaterialAt(below))
	unexpected := material != block.FuseBlockID
	if !supportLost && !unexpected {
		return false
	}

	t.registry.Remove(c)
	if !unexpected {
		t.world.SetEmpty(c)
	}
	t.metrics.invalidations.WithLabelValues("physics").Inc()
	t.restituteWorld(c)
	t.log.Debug("Узел %s снят: опора потеряна=%v, чужой материал=%v", c, supportLost, unexpected)
	return true
}

// restituteWorld роняет одну единицу пороха в клетку и через тик убирает
// выпавшие рядом нитки.
func (t *Trail) restituteWorld(c vec.Cell) {
	if err := t.items.DropItem(c, block.ItemGunpowder, 1); err != nil {
		t.log.Warn("Не удалось выронить порох в %s: %v", c, err)
	}

	cleaner, ok := t.items.(StrayCleaner)
	if !ok {
		cleaner, ok = t.world.(StrayCleaner)
	}
	if !ok {
		return
	}
	if _, err := t.sched.RunAfter(1, func() { cleaner.ClearDrops(c, block.ItemString) }); err != nil {
		t.log.Debug("Очистка ниток в %s не запланирована: %v", c, err)
	}
}

// SetEnabled включает или выключает механику. Выключение останавливает все
// таймеры и горящие фитили, снимает узлы и убирает их блоки без компенсаций.
func (t *Trail) SetEnabled(enabled bool) {
	if t.enabled == enabled {
		return
	}
	t.enabled = enabled
	if enabled {
		t.log.Info("🧨 Механика пороха включена")
		return
	}

	aborted := t.propagator.Abort(ErrDisabled)
	cells := t.registry.Cells()
	t.registry.Clear()
	for _, c := range cells {
		t.world.SetEmpty(c)
	}
	t.log.Info("🧯 Механика пороха выключена: снято узлов %d, остановлено фитилей %d", len(cells), aborted)
}

// Reload применяет новые настройки. Интервалы действуют для новых таймеров
// и новых поджигов.
func (t *Trail) Reload(s Settings) {
	s = s.normalized()
	t.settings = s
	t.ambient.SetInterval(s.AmbientIntervalTicks)
	t.propagator.SetStep(s.FuseStepTicks)
	t.log.Info("🔄 Настройки пороха обновлены: частицы каждые %d тиков, шаг горения %d тиков",
		s.AmbientIntervalTicks, s.FuseStepTicks)
}

// Close останавливает горение и все таймеры. Блоки в мире остаются.
func (t *Trail) Close() {
	t.propagator.Abort(scheduler.ErrClosed)
	n := t.registry.Clear()
	t.log.Debug("Механика пороха остановлена, снято узлов: %d", n)
}
