// Package app собирает сервер механики пороха из конфигурации: мир,
// планировщик с часами, механику, приёмники эффектов, шину событий,
// приваты и хранилище.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/gunpowder/internal/config"
	"github.com/annel0/gunpowder/internal/effects"
	"github.com/annel0/gunpowder/internal/eventbus"
	"github.com/annel0/gunpowder/internal/fuse"
	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/storage"
	"github.com/annel0/gunpowder/internal/territory"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world"
)

// Options — необязательные зависимости Host.
type Options struct {
	Registry *prometheus.Registry // nil — новый регистр
	Bus      eventbus.EventBus    // nil — шина по конфигурации
	Logger   *logging.Logger
	// MetricsAddr — адрес отдельного эндпоинта /metrics; пусто — не поднимать.
	MetricsAddr string
}

// Host владеет всеми компонентами сервера. Методы ядра (Trail, World)
// вызываются только с потока часов; снаружи — через Do.
type Host struct {
	cfg *config.Config
	log *logging.Logger

	Registry  *prometheus.Registry
	Scheduler *scheduler.TickScheduler
	Clock     *scheduler.Clock
	World     *world.World
	Trail     *fuse.Trail
	Claims    *territory.Claims
	Bus       eventbus.EventBus

	busSink     *effects.BusSink
	storage     *storage.WorldStorage
	exporter    *eventbus.MetricsExporter
	metricsAddr string
	logSub      eventbus.Subscription
	autosave    scheduler.Handle
	metrics     *hostMetrics
}

// New собирает Host. Часы не запускаются до Start.
func New(cfg *config.Config, opts Options) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetServerLogger()
	}

	h := &Host{
		cfg:       cfg,
		log:       opts.Logger,
		Registry:  opts.Registry,
		Scheduler: scheduler.NewTickScheduler(),
		metrics:   newHostMetrics(opts.Registry),

		metricsAddr: opts.MetricsAddr,
	}
	h.Clock = scheduler.NewClock(h.Scheduler, cfg.Server.TickRate)
	h.Clock.OnTick = h.metrics.observeTick

	if err := h.build(cfg, opts); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *Host) build(cfg *config.Config, opts Options) error {
	if cfg.World.DataPath != "" {
		st, err := storage.NewWorldStorage(cfg.World.DataPath)
		if err != nil {
			return err
		}
		h.storage = st
	}

	var store world.ChunkStore
	if h.storage != nil {
		store = h.storage
	}
	w, err := world.New(world.Options{
		ID:              cfg.World.ID,
		Seed:            cfg.World.Seed,
		Scheduler:       h.Scheduler,
		Store:           store,
		TNTFuseTicks:    cfg.Gunpowder.TNTFuseTicks,
		ExplosionRadius: cfg.Gunpowder.ExplosionRadius,
	})
	if err != nil {
		return err
	}
	h.World = w

	h.Claims = territory.NewClaims(cfg.Claims.Admins...)
	for _, c := range cfg.Claims.Areas {
		if err := h.Claims.Add(c); err != nil {
			return fmt.Errorf("приват %s: %w", c.ID, err)
		}
	}

	h.Bus = opts.Bus
	if h.Bus == nil {
		if h.Bus, err = newBus(cfg.EventBus); err != nil {
			return err
		}
	}
	eventbus.Init(h.Bus)
	h.exporter = eventbus.NewMetricsExporter(h.Bus, h.Registry)
	if h.log.Enabled(logging.DEBUG) {
		if h.logSub, err = eventbus.StartLoggingListener(h.Bus); err != nil {
			h.log.Warn("⚠️ Логирование событий шины недоступно: %v", err)
		}
	}

	h.busSink = effects.NewBusSink(h.Bus, effects.BusSinkOptions{
		Source:    cfg.Telemetry.ServiceName,
		Particles: cfg.Gunpowder.Particles,
		QueueSize: cfg.EventBus.QueueSize,
		Tick:      h.Scheduler.CurrentTick,
	})
	sink := effects.LoadedOnly(effects.Multi{effects.NewLogSink(logging.GetFuseLogger()), h.busSink}, w.Loaded)

	settings, err := cfg.Gunpowder.Settings()
	if err != nil {
		return err
	}
	trail, err := fuse.NewTrail(fuse.Options{
		World:      w,
		Items:      w,
		Authorizer: h.Claims,
		Sink:       sink,
		Scheduler:  h.Scheduler,
		Settings:   settings,
		Metrics:    fuse.NewMetrics(h.Registry),
	})
	if err != nil {
		return err
	}
	h.Trail = trail
	if !cfg.Gunpowder.IsEnabled() {
		trail.SetEnabled(false)
	}

	w.OnExplode(trail.Explode)
	w.OnBlockChange(func(c vec.Cell) { trail.PhysicsUpdate(c) })
	return nil
}

func newBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(cfg.QueueSize), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS %s: %w", cfg.URL, err)
	}
	return bus, nil
}

// Config возвращает текущую конфигурацию. Reload меняет её на потоке
// часов, поэтому читать поля Gunpowder следует там же.
func (h *Host) Config() *config.Config { return h.cfg }

// Start запускает часы, экспорт метрик шины и автосохранение.
func (h *Host) Start() error {
	if h.storage != nil && h.cfg.World.SaveEverySeconds > 0 {
		every := h.cfg.World.SaveEverySeconds * h.cfg.Server.TickRate
		handle, err := h.Scheduler.RunEvery(every, h.save)
		if err != nil {
			return err
		}
		h.autosave = handle
	}
	if h.metricsAddr != "" {
		h.exporter.StartHTTP(h.metricsAddr)
	} else {
		h.exporter.Start()
	}
	h.Clock.Start()
	h.log.Info("🎮 Мир %s запущен: %d тиков/с, механика пороха %s",
		h.World.ID(), h.cfg.Server.TickRate, onOff(h.Trail.Enabled()))
	return nil
}

// Do выполняет fn на потоке часов.
func (h *Host) Do(ctx context.Context, fn func()) error {
	return h.Clock.Do(ctx, fn)
}

// Reload применяет новую конфигурацию механики. Вызывается с потока часов.
func (h *Host) Reload(cfg *config.Config) error {
	settings, err := cfg.Gunpowder.Settings()
	if err != nil {
		return err
	}
	h.Trail.Reload(settings)
	h.Trail.SetEnabled(cfg.Gunpowder.IsEnabled())
	h.busSink.SetParticles(cfg.Gunpowder.Particles)
	h.cfg.Gunpowder = cfg.Gunpowder
	return nil
}

func (h *Host) save() {
	n, err := h.World.Save()
	if err != nil {
		h.log.Error("❌ Автосохранение мира %s: %v", h.World.ID(), err)
		return
	}
	if n > 0 {
		h.metrics.savedChunks.Add(float64(n))
		h.log.Debug("💾 Сохранено чанков: %d", n)
	}
}

// Close останавливает часы и освобождает ресурсы. Повторный вызов безопасен.
func (h *Host) Close() error {
	if h.Clock != nil {
		h.Clock.Stop()
	}
	if h.Trail != nil {
		h.Trail.Close()
	}
	var errs []error
	if h.World != nil && h.storage != nil {
		h.save()
	}
	if h.Scheduler != nil {
		h.Scheduler.Shutdown()
	}
	if h.busSink != nil {
		h.busSink.Close()
	}
	if h.logSub != nil {
		h.logSub.Unsubscribe()
		h.logSub = nil
	}
	if h.exporter != nil {
		h.exporter.Stop()
		h.exporter.Wait()
	}
	if h.Bus != nil {
		if err := h.Bus.Close(); err != nil && !errors.Is(err, eventbus.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if h.storage != nil {
		if err := h.storage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func onOff(b bool) string {
	if b {
		return "включена"
	}
	return "выключена"
}

type hostMetrics struct {
	tickDuration prometheus.Histogram
	tasksRun     prometheus.Counter
	savedChunks  prometheus.Counter
}

func newHostMetrics(reg prometheus.Registerer) *hostMetrics {
	m := &hostMetrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gunpowder",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика планировщика.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
		}),
		tasksRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gunpowder",
			Name:      "scheduler_tasks_total",
			Help:      "Выполненные задачи планировщика.",
		}),
		savedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gunpowder",
			Name:      "saved_chunks_total",
			Help:      "Чанки, записанные в хранилище.",
		}),
	}
	reg.MustRegister(m.tickDuration, m.tasksRun, m.savedChunks)
	return m
}

func (m *hostMetrics) observeTick(_ uint64, ran int, took time.Duration) {
	m.tickDuration.Observe(took.Seconds())
	m.tasksRun.Add(float64(ran))
}
