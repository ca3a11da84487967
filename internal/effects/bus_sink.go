package effects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/gunpowder/internal/eventbus"
	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/vec"
)

// ErrSinkBusy — очередь публикации заполнена, эффект отброшен.
var ErrSinkBusy = errors.New("effects: sink queue full")

// ErrSinkClosed — приёмник уже остановлен.
var ErrSinkClosed = errors.New("effects: sink closed")

// priorities — приоритет события в шине по виду эффекта.
var priorities = map[Effect]int{
	EffectAmbient:          1,
	EffectPlace:            3,
	EffectIgnite:           5,
	EffectExplosionTrigger: 9,
}

var eventTypes = map[Effect]string{
	EffectPlace:            eventbus.EventFusePlaced,
	EffectAmbient:          eventbus.EventFuseAmbient,
	EffectIgnite:           eventbus.EventFuseIgnited,
	EffectExplosionTrigger: eventbus.EventExplosionTrigger,
}

// BusSinkOptions — параметры BusSink.
type BusSinkOptions struct {
	Source         string        // Имя сервиса в Envelope.Source
	Particles      Particles     // Параметры частиц в полезной нагрузке
	QueueSize      int           // Ёмкость очереди публикации
	PublishTimeout time.Duration // Ограничение на одну публикацию
	Tick           func() uint64 // Номер тика для нагрузки (необязательно)
	Logger         *logging.Logger
}

// BusSink публикует эффекты в шину событий. Emit* вызываются на потоке
// планировщика и никогда не блокируются: события кладутся в ограниченную
// очередь, которую разбирает отдельная горутина. Горутина не трогает
// состояние механики.
type BusSink struct {
	bus    eventbus.EventBus
	opts   BusSinkOptions
	queue  chan *eventbus.Envelope
	log    *logging.Logger
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewBusSink создаёт приёмник и запускает воркер публикации.
func NewBusSink(bus eventbus.EventBus, opts BusSinkOptions) *BusSink {
	if opts.QueueSize < 1 {
		opts.QueueSize = 1024
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if opts.Source == "" {
		opts.Source = "gunpowder"
	}
	s := &BusSink{
		bus:   bus,
		opts:  opts,
		queue: make(chan *eventbus.Envelope, opts.QueueSize),
		log:   opts.Logger,
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// SetParticles меняет параметры частиц для следующих событий. Вызывается
// с потока планировщика, как и Emit*.
func (s *BusSink) SetParticles(p Particles) {
	s.mu.Lock()
	s.opts.Particles = p
	s.mu.Unlock()
}

func (s *BusSink) EmitPlace(c vec.Cell) error   { return s.enqueue(EffectPlace, c) }
func (s *BusSink) EmitAmbient(c vec.Cell) error { return s.enqueue(EffectAmbient, c) }
func (s *BusSink) EmitIgnite(c vec.Cell) error  { return s.enqueue(EffectIgnite, c) }
func (s *BusSink) EmitExplosionTrigger(c vec.Cell) error {
	return s.enqueue(EffectExplosionTrigger, c)
}

func (s *BusSink) enqueue(effect Effect, c vec.Cell) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	var tick uint64
	if s.opts.Tick != nil {
		tick = s.opts.Tick()
	}
	data, err := json.Marshal(payloadFor(effect, c, s.opts.Particles, tick))
	if err != nil {
		return fmt.Errorf("сериализация эффекта %s: %w", effect, err)
	}

	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    s.opts.Source,
		EventType: eventTypes[effect],
		Version:   1,
		Tenant:    c.World,
		Priority:  priorities[effect],
		Payload:   data,
		Metadata:  map[string]string{"cell": c.String()},
	}

	select {
	case s.queue <- ev:
		return nil
	default:
		return ErrSinkBusy
	}
}

func (s *BusSink) worker() {
	defer s.wg.Done()
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.PublishTimeout)
		if err := s.bus.Publish(ctx, ev); err != nil {
			s.log.Debug("Публикация %s %s не удалась: %v", ev.EventType, ev.ID, err)
		}
		cancel()
	}
}

// Pending возвращает число событий в очереди.
func (s *BusSink) Pending() int { return len(s.queue) }

// Close прекращает приём эффектов и дожидается публикации очереди.
func (s *BusSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}
