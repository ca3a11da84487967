package scheduler

import (
	"sort"
	"sync"
)

type task struct {
	id       Handle
	due      uint64
	interval uint64 // 0 — одноразовая задача
	fn       func()
}

// TickScheduler — планировщик, который продвигается только вызовом Tick().
// Внутри одного тика задачи выполняются в порядке их Handle, то есть в
// порядке постановки.
type TickScheduler struct {
	mu     sync.Mutex
	tick   uint64
	nextID Handle
	tasks  map[Handle]*task
	closed bool
}

// NewTickScheduler создаёт пустой планировщик на тике 0.
func NewTickScheduler() *TickScheduler {
	return &TickScheduler{tasks: make(map[Handle]*task)}
}

func (s *TickScheduler) schedule(delay, interval uint64, fn func()) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if delay == 0 {
		delay = 1
	}
	s.nextID++
	t := &task{id: s.nextID, due: s.tick + delay, interval: interval, fn: fn}
	s.tasks[t.id] = t
	return t.id, nil
}

func (s *TickScheduler) RunNow(fn func()) (Handle, error) {
	return s.schedule(1, 0, fn)
}

func (s *TickScheduler) RunAfter(ticks int, fn func()) (Handle, error) {
	if ticks < 1 {
		ticks = 1
	}
	return s.schedule(uint64(ticks), 0, fn)
}

func (s *TickScheduler) RunEvery(interval int, fn func()) (Handle, error) {
	if interval < 1 {
		interval = 1
	}
	return s.schedule(1, uint64(interval), fn)
}

func (s *TickScheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[h]; !ok {
		return false
	}
	delete(s.tasks, h)
	return true
}

func (s *TickScheduler) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Active сообщает, запланирована ли ещё задача.
func (s *TickScheduler) Active(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[h]
	return ok
}

// Pending возвращает число запланированных задач.
func (s *TickScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Tick продвигает время на один тик и выполняет все задачи, срок которых
// наступил. Возвращает число выполненных колбэков.
func (s *TickScheduler) Tick() int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.tick++
	now := s.tick
	due := make([]Handle, 0, 8)
	for id, t := range s.tasks {
		if t.due <= now {
			due = append(due, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	ran := 0
	for _, id := range due {
		// Задача могла быть отменена колбэком, выполненным раньше в этом тике.
		s.mu.Lock()
		t, ok := s.tasks[id]
		if ok {
			if t.interval == 0 {
				delete(s.tasks, id)
			} else {
				t.due = now + t.interval
			}
		}
		s.mu.Unlock()
		if !ok {
			continue
		}
		t.fn()
		ran++
	}
	return ran
}

// Advance выполняет n тиков подряд.
func (s *TickScheduler) Advance(n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

// RunUntil крутит тики, пока cond не вернёт true, но не больше limit
// тиков. Возвращает число выполненных тиков.
func (s *TickScheduler) RunUntil(limit int, cond func() bool) int {
	for i := 0; i < limit; i++ {
		if cond() {
			return i
		}
		s.Tick()
	}
	return limit
}

// Shutdown останавливает планировщик: все задачи снимаются, новые
// не принимаются.
func (s *TickScheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.tasks = make(map[Handle]*task)
	s.mu.Unlock()
}

// Closed сообщает, остановлен ли планировщик.
func (s *TickScheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
