// Package world — эталонный мир хоста: воксельный ландшафт в памяти с ленивой
// генерацией чанков, инвентари игроков, выпавшие предметы и взрывчатка,
// которая после поджига взрывается через заданное число тиков.
package world

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

var (
	// ErrNotEnoughItems — у игрока не хватает предметов.
	ErrNotEnoughItems = errors.New("world: not enough items")
	// ErrForeignWorld — клетка относится к другому (не загруженному) миру.
	ErrForeignWorld = errors.New("world: cell belongs to another world")
)

// ChunkStore — постоянное хранилище изменённых чанков.
type ChunkStore interface {
	// LoadChunk применяет к сгенерированному чанку сохранённые изменения.
	LoadChunk(worldID string, ch *Chunk) error
	// SaveChunk сохраняет изменения чанка и сбрасывает их.
	SaveChunk(worldID string, ch *Chunk) error
}

// MaxExplosionRadius — предел радиуса взрыва. Взрыв обходит (2r+1)³ клеток
// на потоке тиков.
const MaxExplosionRadius = 16.0

// ExplodeFilter получает клетки, задетые взрывом, и возвращает те, что мир
// должен разрушить сам.
type ExplodeFilter func(affected []vec.Cell) []vec.Cell

// Options — параметры мира.
type Options struct {
	ID              string
	Seed            int64
	Scheduler       scheduler.Scheduler
	Store           ChunkStore
	TNTFuseTicks    int     // Тики от поджига взрывчатки до взрыва
	ExplosionRadius float64 // Радиус разрушения
	Logger          *logging.Logger
}

// World — мир в памяти. Безопасен для конкурентного чтения, но колбэки
// взрывов и изменений блоков вызываются на потоке планировщика.
type World struct {
	id      string
	gen     *Generator
	sched   scheduler.Scheduler
	store   ChunkStore
	tntFuse int
	radius  float64
	log     *logging.Logger

	mu          sync.RWMutex
	chunks      map[vec.Vec2]*Chunk
	inventories map[string]map[block.ItemKind]int
	drops       map[vec.Cell]map[block.ItemKind]int
	charges     map[vec.Cell]scheduler.Handle
	explosions  uint64

	onExplode ExplodeFilter
	onChange  func(vec.Cell)
}

// New создаёт мир. Scheduler обязателен: через него взрываются заряды.
func New(opts Options) (*World, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("world: scheduler is required")
	}
	if opts.ID == "" {
		opts.ID = "overworld"
	}
	if opts.TNTFuseTicks < 1 {
		opts.TNTFuseTicks = 80
	}
	if opts.ExplosionRadius <= 0 {
		opts.ExplosionRadius = 3
	}
	opts.ExplosionRadius = math.Min(opts.ExplosionRadius, MaxExplosionRadius)
	if opts.Logger == nil {
		opts.Logger = logging.GetWorldLogger()
	}
	return &World{
		id:          opts.ID,
		gen:         NewGenerator(opts.Seed),
		sched:       opts.Scheduler,
		store:       opts.Store,
		tntFuse:     opts.TNTFuseTicks,
		radius:      opts.ExplosionRadius,
		log:         opts.Logger,
		chunks:      make(map[vec.Vec2]*Chunk),
		inventories: make(map[string]map[block.ItemKind]int),
		drops:       make(map[vec.Cell]map[block.ItemKind]int),
		charges:     make(map[vec.Cell]scheduler.Handle),
	}, nil
}

// ID возвращает идентификатор мира.
func (w *World) ID() string { return w.id }

// Loaded сообщает, загружен ли мир с указанным идентификатором.
func (w *World) Loaded(worldID string) bool { return worldID == w.id }

// Generator возвращает генератор ландшафта.
func (w *World) Generator() *Generator { return w.gen }

// OnExplode задаёт фильтр клеток взрыва (механика пороха исключает свои узлы).
func (w *World) OnExplode(fn ExplodeFilter) { w.onExplode = fn }

// OnBlockChange задаёт обработчик изменения соседства клетки.
func (w *World) OnBlockChange(fn func(vec.Cell)) { w.onChange = fn }

// chunkLocked возвращает чанк клетки, генерируя и загружая его при первом
// обращении. Вызывается под w.mu.
func (w *World) chunkLocked(coords vec.Vec2) *Chunk {
	if ch, ok := w.chunks[coords]; ok {
		return ch
	}
	ch := w.gen.GenerateChunk(coords)
	if w.store != nil {
		if err := w.store.LoadChunk(w.id, ch); err != nil {
			w.log.Warn("⚠️ Не удалось загрузить чанк %v: %v", coords, err)
		}
	}
	w.chunks[coords] = ch
	return ch
}

// MaterialAt возвращает материал клетки. Клетки чужих миров — воздух.
func (w *World) MaterialAt(c vec.Cell) block.BlockID {
	if c.World != w.id {
		return block.AirBlockID
	}
	if c.Y < MinY {
		return block.StoneBlockID
	}
	coords, local := Locate(c)

	w.mu.RLock()
	if ch, ok := w.chunks[coords]; ok {
		id := ch.GetBlock(local)
		w.mu.RUnlock()
		return id
	}
	w.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chunkLocked(coords).GetBlock(local)
}

// IsLiquid сообщает, жидкость ли в клетке.
func (w *World) IsLiquid(c vec.Cell) bool { return w.MaterialAt(c).IsLiquid() }

// IsVolatile сообщает, стоит ли в клетке взрывчатка.
func (w *World) IsVolatile(c vec.Cell) bool { return w.MaterialAt(c).IsVolatile() }

// SetBlock ставит блок без уведомления соседей.
func (w *World) SetBlock(c vec.Cell, id block.BlockID) {
	if c.World != w.id || c.Y < MinY {
		return
	}
	coords, local := Locate(c)
	w.mu.Lock()
	w.chunkLocked(coords).SetBlock(local, id)
	w.mu.Unlock()
}

// SetEmpty очищает клетку.
func (w *World) SetEmpty(c vec.Cell) { w.SetBlock(c, block.AirBlockID) }

// ChangeBlock — изменение блока внешним участником (игроком, администратором).
// После изменения соседи получают уведомление, как при обновлении физики.
func (w *World) ChangeBlock(c vec.Cell, id block.BlockID) error {
	if c.World != w.id {
		return ErrForeignWorld
	}
	w.SetBlock(c, id)
	w.notify(c, c.Up())
	return nil
}

func (w *World) notify(cells ...vec.Cell) {
	if w.onChange == nil {
		return
	}
	for _, c := range cells {
		w.onChange(c)
	}
}

// SurfaceAt возвращает первую свободную клетку над грунтом колонки (x, z),
// учитывая изменения мира.
func (w *World) SurfaceAt(x, z int) vec.Cell {
	c := vec.At(w.id, x, w.gen.SurfaceHeight(x, z)+Amplitude+2, z)
	for c.Y > MinY && w.MaterialAt(c.Down()).IsAir() {
		c = c.Down()
	}
	for !w.MaterialAt(c).IsAir() {
		c = c.Up()
	}
	return c
}

// Prime превращает взрывчатку в активный заряд, который взорвётся через
// TNTFuseTicks тиков.
func (w *World) Prime(c vec.Cell) bool {
	if !w.IsVolatile(c) {
		return false
	}

	w.mu.Lock()
	if _, ok := w.charges[c]; ok {
		w.mu.Unlock()
		return false
	}
	h, err := w.sched.RunAfter(w.tntFuse, func() { w.detonate(c) })
	if err != nil {
		w.mu.Unlock()
		w.log.Warn("Заряд в %s не запланирован: %v", c, err)
		return false
	}
	w.charges[c] = h
	coords, local := Locate(c)
	w.chunkLocked(coords).SetBlock(local, block.AirBlockID)
	w.mu.Unlock()

	w.notify(c.Up())
	w.log.Debug("🧨 Заряд в %s взорвётся через %d тиков", c, w.tntFuse)
	return true
}

// Charges возвращает активные заряды.
func (w *World) Charges() []vec.Cell {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedCells(w.charges)
}

func (w *World) detonate(c vec.Cell) {
	w.mu.Lock()
	delete(w.charges, c)
	w.mu.Unlock()

	destroyed := w.Explode(c, w.radius)
	w.log.Info("💥 Взрыв в %s: разрушено блоков %d", c, len(destroyed))
}

// Explode разрушает блоки в шаре радиуса radius вокруг center. Задетые
// клетки сначала проходят через фильтр OnExplode. Задетая взрывчатка
// поджигается. Неположительный радиус заменяется радиусом мира, слишком
// большой обрезается до MaxExplosionRadius. Возвращает разрушенные клетки.
func (w *World) Explode(center vec.Cell, radius float64) []vec.Cell {
	radius = w.clampRadius(radius)
	affected := w.affected(center, radius)
	if w.onExplode != nil {
		affected = w.onExplode(affected)
	}

	w.mu.Lock()
	w.explosions++
	w.mu.Unlock()

	destroyed := make([]vec.Cell, 0, len(affected))
	for _, c := range affected {
		if w.IsVolatile(c) {
			w.Prime(c)
			continue
		}
		if w.MaterialAt(c).IsAir() {
			continue
		}
		w.SetEmpty(c)
		destroyed = append(destroyed, c)
	}

	// Блоки над воронкой теряют опору
	for _, c := range destroyed {
		w.notify(c.Up())
	}
	return destroyed
}

// clampRadius приводит радиус взрыва к (0, MaxExplosionRadius].
func (w *World) clampRadius(radius float64) float64 {
	if radius <= 0 || math.IsNaN(radius) {
		radius = w.radius
	}
	return math.Min(radius, MaxExplosionRadius)
}

// affected собирает непустые нежидкие клетки шара в детерминированном порядке.
func (w *World) affected(center vec.Cell, radius float64) []vec.Cell {
	r := int(math.Ceil(radius))
	var out []vec.Cell
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if float64(dx*dx+dy*dy+dz*dz) > radius*radius {
					continue
				}
				c := center.Add(vec.Vec3{X: dx, Y: dy, Z: dz})
				m := w.MaterialAt(c)
				if m.IsAir() || m.IsLiquid() {
					continue
				}
				out = append(out, c)
			}
		}
	}
	return out
}

// Explosions возвращает число произошедших взрывов.
func (w *World) Explosions() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.explosions
}

// Save сохраняет изменённые чанки в хранилище.
func (w *World) Save() (int, error) {
	if w.store == nil {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	saved := 0
	for coords, ch := range w.chunks {
		if ch.ChangeCount() == 0 {
			continue
		}
		if err := w.store.SaveChunk(w.id, ch); err != nil {
			return saved, fmt.Errorf("сохранение чанка %v: %w", coords, err)
		}
		saved++
	}
	return saved, nil
}

// LoadedChunks возвращает число чанков в памяти.
func (w *World) LoadedChunks() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

func sortedCells[V any](m map[vec.Cell]V) []vec.Cell {
	out := make([]vec.Cell, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
