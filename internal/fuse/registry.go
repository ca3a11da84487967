package fuse

import (
	"fmt"
	"sort"

	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/vec"
)

// Node — уложенный порох в клетке.
type Node struct {
	Cell     vec.Cell
	PlacedAt uint64 // Тик укладки

	ambient scheduler.Handle // Принадлежит только этой записи реестра
}

// AmbientHandle возвращает задачу фоновых частиц узла (0 после снятия).
func (n *Node) AmbientHandle() scheduler.Handle { return n.ambient }

// Registry — множество уложенных узлов. Клетка присутствует в реестре
// тогда и только тогда, когда запланирован её фоновый таймер.
//
// Реестр не синхронизирован: все вызовы должны идти с одного логического
// потока (планировщика хоста).
type Registry struct {
	nodes   map[vec.Cell]*Node
	ambient *Ambient
}

// NewRegistry создаёт пустой реестр и связывает его с фоновым планировщиком.
func NewRegistry(ambient *Ambient) *Registry {
	r := &Registry{
		nodes:   make(map[vec.Cell]*Node),
		ambient: ambient,
	}
	ambient.bind(r)
	return r
}

// Insert добавляет узел и запускает его таймер. Если узел уже есть,
// возвращает существующий и false.
func (r *Registry) Insert(c vec.Cell) (*Node, bool, error) {
	if n, ok := r.nodes[c]; ok {
		return n, false, nil
	}

	h, err := r.ambient.Start(c)
	if err != nil {
		return nil, false, fmt.Errorf("запуск фонового таймера %s: %w", c, err)
	}

	n := &Node{Cell: c, PlacedAt: r.ambient.sched.CurrentTick(), ambient: h}
	r.nodes[c] = n
	r.ambient.metrics.activeNodes.Set(float64(len(r.nodes)))
	return n, true, nil
}

// Remove снимает узел и останавливает его таймер ровно один раз.
// Для отсутствующей клетки ничего не делает.
func (r *Registry) Remove(c vec.Cell) (*Node, bool) {
	n, ok := r.nodes[c]
	if !ok {
		return nil, false
	}
	delete(r.nodes, c)
	r.ambient.Stop(n.ambient)
	n.ambient = 0
	r.ambient.metrics.activeNodes.Set(float64(len(r.nodes)))
	return n, true
}

// Contains сообщает, есть ли узел в клетке.
func (r *Registry) Contains(c vec.Cell) bool {
	_, ok := r.nodes[c]
	return ok
}

// Get возвращает узел клетки.
func (r *Registry) Get(c vec.Cell) (*Node, bool) {
	n, ok := r.nodes[c]
	return n, ok
}

// Len возвращает число узлов.
func (r *Registry) Len() int { return len(r.nodes) }

// Cells возвращает отсортированный список клеток с узлами.
func (r *Registry) Cells() []vec.Cell {
	cells := make([]vec.Cell, 0, len(r.nodes))
	for c := range r.nodes {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
	return cells
}

// Clear снимает все узлы без компенсаций. Возвращает число снятых.
func (r *Registry) Clear() int {
	n := 0
	for _, c := range r.Cells() {
		if _, ok := r.Remove(c); ok {
			n++
		}
	}
	return n
}

// Neighbors возвращает соседей клетки по правилу горения.
func (r *Registry) Neighbors(c vec.Cell) []vec.Cell {
	return Neighbors(c)
}

// owns проверяет, что таймер h принадлежит текущему узлу клетки.
func (r *Registry) owns(c vec.Cell, h scheduler.Handle) bool {
	n, ok := r.nodes[c]
	return ok && n.ambient == h
}

// horizontal — порядок обхода горизонтальных направлений.
var horizontal = []vec.Vec3{vec.North, vec.South, vec.East, vec.West}

// Neighbors возвращает шесть соседей по осям и, для каждого горизонтального
// направления, клетку на шаг выше соседа ("подъём"). Порядок фиксирован:
// north, north+up, south, south+up, east, east+up, west, west+up, down, up.
func Neighbors(c vec.Cell) []vec.Cell {
	out := make([]vec.Cell, 0, 10)
	for _, d := range horizontal {
		n := c.Add(d)
		out = append(out, n, n.Up())
	}
	return append(out, c.Down(), c.Up())
}
