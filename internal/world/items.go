package world

import (
	"fmt"

	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

// GiveItem кладёт предметы в инвентарь игрока.
func (w *World) GiveItem(actor string, kind block.ItemKind, count int) error {
	if count <= 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	inv, ok := w.inventories[actor]
	if !ok {
		inv = make(map[block.ItemKind]int)
		w.inventories[actor] = inv
	}
	inv[kind] += count
	return nil
}

// TakeItem забирает предметы из инвентаря игрока.
func (w *World) TakeItem(actor string, kind block.ItemKind, count int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv := w.inventories[actor]
	if inv[kind] < count {
		return fmt.Errorf("%s: %s %d из %d: %w", actor, kind, inv[kind], count, ErrNotEnoughItems)
	}
	inv[kind] -= count
	if inv[kind] == 0 {
		delete(inv, kind)
	}
	return nil
}

// Inventory возвращает копию инвентаря игрока.
func (w *World) Inventory(actor string) map[block.ItemKind]int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[block.ItemKind]int, len(w.inventories[actor]))
	for k, v := range w.inventories[actor] {
		out[k] = v
	}
	return out
}

// DropItem роняет предметы в клетку.
func (w *World) DropItem(c vec.Cell, kind block.ItemKind, count int) error {
	if c.World != w.id {
		return ErrForeignWorld
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.drops[c]
	if !ok {
		d = make(map[block.ItemKind]int)
		w.drops[c] = d
	}
	d[kind] += count
	return nil
}

// ClearDrops убирает выпавшие в клетке предметы вида kind. Возвращает
// число убранных.
func (w *World) ClearDrops(c vec.Cell, kind block.ItemKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.drops[c]
	n := d[kind]
	delete(d, kind)
	if len(d) == 0 {
		delete(w.drops, c)
	}
	return n
}

// DropsAt возвращает копию выпавших в клетке предметов.
func (w *World) DropsAt(c vec.Cell) map[block.ItemKind]int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[block.ItemKind]int, len(w.drops[c]))
	for k, v := range w.drops[c] {
		out[k] = v
	}
	return out
}

// DropCells возвращает клетки с выпавшими предметами.
func (w *World) DropCells() []vec.Cell {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedCells(w.drops)
}
