package fuse

import (
	"errors"
	"fmt"

	"github.com/annel0/gunpowder/internal/vec"
)

// Reason — причина отказа в укладке пороха.
type Reason string

const (
	ReasonTargetOccupied    Reason = "target_occupied"    // Клетка не пуста
	ReasonNoSupport         Reason = "no_support"         // Под клеткой воздух или жидкость
	ReasonDisallowedSupport Reason = "disallowed_support" // Опора из запрещённого набора
	ReasonStacked           Reason = "stacked"            // Узел сверху или снизу
	ReasonDuplicate         Reason = "duplicate"          // Узел уже есть в клетке
	ReasonUnauthorized      Reason = "unauthorized"       // Нет права строить
	ReasonNoMaterial        Reason = "no_material"        // У игрока нет пороха
)

// PlacementError — ожидаемый отказ в укладке. Сообщается игроку, в лог
// ошибок не пишется.
type PlacementError struct {
	Cell   vec.Cell
	Reason Reason
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("укладка пороха в %s отклонена: %s", e.Cell, e.Reason)
}

// IsRejected проверяет, является ли ошибка отказом в укладке, и возвращает причину.
func IsRejected(err error) (Reason, bool) {
	var pe *PlacementError
	if errors.As(err, &pe) {
		return pe.Reason, true
	}
	return "", false
}

var (
	// ErrNotFuse — в клетке нет уложенного пороха.
	ErrNotFuse = errors.New("fuse: no node at cell")
	// ErrAlreadyBurning — клетка уже ждёт поджига в активном прогоне.
	ErrAlreadyBurning = errors.New("fuse: cell already burning")
	// ErrDisabled — механика выключена.
	ErrDisabled = errors.New("fuse: disabled")
	// ErrWorldUnloaded возвращается Sink, когда мир клетки выгружен.
	// Фоновый таймер узла при этом останавливается, узел снимается.
	ErrWorldUnloaded = errors.New("fuse: world unloaded")
)
