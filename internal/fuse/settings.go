package fuse

import "github.com/annel0/gunpowder/internal/world/block"

// Settings — настраиваемые параметры механики.
type Settings struct {
	AmbientIntervalTicks int // Период фоновых частиц узла
	FuseStepTicks        int // Период шага горения
	Support              block.SupportPolicy
}

// DefaultSettings возвращает значения по умолчанию: частицы раз в 10 тиков,
// шаг горения 3 тика.
func DefaultSettings() Settings {
	return Settings{
		AmbientIntervalTicks: 10,
		FuseStepTicks:        3,
		Support:              block.NewSupportPolicy(),
	}
}

// normalized поднимает периоды до минимума в один тик.
func (s Settings) normalized() Settings {
	if s.AmbientIntervalTicks < 1 {
		s.AmbientIntervalTicks = 1
	}
	if s.FuseStepTicks < 1 {
		s.FuseStepTicks = 1
	}
	return s
}
