package effects

import (
	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/vec"
)

// LogSink пишет эффекты в лог компонента. Фоновые частицы идут на уровне
// TRACE, чтобы не засорять вывод.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink создаёт приёмник поверх логгера.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) EmitPlace(c vec.Cell) error {
	s.log.Debug("🧂 Порох уложен: %s", c)
	return nil
}

func (s *LogSink) EmitAmbient(c vec.Cell) error {
	s.log.Trace("✨ Частицы пороха: %s", c)
	return nil
}

func (s *LogSink) EmitIgnite(c vec.Cell) error {
	s.log.Debug("🔥 Горит: %s", c)
	return nil
}

func (s *LogSink) EmitExplosionTrigger(c vec.Cell) error {
	s.log.Info("💥 Взрывчатка подожжена: %s", c)
	return nil
}
