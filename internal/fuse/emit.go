package fuse

import (
	"fmt"

	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/vec"
)

// emit вызывает приёмник эффектов и гасит любые его сбои, включая панику.
// Ошибка возвращается только для принятия решения вызывающим.
func emit(log *logging.Logger, m *Metrics, effect string, c vec.Cell, fn func(vec.Cell) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника приёмника эффектов: %v", r)
		}
		if err != nil {
			m.sinkFailures.WithLabelValues(effect).Inc()
			log.Debug("Эффект %s в %s не показан: %v", effect, c, err)
		}
	}()
	return fn(c)
}
