// Package scheduler моделирует планировщик хоста с тиковой моделью времени:
// "выполнить сейчас", "выполнить через N тиков", "выполнять каждые N тиков"
// и отмену. Все колбэки выполняются на одном логическом потоке.
package scheduler

import "errors"

// Handle идентифицирует запланированную задачу. Нулевое значение — "нет задачи".
type Handle uint64

// ErrClosed возвращается, когда планировщик остановлен (хост завершает работу).
var ErrClosed = errors.New("scheduler: closed")

// Scheduler — примитивы планировщика хоста.
type Scheduler interface {
	// RunNow выполняет fn в ближайшем тике.
	RunNow(fn func()) (Handle, error)
	// RunAfter выполняет fn один раз через ticks тиков (минимум один).
	RunAfter(ticks int, fn func()) (Handle, error)
	// RunEvery выполняет fn в ближайшем тике и далее каждые interval тиков.
	// Первый вызов никогда не происходит синхронно внутри RunEvery.
	RunEvery(interval int, fn func()) (Handle, error)
	// Cancel отменяет задачу. Возвращает false, если задача уже завершена
	// или отменена; повторная отмена безопасна.
	Cancel(h Handle) bool
	// CurrentTick возвращает номер последнего выполненного тика.
	CurrentTick() uint64
}
