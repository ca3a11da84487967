package effects

import (
	"errors"

	"github.com/annel0/gunpowder/internal/fuse"
	"github.com/annel0/gunpowder/internal/vec"
)

// Multi рассылает каждый эффект во все приёмники. Сбой одного приёмника
// не мешает остальным; ошибки объединяются.
type Multi []fuse.Sink

func (m Multi) each(fn func(fuse.Sink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) EmitPlace(c vec.Cell) error {
	return m.each(func(s fuse.Sink) error { return s.EmitPlace(c) })
}

func (m Multi) EmitAmbient(c vec.Cell) error {
	return m.each(func(s fuse.Sink) error { return s.EmitAmbient(c) })
}

func (m Multi) EmitIgnite(c vec.Cell) error {
	return m.each(func(s fuse.Sink) error { return s.EmitIgnite(c) })
}

func (m Multi) EmitExplosionTrigger(c vec.Cell) error {
	return m.each(func(s fuse.Sink) error { return s.EmitExplosionTrigger(c) })
}

// LoadedOnly пропускает эффекты только для загруженных миров. Для клеток
// выгруженного мира возвращается fuse.ErrWorldUnloaded.
func LoadedOnly(next fuse.Sink, loaded func(world string) bool) fuse.Sink {
	return &loadedOnly{next: next, loaded: loaded}
}

type loadedOnly struct {
	next   fuse.Sink
	loaded func(string) bool
}

func (l *loadedOnly) check(c vec.Cell, fn func(vec.Cell) error) error {
	if !l.loaded(c.World) {
		return fuse.ErrWorldUnloaded
	}
	return fn(c)
}

func (l *loadedOnly) EmitPlace(c vec.Cell) error   { return l.check(c, l.next.EmitPlace) }
func (l *loadedOnly) EmitAmbient(c vec.Cell) error { return l.check(c, l.next.EmitAmbient) }
func (l *loadedOnly) EmitIgnite(c vec.Cell) error  { return l.check(c, l.next.EmitIgnite) }
func (l *loadedOnly) EmitExplosionTrigger(c vec.Cell) error {
	return l.check(c, l.next.EmitExplosionTrigger)
}
