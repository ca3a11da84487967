package fuse

import (
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world/block"
)

// World — запросы и изменения мира хоста.
type World interface {
	MaterialAt(c vec.Cell) block.BlockID
	IsLiquid(c vec.Cell) bool
	SetBlock(c vec.Cell, id block.BlockID)
	SetEmpty(c vec.Cell)
	// IsVolatile сообщает, стоит ли в клетке взрывчатка.
	IsVolatile(c vec.Cell) bool
	// Prime превращает взрывчатку в активный заряд. Возвращает false,
	// если в клетке уже нечего поджигать.
	Prime(c vec.Cell) bool
}

// Items — выдача и изъятие предметов.
type Items interface {
	GiveItem(actor string, kind block.ItemKind, count int) error
	TakeItem(actor string, kind block.ItemKind, count int) error
	DropItem(c vec.Cell, kind block.ItemKind, count int) error
}

// StrayCleaner — необязательная возможность мира убрать выпавшие предметы.
type StrayCleaner interface {
	ClearDrops(c vec.Cell, kind block.ItemKind) int
}

// Authorizer — внешний оракул прав на строительство.
type Authorizer interface {
	CanBuild(actor string, c vec.Cell) bool
}

// AuthorizerFunc адаптирует функцию к Authorizer.
type AuthorizerFunc func(actor string, c vec.Cell) bool

func (f AuthorizerFunc) CanBuild(actor string, c vec.Cell) bool { return f(actor, c) }

// AllowAll разрешает строить везде.
var AllowAll Authorizer = AuthorizerFunc(func(string, vec.Cell) bool { return true })

// Sink — приёмник визуальных и звуковых эффектов.
type Sink interface {
	EmitPlace(c vec.Cell) error
	EmitAmbient(c vec.Cell) error
	EmitIgnite(c vec.Cell) error
	EmitExplosionTrigger(c vec.Cell) error
}

type nopSink struct{}

func (nopSink) EmitPlace(vec.Cell) error            { return nil }
func (nopSink) EmitAmbient(vec.Cell) error          { return nil }
func (nopSink) EmitIgnite(vec.Cell) error           { return nil }
func (nopSink) EmitExplosionTrigger(vec.Cell) error { return nil }

// NopSink ничего не показывает.
var NopSink Sink = nopSink{}

// Actor — игрок или иной инициатор действия.
type Actor struct {
	ID       string
	Creative bool // В творческом режиме порох не расходуется и не возвращается
}
