package block

import (
	"fmt"
	"strings"
)

// BlockID представляет идентификатор материала блока
type BlockID uint16

// Category — битовая маска категорий материала.
type Category uint16

const (
	CategoryAir      Category = 1 << iota // Пустота
	CategoryLiquid                        // Вода, лава
	CategorySolid                         // Полный твёрдый блок
	CategoryFlower                        // Цветы (тег FLOWERS)
	CategoryLeaves                        // Листва (тег LEAVES)
	CategoryPlant                         // Мягкие растения: трава, лозы, саженцы
	CategoryVolatile                      // Взрывчатка, которую поджигает фитиль
	CategoryFuse                          // Уложенный порох
)

// Material описывает материал блока
type Material struct {
	ID         BlockID
	Name       string
	Categories Category
}

// Is проверяет принадлежность материала категории
func (m Material) Is(c Category) bool {
	return m.Categories&c != 0
}

var (
	registry = make(map[BlockID]Material)
	byName   = make(map[string]BlockID)
)

// Register добавляет материал в регистр
func Register(m Material) {
	registry[m.ID] = m
	byName[m.Name] = m.ID
}

// Get возвращает материал для указанного ID
func Get(id BlockID) (Material, bool) {
	m, exists := registry[id]
	return m, exists
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := registry[id]
	return exists
}

// Lookup ищет материал по имени без учёта регистра ("OAK_LEAVES" == "oak_leaves").
func Lookup(name string) (BlockID, error) {
	id, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("неизвестный материал %q", name)
	}
	return id, nil
}

// Name возвращает имя материала или "unknown(<id>)".
func (id BlockID) Name() string {
	if m, ok := registry[id]; ok {
		return m.Name
	}
	return fmt.Sprintf("unknown(%d)", uint16(id))
}

func (id BlockID) is(c Category) bool {
	m, ok := registry[id]
	return ok && m.Is(c)
}

// IsAir возвращает true для пустого блока
func (id BlockID) IsAir() bool { return id == AirBlockID }

// IsLiquid возвращает true для жидкостей
func (id BlockID) IsLiquid() bool { return id.is(CategoryLiquid) }

// IsVolatile возвращает true для взрывчатки
func (id BlockID) IsVolatile() bool { return id.is(CategoryVolatile) }
