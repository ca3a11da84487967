package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int
	Y int
	Z int
}

// Единичные смещения по осям. Y направлена вверх.
var (
	Up    = Vec3{Y: 1}
	Down  = Vec3{Y: -1}
	North = Vec3{Z: -1}
	South = Vec3{Z: 1}
	East  = Vec3{X: 1}
	West  = Vec3{X: -1}
)

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// IsHorizontal возвращает true для смещений без вертикальной составляющей.
func (v Vec3) IsHorizontal() bool {
	return v.Y == 0 && (v.X != 0 || v.Z != 0)
}

// Cell — клетка сетки конкретного мира. Значимый тип, сравнимый
// и пригодный как ключ map.
type Cell struct {
	World string
	X     int
	Y     int
	Z     int
}

// At создаёт клетку в мире world.
func At(world string, x, y, z int) Cell {
	return Cell{World: world, X: x, Y: y, Z: z}
}

// Pos возвращает координаты клетки без мира.
func (c Cell) Pos() Vec3 {
	return Vec3{X: c.X, Y: c.Y, Z: c.Z}
}

// Add сдвигает клетку на вектор, оставаясь в том же мире.
func (c Cell) Add(d Vec3) Cell {
	return Cell{World: c.World, X: c.X + d.X, Y: c.Y + d.Y, Z: c.Z + d.Z}
}

// Up возвращает клетку над текущей.
func (c Cell) Up() Cell { return c.Add(Up) }

// Down возвращает клетку под текущей.
func (c Cell) Down() Cell { return c.Add(Down) }

// Column возвращает координаты колонки (X, Z).
func (c Cell) Column() Vec2 {
	return Vec2{X: c.X, Y: c.Z}
}

// Less задаёт детерминированный порядок клеток: мир, Y, Z, X.
func (c Cell) Less(o Cell) bool {
	if c.World != o.World {
		return c.World < o.World
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	if c.Z != o.Z {
		return c.Z < o.Z
	}
	return c.X < o.X
}

func (c Cell) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", c.World, c.X, c.Y, c.Z)
}
