package fuse

import "github.com/annel0/gunpowder/internal/world/block"

// Surroundings — всё, что нужно знать о клетке-кандидате для решения.
type Surroundings struct {
	Target        block.BlockID // Материал самой клетки
	Support       block.BlockID // Материал клетки под ней
	SupportLiquid bool
	NodeAbove     bool
	NodeBelow     bool
	NodeAt        bool
	Authorized    bool
}

// Decision — результат проверки. Reason пуст при Accepted.
type Decision struct {
	Accepted bool
	Reason   Reason
}

func reject(r Reason) Decision { return Decision{Reason: r} }

// Validate решает, можно ли уложить порох. Функция чистая: ничего не меняет.
// Правила проверяются по порядку, побеждает первое нарушенное.
func Validate(s Surroundings, policy block.SupportPolicy) Decision {
	switch {
	case !s.Target.IsAir():
		return reject(ReasonTargetOccupied)
	case s.Support.IsAir() || s.SupportLiquid || s.Support.IsLiquid():
		return reject(ReasonNoSupport)
	case policy.Disallowed(s.Support):
		return reject(ReasonDisallowedSupport)
	case s.NodeAbove || s.NodeBelow:
		return reject(ReasonStacked)
	case s.NodeAt:
		return reject(ReasonDuplicate)
	case !s.Authorized:
		return reject(ReasonUnauthorized)
	}
	return Decision{Accepted: true}
}
