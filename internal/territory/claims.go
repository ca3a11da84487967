// Package territory — приваты: прямоугольные участки мира с владельцем,
// участниками и флагами для посторонних. Служит оракулом прав на укладку
// пороха.
package territory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/gunpowder/internal/vec"
)

// ErrOverlap — участок пересекается с существующим.
var ErrOverlap = errors.New("territory: claim overlaps existing one")

// Flags — что разрешено посторонним на участке.
type Flags struct {
	AllowBuild bool `yaml:"allow_build" json:"allow_build"`
	AllowBreak bool `yaml:"allow_break" json:"allow_break"`
}

// Permissions — итоговые права участника действия в клетке.
type Permissions struct {
	CanBuild bool
	CanBreak bool
}

// WildPermissions — права вне приватов.
func WildPermissions() Permissions {
	return Permissions{CanBuild: true, CanBreak: true}
}

// ForLand вычисляет права на участке для члена или постороннего.
func ForLand(isMember bool, flags Flags) Permissions {
	if isMember {
		return Permissions{CanBuild: true, CanBreak: true}
	}
	return Permissions{CanBuild: flags.AllowBuild, CanBreak: flags.AllowBreak}
}

// Claim — участок на всю высоту мира, границы по X и Z включительно.
type Claim struct {
	ID      string   `yaml:"id" json:"id"`
	World   string   `yaml:"world" json:"world"`
	Owner   string   `yaml:"owner" json:"owner"`
	Members []string `yaml:"members" json:"members"`
	MinX    int      `yaml:"min_x" json:"min_x"`
	MinZ    int      `yaml:"min_z" json:"min_z"`
	MaxX    int      `yaml:"max_x" json:"max_x"`
	MaxZ    int      `yaml:"max_z" json:"max_z"`
	Flags   Flags    `yaml:"flags" json:"flags"`
}

// Contains проверяет, лежит ли клетка на участке.
func (c Claim) Contains(cell vec.Cell) bool {
	return cell.World == c.World &&
		cell.X >= c.MinX && cell.X <= c.MaxX &&
		cell.Z >= c.MinZ && cell.Z <= c.MaxZ
}

// IsMember — владелец или участник.
func (c Claim) IsMember(actor string) bool {
	if actor == c.Owner {
		return true
	}
	for _, m := range c.Members {
		if m == actor {
			return true
		}
	}
	return false
}

func (c Claim) overlaps(o Claim) bool {
	return c.World == o.World &&
		c.MinX <= o.MaxX && o.MinX <= c.MaxX &&
		c.MinZ <= o.MaxZ && o.MinZ <= c.MaxZ
}

func (c Claim) validate() error {
	if c.ID == "" {
		return errors.New("territory: claim id is empty")
	}
	if c.MinX > c.MaxX || c.MinZ > c.MaxZ {
		return fmt.Errorf("territory: claim %s has inverted bounds", c.ID)
	}
	return nil
}

// Claims — набор приватов. Безопасен для конкурентного использования.
type Claims struct {
	mu     sync.RWMutex
	claims map[string]Claim
	admins map[string]struct{}
}

// NewClaims создаёт набор. Администраторы строят везде.
func NewClaims(admins ...string) *Claims {
	c := &Claims{
		claims: make(map[string]Claim),
		admins: make(map[string]struct{}, len(admins)),
	}
	for _, a := range admins {
		c.admins[a] = struct{}{}
	}
	return c
}

// Add добавляет участок. Пересечения запрещены.
func (c *Claims) Add(claim Claim) error {
	if err := claim.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.claims {
		if existing.ID != claim.ID && existing.overlaps(claim) {
			return fmt.Errorf("%s и %s: %w", claim.ID, existing.ID, ErrOverlap)
		}
	}
	c.claims[claim.ID] = claim
	return nil
}

// Remove удаляет участок.
func (c *Claims) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.claims[id]
	delete(c.claims, id)
	return ok
}

// At возвращает участок, которому принадлежит клетка.
func (c *Claims) At(cell vec.Cell) (Claim, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, claim := range c.claims {
		if claim.Contains(cell) {
			return claim, true
		}
	}
	return Claim{}, false
}

// List возвращает участки, отсортированные по ID.
func (c *Claims) List() []Claim {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Claim, 0, len(c.claims))
	for _, claim := range c.claims {
		out = append(out, claim)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PermissionsAt вычисляет права actor в клетке.
func (c *Claims) PermissionsAt(actor string, cell vec.Cell) Permissions {
	c.mu.RLock()
	_, admin := c.admins[actor]
	c.mu.RUnlock()
	if admin {
		return WildPermissions()
	}
	claim, ok := c.At(cell)
	if !ok {
		return WildPermissions()
	}
	return ForLand(claim.IsMember(actor), claim.Flags)
}

// CanBuild реализует оракул прав на укладку пороха.
func (c *Claims) CanBuild(actor string, cell vec.Cell) bool {
	return c.PermissionsAt(actor, cell).CanBuild
}
