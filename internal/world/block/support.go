package block

// disallowedCategories — категории, на которых порох не держится.
const disallowedCategories = CategoryAir | CategoryLiquid | CategoryFlower | CategoryLeaves | CategoryPlant

// DisallowedSupport сообщает, входит ли материал в неизменяемый набор
// запрещённых опор.
func DisallowedSupport(id BlockID) bool {
	if id.IsAir() {
		return true
	}
	m, ok := Get(id)
	if !ok {
		return false
	}
	return m.Is(disallowedCategories)
}

// SupportPolicy — набор запрещённых опор с дополнениями из конфигурации.
// Дополнения только расширяют базовый набор.
type SupportPolicy struct {
	extra map[BlockID]struct{}
}

// NewSupportPolicy создаёт политику с дополнительными запрещёнными материалами.
func NewSupportPolicy(extra ...BlockID) SupportPolicy {
	p := SupportPolicy{extra: make(map[BlockID]struct{}, len(extra))}
	for _, id := range extra {
		p.extra[id] = struct{}{}
	}
	return p
}

// SupportPolicyFromNames строит политику по именам материалов из конфигурации.
func SupportPolicyFromNames(names []string) (SupportPolicy, error) {
	ids := make([]BlockID, 0, len(names))
	for _, n := range names {
		id, err := Lookup(n)
		if err != nil {
			return SupportPolicy{}, err
		}
		ids = append(ids, id)
	}
	return NewSupportPolicy(ids...), nil
}

// Disallowed проверяет материал опоры.
func (p SupportPolicy) Disallowed(id BlockID) bool {
	if DisallowedSupport(id) {
		return true
	}
	_, ok := p.extra[id]
	return ok
}
