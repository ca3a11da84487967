package block

// ItemKind — тип предмета, выдаваемого или выбрасываемого в мир.
type ItemKind string

const (
	ItemGunpowder ItemKind = "gunpowder"
	ItemString    ItemKind = "string" // Выпадает из разрушенной растяжки
)
