package block

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID    BlockID = iota // 0
	StoneBlockID                 // 1
	GrassBlockID                 // 2
	WaterBlockID                 // 3
	SandBlockID                  // 4
	DirtBlockID                  // 5
	LavaBlockID                  // 6
	GravelBlockID                // 7
	PlanksBlockID                // 8
	CobbleBlockID                // 9

	// Растительность (начиная с 100)
	PoppyBlockID          BlockID = 100
	DandelionBlockID      BlockID = 101
	BlueOrchidBlockID     BlockID = 102
	AlliumBlockID         BlockID = 103
	AzureBluetBlockID     BlockID = 104
	OxeyeDaisyBlockID     BlockID = 105
	LilyOfTheValleyID     BlockID = 106
	CornflowerBlockID     BlockID = 107
	WitherRoseBlockID     BlockID = 108
	SunflowerBlockID      BlockID = 109
	LilacBlockID          BlockID = 110
	RoseBushBlockID       BlockID = 111
	PeonyBlockID          BlockID = 112
	TorchflowerBlockID    BlockID = 113
	PitcherPlantBlockID   BlockID = 114
	SporeBlossomBlockID   BlockID = 115
	OakLeavesBlockID      BlockID = 130
	BirchLeavesBlockID    BlockID = 131
	SpruceLeavesBlockID   BlockID = 132
	AzaleaLeavesBlockID   BlockID = 133
	TallGrassBlockID      BlockID = 150
	ShortGrassBlockID     BlockID = 151
	FernBlockID           BlockID = 152
	LargeFernBlockID      BlockID = 153
	DeadBushBlockID       BlockID = 154
	VineBlockID           BlockID = 155
	SweetBerryBushID      BlockID = 156
	CaveVinesBlockID      BlockID = 157
	CaveVinesPlantID      BlockID = 158
	LeafLitterBlockID     BlockID = 159
	MossCarpetBlockID     BlockID = 160
	AzaleaBlockID         BlockID = 161
	FloweringAzaleaID     BlockID = 162
	SugarCaneBlockID      BlockID = 163
	BambooBlockID         BlockID = 164
	KelpBlockID           BlockID = 165
	SeagrassBlockID       BlockID = 166
	TwistingVinesBlockID  BlockID = 167
	WeepingVinesBlockID   BlockID = 168
	NetherSproutsBlockID  BlockID = 169
	ShroomlightBlockID    BlockID = 170
	OakSaplingBlockID     BlockID = 171
	CactusBlockID         BlockID = 172

	// Специальные блоки (начиная с 1000)
	FuseBlockID BlockID = 1000 // Уложенный порох (растяжка без крючков)
	TNTBlockID  BlockID = 1001 // Взрывчатка
)

func init() {
	solid := []Material{
		{StoneBlockID, "stone", CategorySolid},
		{GrassBlockID, "grass_block", CategorySolid},
		{SandBlockID, "sand", CategorySolid},
		{DirtBlockID, "dirt", CategorySolid},
		{GravelBlockID, "gravel", CategorySolid},
		{PlanksBlockID, "oak_planks", CategorySolid},
		{CobbleBlockID, "cobblestone", CategorySolid},
	}
	flowers := []Material{
		{PoppyBlockID, "poppy", CategoryFlower},
		{DandelionBlockID, "dandelion", CategoryFlower},
		{BlueOrchidBlockID, "blue_orchid", CategoryFlower},
		{AlliumBlockID, "allium", CategoryFlower},
		{AzureBluetBlockID, "azure_bluet", CategoryFlower},
		{OxeyeDaisyBlockID, "oxeye_daisy", CategoryFlower},
		{LilyOfTheValleyID, "lily_of_the_valley", CategoryFlower},
		{CornflowerBlockID, "cornflower", CategoryFlower},
		{WitherRoseBlockID, "wither_rose", CategoryFlower},
		{SunflowerBlockID, "sunflower", CategoryFlower},
		{LilacBlockID, "lilac", CategoryFlower},
		{RoseBushBlockID, "rose_bush", CategoryFlower},
		{PeonyBlockID, "peony", CategoryFlower},
		{TorchflowerBlockID, "torchflower", CategoryFlower},
		{PitcherPlantBlockID, "pitcher_plant", CategoryFlower},
		{SporeBlossomBlockID, "spore_blossom", CategoryFlower},
	}
	leaves := []Material{
		{OakLeavesBlockID, "oak_leaves", CategoryLeaves},
		{BirchLeavesBlockID, "birch_leaves", CategoryLeaves},
		{SpruceLeavesBlockID, "spruce_leaves", CategoryLeaves},
		{AzaleaLeavesBlockID, "azalea_leaves", CategoryLeaves},
	}
	plants := []Material{
		{TallGrassBlockID, "tall_grass", CategoryPlant},
		{ShortGrassBlockID, "short_grass", CategoryPlant},
		{FernBlockID, "fern", CategoryPlant},
		{LargeFernBlockID, "large_fern", CategoryPlant},
		{DeadBushBlockID, "dead_bush", CategoryPlant},
		{VineBlockID, "vine", CategoryPlant},
		{SweetBerryBushID, "sweet_berry_bush", CategoryPlant},
		{CaveVinesBlockID, "cave_vines", CategoryPlant},
		{CaveVinesPlantID, "cave_vines_plant", CategoryPlant},
		{LeafLitterBlockID, "leaf_litter", CategoryPlant},
		{MossCarpetBlockID, "moss_carpet", CategoryPlant},
		{AzaleaBlockID, "azalea", CategoryPlant},
		{FloweringAzaleaID, "flowering_azalea", CategoryPlant},
		{SugarCaneBlockID, "sugar_cane", CategoryPlant},
		{BambooBlockID, "bamboo", CategoryPlant},
		{KelpBlockID, "kelp", CategoryPlant},
		{SeagrassBlockID, "seagrass", CategoryPlant},
		{TwistingVinesBlockID, "twisting_vines", CategoryPlant},
		{WeepingVinesBlockID, "weeping_vines", CategoryPlant},
		{NetherSproutsBlockID, "nether_sprouts", CategoryPlant},
		{ShroomlightBlockID, "shroomlight", CategoryPlant},
		{OakSaplingBlockID, "oak_sapling", CategoryPlant},
	}

	Register(Material{AirBlockID, "air", CategoryAir})
	Register(Material{WaterBlockID, "water", CategoryLiquid})
	Register(Material{LavaBlockID, "lava", CategoryLiquid})
	// Кактус твёрдый, но порох на нём не держится — решается через SupportPolicy.
	Register(Material{CactusBlockID, "cactus", CategorySolid})
	Register(Material{FuseBlockID, "gunpowder_trail", CategoryFuse})
	Register(Material{TNTBlockID, "tnt", CategorySolid | CategoryVolatile})

	for _, group := range [][]Material{solid, flowers, leaves, plants} {
		for _, m := range group {
			Register(m)
		}
	}
}
