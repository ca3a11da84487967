package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisallowedSupport_BaseSet(t *testing.T) {
	disallowed := []BlockID{
		AirBlockID, WaterBlockID, LavaBlockID,
		PoppyBlockID, DandelionBlockID, OakLeavesBlockID,
		TallGrassBlockID, VineBlockID, OakSaplingBlockID, KelpBlockID, ShroomlightBlockID,
	}
	for _, id := range disallowed {
		assert.True(t, DisallowedSupport(id), "%s должен быть запрещённой опорой", id.Name())
	}

	allowed := []BlockID{StoneBlockID, GrassBlockID, DirtBlockID, SandBlockID, TNTBlockID, CactusBlockID}
	for _, id := range allowed {
		assert.False(t, DisallowedSupport(id), "%s должен держать порох", id.Name())
	}
}

func TestSupportPolicy_ExtraOnlyExtends(t *testing.T) {
	p, err := SupportPolicyFromNames([]string{"CACTUS", " sand "})
	require.NoError(t, err)

	assert.True(t, p.Disallowed(CactusBlockID))
	assert.True(t, p.Disallowed(SandBlockID))
	assert.True(t, p.Disallowed(PoppyBlockID), "Базовый набор сохраняется")
	assert.False(t, p.Disallowed(StoneBlockID))
}

func TestSupportPolicy_UnknownName(t *testing.T) {
	_, err := SupportPolicyFromNames([]string{"unobtainium"})
	assert.Error(t, err)
}

func TestZeroPolicy(t *testing.T) {
	var p SupportPolicy
	assert.True(t, p.Disallowed(AirBlockID))
	assert.False(t, p.Disallowed(StoneBlockID))
}

func TestMaterialCategories(t *testing.T) {
	assert.True(t, WaterBlockID.IsLiquid())
	assert.False(t, StoneBlockID.IsLiquid())
	assert.True(t, TNTBlockID.IsVolatile())
	assert.False(t, FuseBlockID.IsVolatile())
	assert.Equal(t, "gunpowder_trail", FuseBlockID.Name())
	assert.Equal(t, "unknown(9999)", BlockID(9999).Name())
}
