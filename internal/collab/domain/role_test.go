package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeRoleKnown(t *testing.T) {
	info := DescribeRole("ticketing")
	assert.True(t, info.Known)
	assert.Equal(t, "Ticketing", info.Label)
	assert.Equal(t, "blue", info.Color)
}

func TestDescribeRoleFallsBackToRawValue(t *testing.T) {
	for _, raw := range []string{"stage_manager", "ADMIN", "", "vip host"} {
		info := DescribeRole(raw)
		assert.False(t, info.Known, raw)
		assert.Equal(t, raw, info.Label)
		assert.Equal(t, NeutralRoleColor, info.Color)
		assert.NotEmpty(t, info.Description)
	}
}

func TestEmailLabel(t *testing.T) {
	assert.Equal(t, "Check-in — scan tickets and manage guest check-in", EmailLabel("check_in"))
	assert.Equal(t, "Stage Manager", EmailLabel("stage_manager"))
	assert.Equal(t, "Collaborator", EmailLabel("  "))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("view_only"))
	assert.False(t, ValidRole("owner"))
}

func TestFormatEventDate(t *testing.T) {
	assert.Equal(t, "Saturday, March 1, 2025", FormatEventDate("2025-03-01"))
	assert.Equal(t, "Saturday, March 1, 2025", FormatEventDate("2025-03-01T18:30:00Z"))
	assert.Equal(t, "sometime soon", FormatEventDate("sometime soon"))
}
