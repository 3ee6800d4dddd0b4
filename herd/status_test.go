package herd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manfad/cowcard/herd"
)

func TestPdStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    herd.PdStatus
		to      herd.PdStatus
		allowed bool
	}{
		{"new to pending", herd.PdStatusNew, herd.PdStatusPending, true},
		{"new cannot skip to pregnant", herd.PdStatusNew, herd.PdStatusPregnant, false},
		{"pending to pregnant", herd.PdStatusPending, herd.PdStatusPregnant, true},
		{"pending to no-pregnant", herd.PdStatusPending, herd.PdStatusNoPregnant, true},
		{"pending to failed", herd.PdStatusPending, herd.PdStatusFailed, true},
		{"pending cannot jump to complete", herd.PdStatusPending, herd.PdStatusComplete, false},
		{"pregnant to late gestation", herd.PdStatusPregnant, herd.PdStatusLateGestation, true},
		{"pregnant cannot go back to pending", herd.PdStatusPregnant, herd.PdStatusPending, false},
		{"late gestation to gestation", herd.PdStatusLateGestation, herd.PdStatusGestation, true},
		{"late gestation to complete", herd.PdStatusLateGestation, herd.PdStatusComplete, true},
		{"late gestation to still birth", herd.PdStatusLateGestation, herd.PdStatusStillBirth, true},
		{"complete is terminal", herd.PdStatusComplete, herd.PdStatusPending, false},
		{"failed is terminal", herd.PdStatusFailed, herd.PdStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestPdStatus_TerminalStates(t *testing.T) {
	for _, s := range []herd.PdStatus{
		herd.PdStatusFailed, herd.PdStatusNoPregnant, herd.PdStatusGestation,
		herd.PdStatusComplete, herd.PdStatusStillBirth,
	} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []herd.PdStatus{
		herd.PdStatusNew, herd.PdStatusPending, herd.PdStatusPregnant, herd.PdStatusLateGestation,
	} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestAiStatus_OnlyPendingMoves(t *testing.T) {
	assert.True(t, herd.AiStatusPending.CanTransitionTo(herd.AiStatusSuccess))
	assert.True(t, herd.AiStatusPending.CanTransitionTo(herd.AiStatusFailed))
	assert.False(t, herd.AiStatusSuccess.CanTransitionTo(herd.AiStatusFailed))
	assert.False(t, herd.AiStatusFailed.CanTransitionTo(herd.AiStatusSuccess))
	assert.False(t, herd.AiStatusPending.CanTransitionTo(herd.AiStatusPending))
}

func TestCowRole_GenderRules(t *testing.T) {
	assert.True(t, herd.RoleDam.AllowsGender(herd.GenderFemale))
	assert.False(t, herd.RoleDam.AllowsGender(herd.GenderMale))
	assert.True(t, herd.RoleSire.AllowsGender(herd.GenderMale))
	assert.False(t, herd.RoleSire.AllowsGender(herd.GenderFemale))
	assert.True(t, herd.RoleCalf.AllowsGender(herd.GenderFemale))
	assert.True(t, herd.RoleCalf.AllowsGender(herd.GenderMale))
}

func TestCowStatus_RoleRules(t *testing.T) {
	assert.True(t, herd.CowStatusNewBorn.AllowsRole(herd.RoleCalf))
	assert.False(t, herd.CowStatusNewBorn.AllowsRole(herd.RoleDam))
	assert.True(t, herd.CowStatusActive.AllowsRole(herd.RoleDam))
	assert.False(t, herd.CowStatusActive.AllowsRole(herd.RoleCalf))
	assert.True(t, herd.CowStatusCull.AllowsRole(herd.RoleCalf))
	assert.True(t, herd.CowStatusDead.AllowsRole(herd.RoleSire))
}
