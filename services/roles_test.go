package services

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qianlnk/werewolf-session/models"
)

func testParticipants(total int) []models.Participant {
	ps := []models.Participant{{ID: "narrator", Alive: true}}
	for i := 1; i < total; i++ {
		ps = append(ps, models.Participant{ID: fmt.Sprintf("p%d", i), Alive: true})
	}
	return ps
}

func TestSpecialRoles(t *testing.T) {
	tests := []struct {
		total int
		want  []models.SpecialRole
	}{
		{4, []models.SpecialRole{}},
		{5, []models.SpecialRole{}},
		{6, []models.SpecialRole{models.Seer}},
		{7, []models.SpecialRole{models.Seer, models.Witch}},
		{8, []models.SpecialRole{models.Seer, models.Witch, models.Hunter}},
		{9, []models.SpecialRole{models.Seer, models.Witch, models.Hunter}},
		{10, []models.SpecialRole{models.Seer, models.Witch, models.Hunter, models.Cupid}},
		{20, []models.SpecialRole{models.Seer, models.Witch, models.Hunter, models.Cupid}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SpecialRoles(tt.total), "total %d", tt.total)
	}
}

func TestAssignRolesCounts(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for total := MinPlayers; total <= MaxCapacity; total++ {
		t.Run(fmt.Sprintf("total=%d", total), func(t *testing.T) {
			got, err := AssignRoles(testParticipants(total), "narrator", rnd)
			require.NoError(t, err)
			require.Len(t, got, total)

			roles := map[models.Role]int{}
			specials := map[models.SpecialRole]int{}
			for id, a := range got {
				roles[a.Role]++
				if a.SpecialRole != models.NoSpecialRole {
					specials[a.SpecialRole]++
					assert.Equal(t, models.Villager, a.Role, "%s holds %s", id, a.SpecialRole)
				}
			}

			assert.Equal(t, models.Narrator, got["narrator"].Role)
			assert.Equal(t, 1, roles[models.Narrator])
			assert.Equal(t, max(1, (total-1)/3), roles[models.Werewolf])
			assert.Equal(t, total-1-roles[models.Werewolf], roles[models.Villager])

			want := SpecialRoles(total)
			assert.Len(t, specials, len(want))
			for _, sr := range want {
				assert.Equal(t, 1, specials[sr])
			}
		})
	}
}

func TestAssignRolesSixPlayers(t *testing.T) {
	got, err := AssignRoles(testParticipants(6), "narrator", rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	var wolves, seers int
	for _, a := range got {
		if a.Role == models.Werewolf {
			wolves++
		}
		if a.SpecialRole == models.Seer {
			seers++
		}
	}
	assert.Equal(t, 1, wolves)
	assert.Equal(t, 1, seers)
}

func TestAssignRolesInsufficientPlayers(t *testing.T) {
	_, err := AssignRoles(testParticipants(3), "narrator", rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrInsufficientPlayers)
}

func TestCupidLinksTwoOtherPlayers(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		got, err := AssignRoles(testParticipants(10+int(seed)%11), "narrator", rand.New(rand.NewSource(seed)))
		require.NoError(t, err)

		var cupid string
		var linked []string
		for id, a := range got {
			if a.SpecialRole == models.Cupid {
				cupid = id
			}
			if a.LinkedPartner != "" {
				linked = append(linked, id)
			}
		}
		require.NotEmpty(t, cupid, "seed %d", seed)
		require.Len(t, linked, 2, "seed %d", seed)

		a, b := linked[0], linked[1]
		assert.NotEqual(t, a, b)
		assert.NotContains(t, linked, cupid)
		assert.NotContains(t, linked, "narrator")
		assert.Equal(t, b, got[a].LinkedPartner)
		assert.Equal(t, a, got[b].LinkedPartner)
	}
}

func TestAssignRolesIsRoughlyUniform(t *testing.T) {
	const runs = 6000
	participants := testParticipants(6)
	rnd := rand.New(rand.NewSource(42))

	wolfHits := map[string]int{}
	seerHits := map[string]int{}
	for i := 0; i < runs; i++ {
		got, err := AssignRoles(participants, "narrator", rnd)
		require.NoError(t, err)
		for id, a := range got {
			if a.Role == models.Werewolf {
				wolfHits[id]++
			}
			if a.SpecialRole == models.Seer {
				seerHits[id]++
			}
		}
	}

	// 5 players, 1 wolf and 1 seer each: expect runs/5 hits per player.
	expected := runs / 5
	for _, p := range participants[1:] {
		assert.InDelta(t, expected, wolfHits[p.ID], float64(expected)/5, "wolf %s", p.ID)
		assert.InDelta(t, expected, seerHits[p.ID], float64(expected)/5, "seer %s", p.ID)
	}
	assert.Zero(t, wolfHits["narrator"])
}
