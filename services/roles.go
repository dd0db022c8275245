package services

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/qianlnk/werewolf-session/models"
)

// MinPlayers 最少人数，包含法官
const MinPlayers = 4

// Shuffler 角色分配需要的随机源，*rand.Rand 即可满足
type Shuffler interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRandom 使用 crypto/rand 作为种子的伪随机数生成器
func NewRandom() Shuffler {
	var b [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return rand.New(rand.NewSource(seed))
}

// specialRoleThresholds 各神职加入游戏所需的总人数（包含法官）
var specialRoleThresholds = []struct {
	role     models.SpecialRole
	minTotal int
}{
	{models.Seer, 6},
	{models.Witch, 7},
	{models.Hunter, 8},
	{models.Cupid, 10},
}

// RoleAssignment 开局时单个玩家分到的身份
type RoleAssignment struct {
	Role          models.Role
	SpecialRole   models.SpecialRole
	LinkedPartner string
}

// WerewolfCount n 名非法官玩家中狼人的数量
func WerewolfCount(n int) int {
	return max(1, n/3)
}

// SpecialRoles 按总人数返回本局的神职
func SpecialRoles(total int) []models.SpecialRole {
	roles := make([]models.SpecialRole, 0, len(specialRoleThresholds))
	for _, t := range specialRoleThresholds {
		if total >= t.minTotal {
			roles = append(roles, t.role)
		}
	}
	return roles
}

// AssignRoles 为每个玩家分配身份
// 法官固定为 Narrator；其余玩家随机洗牌分为狼人和好人，神职再从好人中均匀抽取
func AssignRoles(participants []models.Participant, narratorID string, rnd Shuffler) (map[string]RoleAssignment, error) {
	if len(participants) < MinPlayers {
		return nil, fmt.Errorf("%w: 至少需要 %d 人，当前 %d 人", ErrInsufficientPlayers, MinPlayers, len(participants))
	}

	players := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.ID != narratorID {
			players = append(players, p.ID)
		}
	}

	assignment := make(map[string]RoleAssignment, len(participants))
	assignment[narratorID] = RoleAssignment{Role: models.Narrator}

	// 洗牌后前 wolves 个为狼人
	order := permutation(len(players), rnd)
	wolves := WerewolfCount(len(players))
	villagers := make([]string, 0, len(players)-wolves)
	for i, idx := range order {
		id := players[idx]
		if i < wolves {
			assignment[id] = RoleAssignment{Role: models.Werewolf}
			continue
		}
		assignment[id] = RoleAssignment{Role: models.Villager}
		villagers = append(villagers, id)
	}

	// 神职分配给随机抽取的好人
	specials := SpecialRoles(len(participants))
	rnd.Shuffle(len(specials), func(i, j int) {
		specials[i], specials[j] = specials[j], specials[i]
	})
	holders := permutation(len(villagers), rnd)
	cupid := ""
	for i, special := range specials {
		if i >= len(holders) {
			break
		}
		id := villagers[holders[i]]
		a := assignment[id]
		a.SpecialRole = special
		assignment[id] = a
		if special == models.Cupid {
			cupid = id
		}
	}

	if cupid != "" {
		linkLovers(players, cupid, assignment, rnd)
	}
	return assignment, nil
}

// linkLovers 丘比特连接两名不同的非丘比特玩家
func linkLovers(players []string, cupid string, assignment map[string]RoleAssignment, rnd Shuffler) {
	candidates := make([]string, 0, len(players)-1)
	for _, id := range players {
		if id != cupid {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) < 2 {
		return
	}
	order := permutation(len(candidates), rnd)
	first, second := candidates[order[0]], candidates[order[1]]

	a := assignment[first]
	a.LinkedPartner = second
	assignment[first] = a
	b := assignment[second]
	b.LinkedPartner = first
	assignment[second] = b
}

// permutation 返回 0..n-1 的均匀随机排列
func permutation(n int, rnd Shuffler) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rnd.Shuffle(n, func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})
	return idx
}
