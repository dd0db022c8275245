package services

import (
	"fmt"

	"github.com/qianlnk/werewolf-session/models"
)

// SkillManager 技能管理器
type SkillManager struct {
	session *models.Session
}

// NewSkillManager 创建技能管理器实例
func NewSkillManager(session *models.Session) *SkillManager {
	return &SkillManager{session: session}
}

// UseSeerSkill 使用预言家技能，每局只能查验一次
func (sm *SkillManager) UseSeerSkill(seerID, targetID string) (models.Role, error) {
	s := sm.session
	// 验证预言家身份
	seer, err := sm.nightActor(seerID, models.Seer)
	if err != nil {
		return models.NoRole, err
	}
	if seer.Abilities.RevealUsed {
		return models.NoRole, fmt.Errorf("%w: 查验技能已使用", ErrForbidden)
	}
	// 验证目标玩家
	target, err := livingTarget(s, targetID, seerID)
	if err != nil {
		return models.NoRole, err
	}

	// 记录查验结果
	seer.Abilities.RevealUsed = true
	s.Abilities.SeenPlayer = target.ID
	s.Abilities.SeenPlayerRole = target.Role
	return target.Role, nil
}

// UseWitchSave 女巫解药，每局一次，可以救自己
func (sm *SkillManager) UseWitchSave(witchID, targetID string) error {
	s := sm.session
	witch, err := sm.nightActor(witchID, models.Witch)
	if err != nil {
		return err
	}
	if witch.Abilities.SaveUsed {
		return fmt.Errorf("%w: 救人技能已使用", ErrForbidden)
	}
	target, err := livingTarget(s, targetID, "")
	if err != nil {
		return err
	}

	// 记录技能使用，击杀结算时检查保护
	witch.Abilities.SaveUsed = true
	s.Abilities.WitchSaveUsed = true
	s.Abilities.WitchSavedPlayer = target.ID
	return nil
}

// UseWitchKill 女巫毒药，每局一次，目标立即死亡
func (sm *SkillManager) UseWitchKill(witchID, targetID string) error {
	s := sm.session
	witch, err := sm.nightActor(witchID, models.Witch)
	if err != nil {
		return err
	}
	if witch.Abilities.KillUsed {
		return fmt.Errorf("%w: 毒药已使用", ErrForbidden)
	}
	if _, err := livingTarget(s, targetID, witchID); err != nil {
		return err
	}

	witch.Abilities.KillUsed = true
	s.Abilities.WitchKillUsed = true
	resolveDeaths(s, targetID)
	return nil
}

// SelectHunterTarget 猎人选择开枪目标，再次选择同一目标则取消
func (sm *SkillManager) SelectHunterTarget(hunterID, targetID string) error {
	s := sm.session
	if s.Status != models.StatusInProgress {
		return fmt.Errorf("%w: 游戏不在进行中", ErrInvalidPhase)
	}
	// 验证猎人身份：只有待开枪的猎人可以选择
	if s.Reprisal == nil || s.Reprisal.HunterID != hunterID {
		return fmt.Errorf("%w: %s 没有待开的枪", ErrForbidden, hunterID)
	}
	if _, err := livingTarget(s, targetID, hunterID); err != nil {
		return err
	}

	if s.Reprisal.TargetID == targetID {
		s.Reprisal.TargetID = ""
	} else {
		s.Reprisal.TargetID = targetID
	}
	return nil
}

// ConfirmHunterReprisal 法官确认猎人开枪，目标死亡并清除待开枪状态
func (sm *SkillManager) ConfirmHunterReprisal(callerID string) error {
	s := sm.session
	if !s.IsNarrator(callerID) {
		return fmt.Errorf("%w: 只有法官可以确认开枪", ErrForbidden)
	}
	if s.Status != models.StatusInProgress || s.Reprisal == nil {
		return fmt.Errorf("%w: 没有待开的枪", ErrInvalidPhase)
	}
	targetID := s.Reprisal.TargetID
	if targetID == "" {
		return fmt.Errorf("%w: 猎人尚未选择目标", ErrInvalidTarget)
	}
	if _, err := livingTarget(s, targetID, s.Reprisal.HunterID); err != nil {
		return err
	}

	// 处理猎人技能效果
	s.Reprisal = nil
	s.LastReprisalKill = targetID
	resolveDeaths(s, targetID)
	return nil
}

// nightActor 狼人阶段查找存活的技能持有者
func (sm *SkillManager) nightActor(actorID string, special models.SpecialRole) (*models.Participant, error) {
	s := sm.session
	if s.Status != models.StatusInProgress || s.Phase != models.PhaseNightWolves {
		return nil, fmt.Errorf("%w: %s 只能在 %s 阶段行动", ErrInvalidPhase, special, models.PhaseNightWolves)
	}
	actor := s.Participant(actorID)
	if actor == nil {
		return nil, fmt.Errorf("%w: 玩家 %s", ErrNotFound, actorID)
	}
	if actor.SpecialRole != special || !actor.Alive {
		return nil, fmt.Errorf("%w: 不是存活的%s", ErrForbidden, special)
	}
	return actor, nil
}

// resolveDeaths 结算死亡，沿情侣关系连锁直到没有新的死亡
// 猎人死亡且场上还有其他存活玩家时获得一次开枪机会
func resolveDeaths(s *models.Session, ids ...string) []string {
	queue := append([]string(nil), ids...)
	var died []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		p := s.Participant(id)
		if p == nil || !p.Alive || p.Role == models.Narrator {
			continue
		}
		p.Alive = false
		died = append(died, id)
		// 情侣殉情
		if p.LinkedPartner != "" {
			queue = append(queue, p.LinkedPartner)
		}
	}

	for _, id := range died {
		p := s.Participant(id)
		if p.SpecialRole == models.Hunter && s.Reprisal == nil && hasLivingPlayer(s, id) {
			s.Reprisal = &models.Reprisal{HunterID: id}
		}
	}
	return died
}

// 辅助函数：除 exceptID 外是否还有存活玩家
func hasLivingPlayer(s *models.Session, exceptID string) bool {
	for _, p := range s.Participants {
		if p.ID != exceptID && p.Alive && p.Role != models.Narrator {
			return true
		}
	}
	return false
}
