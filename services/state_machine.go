package services

import (
	"fmt"

	"github.com/qianlnk/werewolf-session/models"
)

// nextPhase 法官推进的固定阶段顺序：入睡 -> 狼人 -> 讨论 -> 投票 -> 狼人 ...
var nextPhase = map[models.Phase]models.Phase{
	models.PhaseNightSleep:    models.PhaseNightWolves,
	models.PhaseNightWolves:   models.PhaseDayDiscussion,
	models.PhaseDayDiscussion: models.PhaseDayVote,
	models.PhaseDayVote:       models.PhaseNightWolves,
}

// StateMachine 游戏状态机
//
// 所有方法先校验快照再修改，返回错误时对局保持原样。
type StateMachine struct {
	session *models.Session
}

// NewStateMachine 创建状态机实例
func NewStateMachine(session *models.Session) *StateMachine {
	return &StateMachine{session: session}
}

// Start 分配角色并进入入睡阶段
func (sm *StateMachine) Start(callerID string, rnd Shuffler) error {
	s := sm.session
	if !s.IsNarrator(callerID) {
		return fmt.Errorf("%w: 只有法官可以开始游戏", ErrForbidden)
	}
	if s.Status != models.StatusWaiting {
		return ErrAlreadyStarted
	}

	// 分配角色
	assignment, err := AssignRoles(s.Participants, s.NarratorID, rnd)
	if err != nil {
		return err
	}

	for i := range s.Participants {
		p := &s.Participants[i]
		a := assignment[p.ID]
		p.Role = a.Role
		p.SpecialRole = a.SpecialRole
		p.LinkedPartner = a.LinkedPartner
		p.Alive = true
		p.Abilities = models.Abilities{}
	}

	// 进入第一夜之前的入睡阶段
	s.Status = models.StatusInProgress
	s.Phase = models.PhaseNightSleep
	s.Night = 0
	s.NightBallot = Reset()
	s.DayBallot = Reset()
	return nil
}

// Advance 按固定顺序进入下一阶段
func (sm *StateMachine) Advance(callerID string) error {
	next, ok := nextPhase[sm.session.Phase]
	if !ok {
		return fmt.Errorf("%w: %s 之后没有下一阶段", ErrInvalidPhase, sm.session.Phase)
	}
	return sm.TransitionPhase(callerID, next)
}

// TransitionPhase 切换到任意游戏内阶段，并执行进入/离开的副作用
func (sm *StateMachine) TransitionPhase(callerID string, next models.Phase) error {
	s := sm.session
	if !s.IsNarrator(callerID) {
		return fmt.Errorf("%w: 只有法官可以切换阶段", ErrForbidden)
	}
	if err := sm.requireInProgress(); err != nil {
		return err
	}
	if !next.Valid() || next == models.PhaseWaiting {
		return fmt.Errorf("%w: 无法切换到 %q", ErrInvalidPhase, next)
	}
	// 猎人开枪未结算前不能离开当前阶段，只能直接结束
	if s.Reprisal != nil && next != models.PhaseEnded {
		return fmt.Errorf("%w: 猎人尚未开枪", ErrInvalidPhase)
	}

	sm.enter(next)
	return nil
}

// enter 执行阶段切换的副作用
func (sm *StateMachine) enter(next models.Phase) {
	s := sm.session
	prev := s.Phase

	// 进入或离开投票阶段都清空对应票箱
	if prev == models.PhaseNightWolves || next == models.PhaseNightWolves {
		s.NightBallot = Reset()
	}
	if prev == models.PhaseDayVote || next == models.PhaseDayVote {
		s.DayBallot = Reset()
	}

	switch next {
	case models.PhaseNightWolves:
		// 新的一夜；预言家查验结果保留整局
		if prev != models.PhaseNightWolves {
			s.Night++
			s.NightResolved = false
			s.LastNightKill = ""
			s.Abilities.WitchSavedPlayer = ""
		}
	case models.PhaseDayVote:
		s.DayResolved = false
		s.LastDayElimination = ""
	case models.PhaseEnded:
		s.Status = models.StatusFinished
		s.Reprisal = nil
	}
	s.Phase = next
}

// CastNightVote 存活狼人选择一名存活的非狼人玩家
func (sm *StateMachine) CastNightVote(voterID, targetID string) error {
	s := sm.session
	if err := sm.requirePhase(models.PhaseNightWolves); err != nil {
		return err
	}
	voter := s.Participant(voterID)
	if voter == nil {
		return fmt.Errorf("%w: 玩家 %s", ErrNotFound, voterID)
	}
	if voter.Role != models.Werewolf || !voter.Alive {
		return fmt.Errorf("%w: 只有存活的狼人可以夜间投票", ErrForbidden)
	}
	target, err := sm.livingTarget(targetID, voterID)
	if err != nil {
		return err
	}
	if target.Role == models.Werewolf {
		return fmt.Errorf("%w: 狼人不能选择狼人", ErrInvalidTarget)
	}

	s.NightBallot = Toggle(s.NightBallot, voterID, targetID)
	return nil
}

// CastDayVote 任意存活玩家投票给另一名存活玩家
func (sm *StateMachine) CastDayVote(voterID, targetID string) error {
	s := sm.session
	if err := sm.requirePhase(models.PhaseDayVote); err != nil {
		return err
	}
	voter := s.Participant(voterID)
	if voter == nil {
		return fmt.Errorf("%w: 玩家 %s", ErrNotFound, voterID)
	}
	if voter.Role == models.Narrator || !voter.Alive {
		return fmt.Errorf("%w: 只有存活玩家可以投票", ErrForbidden)
	}
	if _, err := sm.livingTarget(targetID, voterID); err != nil {
		return err
	}

	s.DayBallot = Toggle(s.DayBallot, voterID, targetID)
	return nil
}

// ApplyNightKill 法官确认夜间击杀，女巫救下的目标不会死亡
// 无论结果如何都清空夜间票箱
func (sm *StateMachine) ApplyNightKill(callerID, targetID string) error {
	s := sm.session
	if !s.IsNarrator(callerID) {
		return fmt.Errorf("%w: 只有法官可以确认击杀", ErrForbidden)
	}
	if err := sm.requirePhase(models.PhaseNightWolves); err != nil {
		return err
	}
	if s.NightResolved {
		return fmt.Errorf("%w: 今夜击杀已确认", ErrInvalidPhase)
	}
	if _, err := sm.livingTarget(targetID, ""); err != nil {
		return err
	}

	s.NightBallot = Reset()
	s.NightResolved = true
	// 被女巫救下
	if s.Abilities.WitchSavedPlayer == targetID {
		s.LastNightKill = ""
		return nil
	}
	s.LastNightKill = targetID
	resolveDeaths(s, targetID) // 处理情侣殉情和猎人开枪
	return nil
}

// ApplyDayElimination 法官确认放逐，并清空白天票箱
func (sm *StateMachine) ApplyDayElimination(callerID, targetID string) error {
	s := sm.session
	if !s.IsNarrator(callerID) {
		return fmt.Errorf("%w: 只有法官可以确认放逐", ErrForbidden)
	}
	if err := sm.requirePhase(models.PhaseDayVote); err != nil {
		return err
	}
	if s.DayResolved {
		return fmt.Errorf("%w: 本轮放逐已确认", ErrInvalidPhase)
	}
	if _, err := sm.livingTarget(targetID, ""); err != nil {
		return err
	}

	s.DayBallot = Reset()
	s.DayResolved = true
	s.LastDayElimination = targetID
	resolveDeaths(s, targetID)
	return nil
}

// AnnounceDeath 公布昨夜死亡
func (sm *StateMachine) AnnounceDeath(callerID string) error {
	if err := sm.requireNarratorInGame(callerID); err != nil {
		return err
	}
	sm.session.AnnouncedDeath = sm.session.LastNightKill
	return nil
}

// AnnounceElimination 公布白天放逐
func (sm *StateMachine) AnnounceElimination(callerID string) error {
	if err := sm.requireNarratorInGame(callerID); err != nil {
		return err
	}
	sm.session.AnnouncedElimination = sm.session.LastDayElimination
	return nil
}

// End 任意阶段都可以结束对局
func (sm *StateMachine) End(callerID string, winner models.Faction) error {
	s := sm.session
	if !s.IsNarrator(callerID) {
		return fmt.Errorf("%w: 只有法官可以结束游戏", ErrForbidden)
	}
	if s.Status == models.StatusFinished {
		return fmt.Errorf("%w: 游戏已经结束", ErrInvalidPhase)
	}
	if !winner.Valid() {
		return fmt.Errorf("%w: 未知阵营 %q", ErrInvalidArgument, winner)
	}

	sm.enter(models.PhaseEnded)
	s.Winner = winner
	return nil
}

func (sm *StateMachine) requireNarratorInGame(callerID string) error {
	if !sm.session.IsNarrator(callerID) {
		return fmt.Errorf("%w: 仅限法官", ErrForbidden)
	}
	return sm.requireInProgress()
}

func (sm *StateMachine) requireInProgress() error {
	switch sm.session.Status {
	case models.StatusWaiting:
		return fmt.Errorf("%w: 游戏尚未开始", ErrInvalidPhase)
	case models.StatusFinished:
		return fmt.Errorf("%w: 游戏已经结束", ErrInvalidPhase)
	}
	return nil
}

func (sm *StateMachine) requirePhase(phase models.Phase) error {
	if err := sm.requireInProgress(); err != nil {
		return err
	}
	if sm.session.Phase != phase {
		return fmt.Errorf("%w: 需要 %s，当前为 %s", ErrInvalidPhase, phase, sm.session.Phase)
	}
	return nil
}

// livingTarget 查找存活、非法官且不是 selfID 本人的目标
func (sm *StateMachine) livingTarget(targetID, selfID string) (*models.Participant, error) {
	return livingTarget(sm.session, targetID, selfID)
}

func livingTarget(s *models.Session, targetID, selfID string) (*models.Participant, error) {
	target := s.Participant(targetID)
	switch {
	case target == nil:
		return nil, fmt.Errorf("%w: 玩家 %s 不存在", ErrInvalidTarget, targetID)
	case target.Role == models.Narrator:
		return nil, fmt.Errorf("%w: 不能选择法官", ErrInvalidTarget)
	case !target.Alive:
		return nil, fmt.Errorf("%w: %s 已死亡", ErrInvalidTarget, targetID)
	case selfID != "" && targetID == selfID:
		return nil, fmt.Errorf("%w: 不能选择自己", ErrInvalidTarget)
	}
	return target, nil
}

// FactionCounts 各阵营存活人数
type FactionCounts struct {
	Werewolves int `json:"werewolves"`
	Villagers  int `json:"villagers"`
}

// CountFactions 统计存活的狼人和好人，不判定胜负，胜负由法官宣布
func CountFactions(s *models.Session) FactionCounts {
	var counts FactionCounts
	for _, p := range s.Participants {
		if !p.Alive {
			continue
		}
		switch p.Role {
		case models.Werewolf:
			counts.Werewolves++
		case models.Villager:
			counts.Villagers++
		}
	}
	return counts
}
