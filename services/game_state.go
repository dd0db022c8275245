package services

import (
	"time"

	"github.com/qianlnk/werewolf-session/models"
)

// 可执行动作，返回在 SessionView.Actions 中
const (
	ActionJoin                = "join"
	ActionLeave               = "leave"
	ActionStart               = "start"
	ActionChangePhase         = "change_phase"
	ActionNightVote           = "night_vote"
	ActionDayVote             = "day_vote"
	ActionNightKill           = "apply_night_kill"
	ActionDayElimination      = "apply_day_elimination"
	ActionAnnounceDeath       = "announce_death"
	ActionAnnounceElimination = "announce_elimination"
	ActionSeerReveal          = "seer_reveal"
	ActionWitchSave           = "witch_save"
	ActionWitchKill           = "witch_kill"
	ActionHunterSelect        = "hunter_select"
	ActionConfirmReprisal     = "confirm_reprisal"
	ActionEnd                 = "end"
	ActionRoleChat            = "role_chat"
)

// ParticipantView 玩家在某个观察者眼中的信息
type ParticipantView struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Role          models.Role        `json:"role,omitempty"`
	SpecialRole   models.SpecialRole `json:"special_role,omitempty"`
	Alive         bool               `json:"alive"`
	LinkedPartner string             `json:"linked_partner,omitempty"`
	JoinedAt      time.Time          `json:"joined_at"`
}

// SessionView 对局在某个观察者眼中的状态
type SessionView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	JoinCode     string            `json:"join_code"`
	NarratorID   string            `json:"narrator_id"`
	Capacity     int               `json:"capacity"`
	Status       models.Status     `json:"status"`
	Phase        models.Phase      `json:"phase"`
	Night        int               `json:"night"`
	Participants []ParticipantView `json:"participants"`

	NightTally map[string]int   `json:"night_tally,omitempty"`
	DayBallot  models.Ballot    `json:"day_ballot,omitempty"`
	DayTally   map[string]int   `json:"day_tally,omitempty"`
	Factions   *FactionCounts   `json:"factions,omitempty"`
	Reprisal   *models.Reprisal `json:"reprisal,omitempty"`

	LastNightKill        string `json:"last_night_kill,omitempty"`
	LastDayElimination   string `json:"last_day_elimination,omitempty"`
	AnnouncedDeath       string `json:"announced_death,omitempty"`
	AnnouncedElimination string `json:"announced_elimination,omitempty"`

	SeenPlayer       string      `json:"seen_player,omitempty"`
	SeenPlayerRole   models.Role `json:"seen_player_role,omitempty"`
	WitchSavedPlayer string      `json:"witch_saved_player,omitempty"`

	Winner  models.Faction `json:"winner,omitempty"`
	Version int64          `json:"version"`
	Actions []string       `json:"actions"`
}

// NewSessionView 生成 viewerID 视角的对局，隐藏其不应知道的信息
func NewSessionView(s *models.Session, viewerID string) *SessionView {
	viewer := s.Participant(viewerID)
	narrator := s.IsNarrator(viewerID)
	finished := s.Status == models.StatusFinished
	wolf := viewer != nil && viewer.Role == models.Werewolf

	v := &SessionView{
		ID:                   s.ID,
		Name:                 s.Name,
		JoinCode:             s.JoinCode,
		NarratorID:           s.NarratorID,
		Capacity:             s.Capacity,
		Status:               s.Status,
		Phase:                s.Phase,
		Night:                s.Night,
		Participants:         make([]ParticipantView, 0, len(s.Participants)),
		DayBallot:            s.DayBallot.Clone(),
		DayTally:             Tally(s.DayBallot),
		AnnouncedDeath:       s.AnnouncedDeath,
		AnnouncedElimination: s.AnnouncedElimination,
		Winner:               s.Winner,
		Version:              s.Version,
	}

	// 复制一份，避免视图与对局共享指针
	if s.Reprisal != nil {
		r := *s.Reprisal
		v.Reprisal = &r
	}

	for _, p := range s.Participants {
		pv := ParticipantView{ID: p.ID, Name: p.Name, Alive: p.Alive, JoinedAt: p.JoinedAt}
		self := p.ID == viewerID
		// 法官、自己、游戏结束后可见全部身份；狼人互相可见
		switch {
		case narrator, finished, self:
			pv.Role = p.Role
			pv.SpecialRole = p.SpecialRole
			pv.LinkedPartner = p.LinkedPartner
		case p.Role == models.Narrator:
			pv.Role = p.Role
		case wolf && p.Role == models.Werewolf:
			pv.Role = p.Role
		}
		// 情侣只对彼此可见
		if viewer != nil && viewer.LinkedPartner == p.ID {
			pv.LinkedPartner = viewer.ID
		}
		v.Participants = append(v.Participants, pv)
	}

	if narrator || wolf || finished {
		v.NightTally = Tally(s.NightBallot)
	}
	if narrator || finished {
		counts := CountFactions(s)
		v.Factions = &counts
		v.LastNightKill = s.LastNightKill
		v.LastDayElimination = s.LastDayElimination
	}
	if narrator || finished || (viewer != nil && viewer.SpecialRole == models.Seer) {
		v.SeenPlayer = s.Abilities.SeenPlayer
		v.SeenPlayerRole = s.Abilities.SeenPlayerRole
	}
	if narrator || finished || (viewer != nil && viewer.SpecialRole == models.Witch) {
		v.WitchSavedPlayer = s.Abilities.WitchSavedPlayer
	}

	v.Actions = availableActions(s, viewer)
	return v
}

// availableActions 获取玩家当前可执行的动作
func availableActions(s *models.Session, viewer *models.Participant) []string {
	actions := make([]string, 0)

	// 未加入的玩家只能加入
	if viewer == nil {
		if s.Status == models.StatusWaiting && len(s.Participants) < s.Capacity {
			actions = append(actions, ActionJoin)
		}
		return actions
	}

	// 法官
	if s.IsNarrator(viewer.ID) {
		actions = append(actions, ActionLeave)
		switch s.Status {
		case models.StatusWaiting:
			if len(s.Participants) >= MinPlayers {
				actions = append(actions, ActionStart)
			}
		case models.StatusInProgress:
			if s.Reprisal == nil {
				actions = append(actions, ActionChangePhase)
			} else if s.Reprisal.TargetID != "" {
				actions = append(actions, ActionConfirmReprisal)
			}
			if s.Phase == models.PhaseNightWolves && !s.NightResolved {
				actions = append(actions, ActionNightKill)
			}
			if s.Phase == models.PhaseDayVote && !s.DayResolved {
				actions = append(actions, ActionDayElimination)
			}
			actions = append(actions, ActionAnnounceDeath, ActionAnnounceElimination, ActionRoleChat, ActionEnd)
		}
		return actions
	}

	switch s.Status {
	case models.StatusWaiting:
		return append(actions, ActionLeave)
	case models.StatusFinished:
		return actions
	}

	if s.Reprisal != nil && s.Reprisal.HunterID == viewer.ID {
		actions = append(actions, ActionHunterSelect)
	}
	// 死亡玩家除猎人开枪外没有动作
	if !viewer.Alive {
		return actions
	}

	switch s.Phase {
	case models.PhaseNightWolves:
		if viewer.Role == models.Werewolf {
			actions = append(actions, ActionNightVote)
		}
		switch viewer.SpecialRole {
		case models.Seer:
			if !viewer.Abilities.RevealUsed {
				actions = append(actions, ActionSeerReveal)
			}
		case models.Witch:
			if !viewer.Abilities.SaveUsed {
				actions = append(actions, ActionWitchSave)
			}
			if !viewer.Abilities.KillUsed {
				actions = append(actions, ActionWitchKill)
			}
		}
	case models.PhaseDayVote:
		actions = append(actions, ActionDayVote)
	}
	if viewer.Role == models.Werewolf {
		actions = append(actions, ActionRoleChat)
	}
	return actions
}
