package models

import "time"

// Role 主身份
type Role string

const (
	NoRole   Role = ""
	Narrator Role = "narrator" // 法官
	Werewolf Role = "werewolf" // 狼人
	Villager Role = "villager" // 村民
)

// SpecialRole 叠加在村民身份之上的技能身份
type SpecialRole string

const (
	NoSpecialRole SpecialRole = ""
	Seer          SpecialRole = "seer"   // 预言家
	Witch         SpecialRole = "witch"  // 女巫
	Hunter        SpecialRole = "hunter" // 猎人
	Cupid         SpecialRole = "cupid"  // 丘比特
)

// Status 对局状态
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusFinished   Status = "finished"
)

// Phase 对局阶段
type Phase string

const (
	PhaseWaiting       Phase = "waiting"
	PhaseNightSleep    Phase = "night-sleep"
	PhaseNightWolves   Phase = "night-wolves"
	PhaseDayDiscussion Phase = "day-discussion"
	PhaseDayVote       Phase = "day-vote"
	PhaseEnded         Phase = "ended"
)

// Valid 是否为已知阶段
func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseNightSleep, PhaseNightWolves, PhaseDayDiscussion, PhaseDayVote, PhaseEnded:
		return true
	}
	return false
}

// Faction 胜利阵营，由法官宣布
type Faction string

const (
	NoFaction         Faction = ""
	FactionWerewolves Faction = "werewolves"
	FactionVillagers  Faction = "villagers"
	FactionLovers     Faction = "lovers"
)

// Valid 为空或已知阵营
func (f Faction) Valid() bool {
	switch f {
	case NoFaction, FactionWerewolves, FactionVillagers, FactionLovers:
		return true
	}
	return false
}

// Abilities 单个玩家的技能使用记录
type Abilities struct {
	SaveUsed   bool `json:"save_used,omitempty"`   // 解药
	KillUsed   bool `json:"kill_used,omitempty"`   // 毒药
	RevealUsed bool `json:"reveal_used,omitempty"` // 预言家查验
}

// Participant 对局中的玩家
type Participant struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Role          Role        `json:"role,omitempty"`
	SpecialRole   SpecialRole `json:"special_role,omitempty"`
	Alive         bool        `json:"alive"`
	LinkedPartner string      `json:"linked_partner,omitempty"`
	JoinedAt      time.Time   `json:"joined_at"`
	Abilities     Abilities   `json:"abilities"`
}

// Ballot 目标 -> 当前选择该目标的投票者，按投票顺序
type Ballot map[string][]string

// AbilityResults 技能结果，供法官和对应角色查看
type AbilityResults struct {
	SeenPlayer       string `json:"seen_player,omitempty"`
	SeenPlayerRole   Role   `json:"seen_player_role,omitempty"`
	WitchSavedPlayer string `json:"witch_saved_player,omitempty"`
	WitchSaveUsed    bool   `json:"witch_save_used,omitempty"`
	WitchKillUsed    bool   `json:"witch_kill_used,omitempty"`
}

// Reprisal 猎人出局后的开枪选择
type Reprisal struct {
	HunterID string `json:"hunter_id"`
	TargetID string `json:"target_id,omitempty"`
}

// Session 对局
type Session struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	JoinCode     string        `json:"join_code"`
	NarratorID   string        `json:"narrator_id"`
	Capacity     int           `json:"capacity"`
	Status       Status        `json:"status"`
	Phase        Phase         `json:"phase"`
	Night        int           `json:"night"`
	Participants []Participant `json:"participants"`

	NightBallot Ballot `json:"night_ballot"`
	DayBallot   Ballot `json:"day_ballot"`

	NightResolved        bool   `json:"night_resolved,omitempty"`
	DayResolved          bool   `json:"day_resolved,omitempty"`
	LastNightKill        string `json:"last_night_kill,omitempty"`
	LastDayElimination   string `json:"last_day_elimination,omitempty"`
	LastReprisalKill     string `json:"last_reprisal_kill,omitempty"`
	AnnouncedDeath       string `json:"announced_death,omitempty"`
	AnnouncedElimination string `json:"announced_elimination,omitempty"`

	Abilities AbilityResults `json:"abilities"`
	Reprisal  *Reprisal      `json:"reprisal,omitempty"`
	Winner    Faction        `json:"winner,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant 返回指向 s.Participants 的指针，不存在时为 nil
func (s *Session) Participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// IsNarrator 是否为法官
func (s *Session) IsNarrator(id string) bool {
	return id != "" && s.NarratorID == id
}

// Clone 深拷贝对局
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Participants = append([]Participant(nil), s.Participants...)
	c.NightBallot = s.NightBallot.Clone()
	c.DayBallot = s.DayBallot.Clone()
	if s.Reprisal != nil {
		r := *s.Reprisal
		c.Reprisal = &r
	}
	return &c
}

// Clone 深拷贝票箱，nil 得到空票箱
func (b Ballot) Clone() Ballot {
	c := make(Ballot, len(b))
	for target, voters := range b {
		c[target] = append([]string(nil), voters...)
	}
	return c
}

// Message 聊天消息
type Message struct {
	Order      int64     `json:"order"`
	SessionID  string    `json:"session_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	Channel    Channel   `json:"channel"`
	SentAt     time.Time `json:"sent_at"`
}

// Channel 聊天频道
type Channel string

const (
	ChannelGeneral Channel = "general" // 所有人
	ChannelRole    Channel = "role"    // 狼人频道
)
