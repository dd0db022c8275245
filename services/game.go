package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/qianlnk/werewolf-session/models"
	"github.com/qianlnk/werewolf-session/store"
)

var (
	ErrNotFound            = errors.New("对局或玩家不存在")
	ErrForbidden           = errors.New("无权执行该动作")
	ErrInvalidPhase        = errors.New("当前阶段无法执行该动作")
	ErrInsufficientPlayers = errors.New("玩家人数不足")
	ErrFull                = errors.New("房间已满")
	ErrAlreadyStarted      = errors.New("游戏已经开始")
	ErrAlreadyJoined       = errors.New("玩家已在房间中")
	ErrInvalidTarget       = errors.New("无效的目标玩家")
	ErrInvalidArgument     = errors.New("无效的参数")
	ErrConflict            = errors.New("对局已被并发修改，请重试")
	ErrChatUnavailable     = errors.New("聊天服务不可用")
)

// Notifier 接收每次提交后的对局变更通知
//
// 在引擎调用路径上同步执行，实现方不得阻塞（只入队，不做网络写）。
type Notifier interface {
	SessionChanged(session *models.Session)
	SessionDeleted(sessionID string)
}

// GameManager 游戏管理器，每个操作对单个对局做一次读-改-写
type GameManager struct {
	store           store.Store
	notifier        Notifier
	messenger       Messenger
	newRand         func() Shuffler
	now             func() time.Time
	defaultCapacity int
}

// Option 游戏管理器配置项
type Option func(*GameManager)

// WithNotifier 注册变更监听
func WithNotifier(n Notifier) Option {
	return func(gm *GameManager) { gm.notifier = n }
}

// WithMessenger 设置聊天投递
func WithMessenger(m Messenger) Option {
	return func(gm *GameManager) { gm.messenger = m }
}

// WithRandom 替换随机源，测试时传入固定种子
func WithRandom(newRand func() Shuffler) Option {
	return func(gm *GameManager) { gm.newRand = newRand }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(gm *GameManager) { gm.now = now }
}

// WithDefaultCapacity 创建对局时容量为0所使用的默认值
func WithDefaultCapacity(capacity int) Option {
	return func(gm *GameManager) { gm.defaultCapacity = capacity }
}

// NewGameManager 创建游戏管理器实例
func NewGameManager(st store.Store, opts ...Option) *GameManager {
	gm := &GameManager{
		store:           st,
		newRand:         NewRandom,
		now:             time.Now,
		defaultCapacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(gm)
	}
	return gm
}

// Session 返回未脱敏的对局文档
func (gm *GameManager) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	return gm.load(ctx, sessionID)
}

// View 返回指定观察者视角下的对局
func (gm *GameManager) View(ctx context.Context, sessionID, viewerID string) (*SessionView, error) {
	s, err := gm.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return NewSessionView(s, viewerID), nil
}

// FactionCounts 各阵营存活人数
func (gm *GameManager) FactionCounts(ctx context.Context, sessionID string) (FactionCounts, error) {
	s, err := gm.load(ctx, sessionID)
	if err != nil {
		return FactionCounts{}, err
	}
	return CountFactions(s), nil
}

// StartSession 分配角色并进入第一夜
func (gm *GameManager) StartSession(ctx context.Context, sessionID, callerID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).Start(callerID, gm.newRand())
	})
}

// ChangePhase 法官直接切换阶段
func (gm *GameManager) ChangePhase(ctx context.Context, sessionID, callerID string, next models.Phase) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).TransitionPhase(callerID, next)
	})
}

// AdvancePhase 按固定顺序进入下一阶段
func (gm *GameManager) AdvancePhase(ctx context.Context, sessionID, callerID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).Advance(callerID)
	})
}

// CastNightVote 狼人夜间投票（再次点击取消），返回计票
func (gm *GameManager) CastNightVote(ctx context.Context, sessionID, voterID, targetID string) (map[string]int, error) {
	s, err := gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).CastNightVote(voterID, targetID)
	})
	if err != nil {
		return nil, err
	}
	return Tally(s.NightBallot), nil
}

// CastDayVote 白天投票（再次点击取消），返回计票
func (gm *GameManager) CastDayVote(ctx context.Context, sessionID, voterID, targetID string) (map[string]int, error) {
	s, err := gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).CastDayVote(voterID, targetID)
	})
	if err != nil {
		return nil, err
	}
	return Tally(s.DayBallot), nil
}

// ApplyNightKill 法官确认夜间击杀
func (gm *GameManager) ApplyNightKill(ctx context.Context, sessionID, callerID, targetID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).ApplyNightKill(callerID, targetID)
	})
}

// ApplyDayElimination 法官确认白天放逐
func (gm *GameManager) ApplyDayElimination(ctx context.Context, sessionID, callerID, targetID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).ApplyDayElimination(callerID, targetID)
	})
}

// AnnounceDeath 公布昨夜死亡
func (gm *GameManager) AnnounceDeath(ctx context.Context, sessionID, callerID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).AnnounceDeath(callerID)
	})
}

// AnnounceElimination 公布白天放逐
func (gm *GameManager) AnnounceElimination(ctx context.Context, sessionID, callerID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).AnnounceElimination(callerID)
	})
}

// EndSession 结束对局，winner 可以为空
func (gm *GameManager) EndSession(ctx context.Context, sessionID, callerID string, winner models.Faction) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewStateMachine(s).End(callerID, winner)
	})
}

// SeerReveal 预言家查验，返回目标的主身份
func (gm *GameManager) SeerReveal(ctx context.Context, sessionID, seerID, targetID string) (models.Role, error) {
	var role models.Role
	_, err := gm.mutate(ctx, sessionID, func(s *models.Session) error {
		var err error
		role, err = NewSkillManager(s).UseSeerSkill(seerID, targetID)
		return err
	})
	if err != nil {
		return models.NoRole, err
	}
	return role, nil
}

// WitchSave 女巫解药，保护目标免于今夜击杀
func (gm *GameManager) WitchSave(ctx context.Context, sessionID, witchID, targetID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewSkillManager(s).UseWitchSave(witchID, targetID)
	})
}

// WitchKill 女巫毒药，目标立即死亡
func (gm *GameManager) WitchKill(ctx context.Context, sessionID, witchID, targetID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewSkillManager(s).UseWitchKill(witchID, targetID)
	})
}

// HunterSelect 猎人选择开枪目标（再次点击取消）
func (gm *GameManager) HunterSelect(ctx context.Context, sessionID, hunterID, targetID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewSkillManager(s).SelectHunterTarget(hunterID, targetID)
	})
}

// ConfirmHunterReprisal 法官确认猎人开枪
func (gm *GameManager) ConfirmHunterReprisal(ctx context.Context, sessionID, callerID string) (*models.Session, error) {
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		return NewSkillManager(s).ConfirmHunterReprisal(callerID)
	})
}

func (gm *GameManager) load(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := gm.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: 对局 %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("读取对局 %s 失败: %w", sessionID, err)
	}
	// 旧文档可能没有票箱
	if s.NightBallot == nil {
		s.NightBallot = models.Ballot{}
	}
	if s.DayBallot == nil {
		s.DayBallot = models.Ballot{}
	}
	return s, nil
}

// mutate 读取最新快照，执行 fn，再写回一次
// fn 必须先校验再修改；返回错误时不写入任何内容
func (gm *GameManager) mutate(ctx context.Context, sessionID string, fn func(s *models.Session) error) (*models.Session, error) {
	s, err := gm.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return gm.commit(ctx, s)
}

// commit 写回由 load 得到的快照
func (gm *GameManager) commit(ctx context.Context, s *models.Session) (*models.Session, error) {
	sessionID := s.ID
	s.UpdatedAt = gm.now().UTC()
	// 版本号不一致说明有并发写入，交给调用方重试
	if err := gm.store.Save(ctx, s); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, fmt.Errorf("%w: 对局 %s", ErrConflict, sessionID)
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: 对局 %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("保存对局 %s 失败: %w", sessionID, err)
	}

	log.Printf("[engine] 对局 %s 已提交 v%d phase=%s status=%s", s.ID, s.Version, s.Phase, s.Status)
	// 通知只入队，不阻塞本次操作
	if gm.notifier != nil {
		gm.notifier.SessionChanged(s)
	}
	return s, nil
}
