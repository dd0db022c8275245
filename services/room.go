package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/qianlnk/werewolf-session/models"
	"github.com/qianlnk/werewolf-session/store"
)

const (
	DefaultCapacity = 12
	MinCapacity     = 4
	MaxCapacity     = 20

	joinCodeLength   = 6
	joinCodeAttempts = 8
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // 去掉易混淆的 0/O、1/I
)

// CreateSession 创建房间，创建者即为本局法官
func (gm *GameManager) CreateSession(ctx context.Context, narratorID, narratorName, name string, capacity int) (*models.Session, error) {
	name = strings.TrimSpace(name)
	switch {
	case narratorID == "":
		return nil, fmt.Errorf("%w: 缺少法官ID", ErrInvalidArgument)
	case name == "":
		return nil, fmt.Errorf("%w: 缺少房间名称", ErrInvalidArgument)
	}
	// 0 表示使用默认容量
	if capacity == 0 {
		capacity = gm.defaultCapacity
	}
	if capacity < MinCapacity || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: 房间容量必须在 %d 到 %d 之间", ErrInvalidArgument, MinCapacity, MaxCapacity)
	}

	now := gm.now().UTC()
	rnd := gm.newRand()
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		s := &models.Session{
			ID:         uuid.New().String(),
			Name:       name,
			JoinCode:   generateJoinCode(rnd),
			NarratorID: narratorID,
			Capacity:   capacity,
			Status:     models.StatusWaiting,
			Phase:      models.PhaseWaiting,
			Participants: []models.Participant{
				{ID: narratorID, Name: displayName(narratorName, narratorID), Alive: true, JoinedAt: now},
			},
			NightBallot: Reset(),
			DayBallot:   Reset(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		// 房间码冲突时重新生成
		err := gm.store.Create(ctx, s)
		if errors.Is(err, store.ErrJoinCodeTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("创建房间失败: %w", err)
		}
		log.Printf("[engine] 房间 %s 已创建，法官 %s，房间码 %s", s.ID, narratorID, s.JoinCode)
		if gm.notifier != nil {
			gm.notifier.SessionChanged(s)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: 无法分配房间码", ErrConflict)
}

// JoinSession 玩家加入等待中的房间
func (gm *GameManager) JoinSession(ctx context.Context, sessionID, participantID, name string) (*models.Session, error) {
	if participantID == "" {
		return nil, fmt.Errorf("%w: 缺少玩家ID", ErrInvalidArgument)
	}
	return gm.mutate(ctx, sessionID, func(s *models.Session) error {
		// 检查顺序：已开始、已加入、已满
		if s.Status != models.StatusWaiting {
			return ErrAlreadyStarted
		}
		if s.Participant(participantID) != nil {
			return ErrAlreadyJoined
		}
		if len(s.Participants) >= s.Capacity {
			return ErrFull
		}

		s.Participants = append(s.Participants, models.Participant{
			ID:       participantID,
			Name:     displayName(name, participantID),
			Alive:    true,
			JoinedAt: gm.now().UTC(),
		})
		return nil
	})
}

// JoinByCode 通过房间码加入
func (gm *GameManager) JoinByCode(ctx context.Context, code, participantID, name string) (*models.Session, error) {
	s, err := gm.store.FindByJoinCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: 房间码 %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("查找房间码失败: %w", err)
	}
	return gm.JoinSession(ctx, s.ID, participantID, name)
}

// LeaveSession 玩家离开等待中的房间；法官离开则任何时候都直接删除房间
func (gm *GameManager) LeaveSession(ctx context.Context, sessionID, participantID string) (deleted bool, err error) {
	s, err := gm.load(ctx, sessionID)
	if err != nil {
		return false, err
	}

	if s.IsNarrator(participantID) {
		if err := gm.store.Delete(ctx, sessionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return false, fmt.Errorf("%w: 对局 %s", ErrNotFound, sessionID)
			}
			return false, fmt.Errorf("删除房间失败: %w", err)
		}
		log.Printf("[engine] 法官 %s 离开，房间 %s 已删除", participantID, sessionID)
		if gm.notifier != nil {
			gm.notifier.SessionDeleted(sessionID)
		}
		return true, nil
	}

	if s.Participant(participantID) == nil {
		return false, fmt.Errorf("%w: 玩家 %s", ErrNotFound, participantID)
	}
	if s.Status != models.StatusWaiting {
		return false, fmt.Errorf("%w: 游戏开始后不能离开", ErrInvalidPhase)
	}
	kept := s.Participants[:0]
	for _, p := range s.Participants {
		if p.ID != participantID {
			kept = append(kept, p)
		}
	}
	s.Participants = kept

	_, err = gm.commit(ctx, s)
	return false, err
}

// generateJoinCode 生成6位房间码
func generateJoinCode(rnd Shuffler) string {
	code := make([]byte, joinCodeLength)
	for i := range code {
		code[i] = joinCodeAlphabet[rnd.Intn(len(joinCodeAlphabet))]
	}
	return string(code)
}

// displayName 昵称为空时使用ID
func displayName(name, id string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return id
}
