package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/qianlnk/werewolf-session/models"
)

const maxMessageLength = 500

// Messenger 投递聊天消息，返回消息在对局内的序号
type Messenger interface {
	Deliver(ctx context.Context, msg models.Message, recipients []string) (int64, error)
}

// PostMessage 校验发送者和频道后交给 Messenger 投递，不修改对局
func (gm *GameManager) PostMessage(ctx context.Context, sessionID, authorID, text string, channel models.Channel) (models.Message, error) {
	if gm.messenger == nil {
		return models.Message{}, ErrChatUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxMessageLength {
		return models.Message{}, fmt.Errorf("%w: 消息长度必须为 1-%d", ErrInvalidArgument, maxMessageLength)
	}
	// 默认公共频道
	if channel == "" {
		channel = models.ChannelGeneral
	}

	s, err := gm.load(ctx, sessionID)
	if err != nil {
		return models.Message{}, err
	}
	author := s.Participant(authorID)
	if author == nil {
		return models.Message{}, fmt.Errorf("%w: %s 不在本局中", ErrForbidden, authorID)
	}
	recipients, err := channelRecipients(s, author, channel)
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		SessionID:  s.ID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Text:       text,
		Channel:    channel,
		SentAt:     gm.now().UTC(),
	}
	order, err := gm.messenger.Deliver(ctx, msg, recipients)
	if err != nil {
		return models.Message{}, fmt.Errorf("投递消息失败: %w", err)
	}
	msg.Order = order
	return msg, nil
}

// channelRecipients 频道的接收者；角色频道只属于狼人和法官
func channelRecipients(s *models.Session, author *models.Participant, channel models.Channel) ([]string, error) {
	switch channel {
	case models.ChannelGeneral:
		ids := make([]string, 0, len(s.Participants))
		for _, p := range s.Participants {
			ids = append(ids, p.ID)
		}
		return ids, nil
	case models.ChannelRole:
		if s.Status != models.StatusInProgress {
			return nil, fmt.Errorf("%w: 游戏开始后才开放角色频道", ErrInvalidPhase)
		}
		if !s.IsNarrator(author.ID) && (author.Role != models.Werewolf || !author.Alive) {
			return nil, fmt.Errorf("%w: 角色频道仅限存活狼人", ErrForbidden)
		}
		ids := []string{s.NarratorID}
		for _, p := range s.Participants {
			if p.Role == models.Werewolf {
				ids = append(ids, p.ID)
			}
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: 未知频道 %q", ErrInvalidArgument, channel)
}
