package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qianlnk/werewolf-session/models"
)

type fakeMessenger struct {
	order      int64
	delivered  []models.Message
	recipients [][]string
}

func (m *fakeMessenger) Deliver(ctx context.Context, msg models.Message, recipients []string) (int64, error) {
	m.order++
	m.delivered = append(m.delivered, msg)
	m.recipients = append(m.recipients, recipients)
	return m.order, nil
}

func TestPostMessageWithoutMessenger(t *testing.T) {
	gm, _ := newTestManager(t)
	s := newLobby(t, gm, 2)

	_, err := gm.PostMessage(context.Background(), s.ID, "p1", "hello", models.ChannelGeneral)
	assert.ErrorIs(t, err, ErrChatUnavailable)
}

func TestPostMessageGeneral(t *testing.T) {
	ctx := context.Background()
	messenger := &fakeMessenger{}
	gm, _ := newTestManager(t, WithMessenger(messenger))
	s := newLobby(t, gm, 4)

	msg, err := gm.PostMessage(ctx, s.ID, "p1", "  good evening  ", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, msg.Order)
	assert.Equal(t, "good evening", msg.Text)
	assert.Equal(t, models.ChannelGeneral, msg.Channel)
	assert.Equal(t, "Player 1", msg.AuthorName)
	assert.ElementsMatch(t, []string{narrator, "p1", "p2", "p3"}, messenger.recipients[0])

	msg, err = gm.PostMessage(ctx, s.ID, narrator, "welcome", models.ChannelGeneral)
	require.NoError(t, err)
	assert.EqualValues(t, 2, msg.Order)

	_, err = gm.PostMessage(ctx, s.ID, "stranger", "hi", models.ChannelGeneral)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = gm.PostMessage(ctx, s.ID, "p1", "   ", models.ChannelGeneral)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = gm.PostMessage(ctx, s.ID, "p1", strings.Repeat("a", maxMessageLength+1), models.ChannelGeneral)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = gm.PostMessage(ctx, s.ID, "p1", "hi", models.Channel("dm"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = gm.PostMessage(ctx, "missing", "p1", "hi", models.ChannelGeneral)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, messenger.delivered, 2)
}

func TestPostMessageRoleChannel(t *testing.T) {
	ctx := context.Background()
	messenger := &fakeMessenger{}
	gm, _ := newTestManager(t, WithMessenger(messenger))
	lobby := newLobby(t, gm, 7)

	_, err := gm.PostMessage(ctx, lobby.ID, narrator, "psst", models.ChannelRole)
	assert.ErrorIs(t, err, ErrInvalidPhase)

	s, err := gm.StartSession(ctx, lobby.ID, narrator)
	require.NoError(t, err)
	ws := wolves(s)

	_, err = gm.PostMessage(ctx, s.ID, plainVillagers(s)[0], "let me in", models.ChannelRole)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = gm.PostMessage(ctx, s.ID, ws[0], "take the seer", models.ChannelRole)
	require.NoError(t, err)
	assert.ElementsMatch(t, append([]string{narrator}, ws...), messenger.recipients[0])

	s = toNightWolves(t, gm, s)
	_, err = gm.ApplyNightKill(ctx, s.ID, narrator, ws[0])
	require.NoError(t, err)
	_, err = gm.PostMessage(ctx, s.ID, ws[0], "avenge me", models.ChannelRole)
	assert.ErrorIs(t, err, ErrForbidden, "dead werewolves leave the channel")
}
