package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "botrix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSessionsAndMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateSession(ctx, chat.Session{
		SessionID:    "widget_abc123def_1714557600000",
		UserAgent:    "Mozilla/5.0",
		BotID:        "bot-1",
		IsActive:     true,
		LastActivity: start,
	}))
	require.NoError(t, s.TouchSession(ctx, "widget_abc123def_1714557600000", start.Add(time.Hour)))
	assert.ErrorIs(t, s.TouchSession(ctx, "missing", start), ErrNotFound)

	total, err := s.CountSessions(ctx, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	active, err := s.CountSessions(ctx, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)

	require.NoError(t, s.InsertMessage(ctx, chat.PersistedMessage{
		SessionID: "widget_abc123def_1714557600000", MessageText: "hi", Sender: chat.SenderUser, CreatedAt: start,
	}))
	require.NoError(t, s.InsertMessage(ctx, chat.PersistedMessage{
		SessionID: "widget_abc123def_1714557600000", MessageText: "hello", Sender: chat.SenderBot, CreatedAt: start.Add(time.Second),
	}))

	users, err := s.CountMessages(ctx, chat.SenderUser, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, users)

	msgs, err := s.ListMessages(ctx, "widget_abc123def_1714557600000")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].MessageText)
	assert.Equal(t, chat.SenderBot, msgs[1].Sender)

	sessions, err := s.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].LastActivity.Equal(start.Add(time.Hour)))
}

func TestSQLiteBots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	cfg := bot.BotConfig{ID: "b1", OwnerID: "u1", Name: "Helper", WebhookURL: "https://hooks.example.com/a", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.UpsertBot(ctx, cfg))

	cfg.Name = "Helper 2"
	require.NoError(t, s.UpsertBot(ctx, cfg))

	got, err := s.GetBot(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Helper 2", got.Name)

	list, err := s.ListBots(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other, err := s.ListBots(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.DeleteBot(ctx, "b1"))
	_, err = s.GetBot(ctx, "b1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "mongo"})
	assert.Error(t, err)
}
