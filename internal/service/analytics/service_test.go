package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	"github.com/zhouzirui/botrix/backend/internal/pubsub"
	"github.com/zhouzirui/botrix/backend/internal/store"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

func seededService(t *testing.T, now time.Time) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, chat.Session{SessionID: "fresh", UserAgent: iphoneUA, IsActive: true, LastActivity: now.Add(-5 * time.Minute)}))
	require.NoError(t, s.CreateSession(ctx, chat.Session{SessionID: "stale", IsActive: true, LastActivity: now.Add(-48 * time.Hour)}))
	require.NoError(t, s.InsertMessage(ctx, chat.PersistedMessage{SessionID: "fresh", MessageText: "hi", Sender: chat.SenderUser, CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, s.InsertMessage(ctx, chat.PersistedMessage{SessionID: "fresh", MessageText: "hello", Sender: chat.SenderBot, CreatedAt: now}))
	require.NoError(t, s.InsertMessage(ctx, chat.PersistedMessage{SessionID: "stale", MessageText: "old", Sender: chat.SenderUser, CreatedAt: now.Add(-48 * time.Hour)}))

	svc := NewService(s, 30*time.Minute)
	svc.now = func() time.Time { return now }
	return svc, s
}

func TestStats(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ActiveConversations)
	assert.EqualValues(t, 2, stats.TotalConversations)
	assert.EqualValues(t, 2, stats.UniqueUsers)
	assert.EqualValues(t, 2, stats.TotalMessages)
	assert.EqualValues(t, 1, stats.TodayMessages)
}

func TestSessionsParseUserAgent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	sessions, err := svc.Sessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[string]SessionSummary{}
	for _, s := range sessions {
		byID[s.SessionID] = s
	}
	assert.Equal(t, "Mobile", byID["fresh"].Device)
	assert.Equal(t, "Unknown", byID["stale"].Browser)
}

func TestTranscript(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	msgs, err := svc.Transcript(context.Background(), "fresh")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].MessageText)

	_, err = svc.Transcript(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionRequired)
}

func TestRefreshBroadcastsAndFollowsBroker(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := seededService(t, now)

	updates, cancel := svc.Subscribe()
	defer cancel()

	broker := pubsub.NewMemoryBroker()
	defer broker.Close()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	require.NoError(t, svc.Follow(ctx, broker, 0))

	require.NoError(t, broker.Publish(ctx, pubsub.Event{Kind: pubsub.KindMessage, SessionID: "fresh"}))

	select {
	case stats := <-updates:
		assert.EqualValues(t, 2, stats.TotalConversations)
	case <-time.After(2 * time.Second):
		t.Fatal("no stats broadcast after broker event")
	}
	assert.EqualValues(t, 2, svc.Latest().TotalConversations)
}
