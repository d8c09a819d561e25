package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	"github.com/zhouzirui/botrix/backend/internal/pubsub"
)

var sessionIDPattern = regexp.MustCompile(`^widget_[a-z0-9]+_[0-9]+$`)

func TestNewSessionIDFormat(t *testing.T) {
	now := time.UnixMilli(1714557600000)
	for i := 0; i < 50; i++ {
		id := NewSessionID(now)
		if !sessionIDPattern.MatchString(id) {
			t.Fatalf("session id %q does not match format", id)
		}
		if len(id) != len("widget_")+9+1+len("1714557600000") {
			t.Fatalf("unexpected id length: %q", id)
		}
	}
}

type captureEmitter struct {
	mu      sync.Mutex
	started []chat.Session
	touched []string
}

func (c *captureEmitter) OnSessionStart(s chat.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, s)
}

func (c *captureEmitter) OnSessionTouch(id string, _ time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = append(c.touched, id)
}

func (c *captureEmitter) OnUserMessage(string, chat.ChatMessage) {}

func (c *captureEmitter) OnBotMessage(string, chat.ChatMessage) {}

func TestTrackerCreateSessionEmitsOnce(t *testing.T) {
	emitter := &captureEmitter{}
	tracker := NewTracker(emitter)

	sess := tracker.CreateSession("bot-1", "Mozilla/5.0")
	tracker.TouchSession(sess.SessionID)

	require.Len(t, emitter.started, 1)
	assert.Equal(t, sess.SessionID, emitter.started[0].SessionID)
	assert.True(t, sess.IsActive)
	assert.Equal(t, "bot-1", sess.BotID)
	assert.Equal(t, []string{sess.SessionID}, emitter.touched)
}

type fakeStore struct {
	mu       sync.Mutex
	sessions []string
	touches  int
	messages []chat.PersistedMessage
	failing  bool
}

func (f *fakeStore) CreateSession(_ context.Context, s chat.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store unavailable")
	}
	f.sessions = append(f.sessions, s.SessionID)
	return nil
}

func (f *fakeStore) TouchSession(context.Context, string, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	return nil
}

func (f *fakeStore) CountSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ListSessions(context.Context, int) ([]chat.Session, error) {
	return nil, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, m chat.PersistedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store unavailable")
	}
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) CountMessages(context.Context, chat.Sender, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ListMessages(context.Context, string) ([]chat.PersistedMessage, error) {
	return nil, nil
}

func TestRecorderWritesInOrderAndPublishes(t *testing.T) {
	fs := &fakeStore{}
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	rec := NewRecorder(fs, fs, broker, 16)
	now := time.Now().UTC()
	rec.OnSessionStart(chat.Session{SessionID: "s1", LastActivity: now})
	rec.OnUserMessage("s1", chat.ChatMessage{Text: "hi", Sender: chat.SenderUser, Timestamp: now})
	rec.OnSessionTouch("s1", now)
	rec.OnBotMessage("s1", chat.ChatMessage{Text: "hello", Sender: chat.SenderBot, Timestamp: now})
	rec.Close()

	assert.Equal(t, []string{"s1"}, fs.sessions)
	assert.Equal(t, 1, fs.touches)
	require.Len(t, fs.messages, 2)
	assert.Equal(t, chat.SenderUser, fs.messages[0].Sender)
	assert.Equal(t, "hello", fs.messages[1].MessageText)

	first := <-events
	assert.Equal(t, pubsub.KindSessionStarted, first.Kind)
}

func TestRecorderSwallowsWriteErrors(t *testing.T) {
	fs := &fakeStore{failing: true}
	rec := NewRecorder(fs, fs, nil, 4)
	rec.OnSessionStart(chat.Session{SessionID: "s1"})
	rec.OnUserMessage("s1", chat.ChatMessage{Text: "hi"})
	rec.Close()

	assert.Empty(t, fs.sessions)
	assert.Empty(t, fs.messages)

	// records after Close are ignored
	rec.OnUserMessage("s1", chat.ChatMessage{Text: "late"})
}
