// Package session generates widget session ids and records session and
// message activity.
package session

import (
	"time"

	"github.com/zhouzirui/botrix/backend/internal/model/chat"
)

// Tracker creates sessions and forwards activity to an Emitter.
type Tracker struct {
	emitter Emitter
	now     func() time.Time
}

// NewTracker 创建会话跟踪器，emitter 为空时丢弃事件。
func NewTracker(emitter Emitter) *Tracker {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Tracker{emitter: emitter, now: time.Now}
}

// Emitter exposes the sink used for message events.
func (t *Tracker) Emitter() Emitter {
	return t.emitter
}

// CreateSession generates the id once and emits the start record.
func (t *Tracker) CreateSession(botID, userAgent string) chat.Session {
	now := t.now().UTC()
	sess := chat.Session{
		SessionID:    NewSessionID(now),
		UserAgent:    userAgent,
		BotID:        botID,
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
	}
	t.emitter.OnSessionStart(sess)
	return sess
}

// TouchSession marks the session active now.
func (t *Tracker) TouchSession(sessionID string) {
	t.emitter.OnSessionTouch(sessionID, t.now().UTC())
}
