package session

import (
	"time"

	"github.com/zhouzirui/botrix/backend/internal/model/chat"
)

// Emitter receives the side effects of a widget exchange. Implementations
// must not block the caller and must not report errors back.
type Emitter interface {
	OnSessionStart(session chat.Session)
	OnSessionTouch(sessionID string, at time.Time)
	OnUserMessage(sessionID string, msg chat.ChatMessage)
	OnBotMessage(sessionID string, msg chat.ChatMessage)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) OnSessionStart(chat.Session) {}

func (NopEmitter) OnSessionTouch(string, time.Time) {}

func (NopEmitter) OnUserMessage(string, chat.ChatMessage) {}

func (NopEmitter) OnBotMessage(string, chat.ChatMessage) {}
