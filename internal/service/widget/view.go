package widget

import (
	"time"

	"github.com/zhouzirui/botrix/backend/internal/analysis/format"
	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	"github.com/zhouzirui/botrix/backend/internal/service/voice"
)

// MessageView is a log entry plus its display blocks (bot messages only).
type MessageView struct {
	chat.ChatMessage
	Blocks []format.Block `json:"blocks,omitempty"`
}

// Notice is a transient notification with its issue time.
type Notice struct {
	voice.Notification
	At time.Time `json:"at"`
}

// View 是某一时刻组件的完整可渲染状态
type View struct {
	SessionID      string         `json:"sessionId"`
	BotID          string         `json:"botId"`
	BotName        string         `json:"botName"`
	Open           bool           `json:"open"`
	Theme          botmodel.Theme `json:"theme"`
	Messages       []MessageView  `json:"messages"`
	Input          string         `json:"input"`
	Loading        bool           `json:"loading"`
	Typing         bool           `json:"typing"`
	Listening      bool           `json:"listening"`
	VoiceSupported bool           `json:"voiceSupported"`
	Notifications  []Notice       `json:"notifications"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
