package chat

import "time"

// Session captures one widget lifetime. It is never closed explicitly and goes
// stale by inactivity only.
type Session struct {
	SessionID    string    `json:"sessionId"`
	UserAgent    string    `json:"userAgent"`
	BotID        string    `json:"botId"`
	IsActive     bool      `json:"isActive"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}
