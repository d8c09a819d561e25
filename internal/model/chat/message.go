package chat

import "time"

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one entry of a widget's in-memory log. Never mutated after append.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// PersistedMessage mirrors a ChatMessage in the remote store, keyed by session.
type PersistedMessage struct {
	ID          int64     `json:"id,omitempty"`
	SessionID   string    `json:"sessionId"`
	MessageText string    `json:"messageText"`
	Sender      Sender    `json:"sender"`
	CreatedAt   time.Time `json:"createdAt"`
}
