// Package store persists widget sessions, chat messages and bot configs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionStore holds one row per widget lifetime.
type SessionStore interface {
	CreateSession(ctx context.Context, session chat.Session) error
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	// CountSessions counts sessions whose last activity is at or after since.
	// A zero since counts every session.
	CountSessions(ctx context.Context, since time.Time) (int64, error)
	ListSessions(ctx context.Context, limit int) ([]chat.Session, error)
}

// MessageStore is the append-only message mirror.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg chat.PersistedMessage) error
	// CountMessages counts messages by sender created at or after since.
	// An empty sender counts both sides.
	CountMessages(ctx context.Context, sender chat.Sender, since time.Time) (int64, error)
	ListMessages(ctx context.Context, sessionID string) ([]chat.PersistedMessage, error)
}

// BotStore keeps bot configurations.
type BotStore interface {
	UpsertBot(ctx context.Context, cfg bot.BotConfig) error
	GetBot(ctx context.Context, id string) (bot.BotConfig, error)
	ListBots(ctx context.Context, ownerID string) ([]bot.BotConfig, error)
	DeleteBot(ctx context.Context, id string) error
}

// Repository 聚合全部持久化能力。
type Repository interface {
	SessionStore
	MessageStore
	BotStore
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the repository named by opts.Driver ("sqlite" or "postgres").
func Open(opts Options) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "sqlite":
		s, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql":
		s, err := NewPostgres(opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}
}
