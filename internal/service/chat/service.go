// Package chat keeps the short rolling transcript the demo responder feeds
// back to the chat model.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

const (
	DefaultLimit       = 10
	DefaultMaxSessions = 1024
)

// Service is an in-memory, bounded transcript per session.
type Service struct {
	limit       int
	maxSessions int

	mu       sync.RWMutex
	messages map[string][]chat.ChatMessage
}

// NewService keeps at most limit messages per session and maxSessions
// sessions; a new session beyond that evicts an arbitrary one.
func NewService(limit, maxSessions int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Service{
		limit:       limit,
		maxSessions: maxSessions,
		messages:    make(map[string][]chat.ChatMessage),
	}
}

// SaveMessages appends messages to the session history, trimming the oldest.
func (s *Service) SaveMessages(_ context.Context, sessionID string, messages ...chat.ChatMessage) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	now := time.Now().UTC()
	for i := range messages {
		if messages[i].ID == "" {
			messages[i].ID = uuid.NewString()
		}
		if messages[i].Timestamp.IsZero() {
			messages[i].Timestamp = now
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.messages[sessionID]
	if !ok && len(s.messages) >= s.maxSessions {
		for id := range s.messages {
			delete(s.messages, id)
			break
		}
	}
	history = append(history, messages...)
	if len(history) > s.limit {
		history = append([]chat.ChatMessage(nil), history[len(history)-s.limit:]...)
	}
	s.messages[sessionID] = history
	return nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.ChatMessage, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Forget drops a session's history.
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
}

// Len reports the number of sessions held.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
