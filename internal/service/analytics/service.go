// Package analytics derives dashboard counters and transcripts from the
// session store and pushes live updates to subscribers.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mileusna/useragent"
	"github.com/samber/lo"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	"github.com/zhouzirui/botrix/backend/internal/pubsub"
	"github.com/zhouzirui/botrix/backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrSessionRequired = errors.New("session id is required")

// Stats 仪表盘计数
type Stats struct {
	ActiveConversations int64     `json:"activeConversations"`
	TotalConversations  int64     `json:"totalConversations"`
	UniqueUsers         int64     `json:"uniqueUsers"`
	TotalMessages       int64     `json:"totalMessages"`
	TodayMessages       int64     `json:"todayMessages"`
	GeneratedAt         time.Time `json:"generatedAt"`
}

// SessionSummary is a stored session with its parsed user agent.
type SessionSummary struct {
	chat.Session
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
}

// Source is the read side of the store used here.
type Source interface {
	store.SessionStore
	store.MessageStore
}

// Service computes analytics and fans out refreshed stats.
type Service struct {
	source       Source
	activeWindow time.Duration
	now          func() time.Time

	mu          sync.RWMutex
	latest      Stats
	subscribers map[chan Stats]struct{}
}

// NewService 创建统计服务，activeWindow 为空时使用30分钟
func NewService(source Source, activeWindow time.Duration) *Service {
	if activeWindow <= 0 {
		activeWindow = 30 * time.Minute
	}
	return &Service{
		source:       source,
		activeWindow: activeWindow,
		now:          time.Now,
		subscribers:  make(map[chan Stats]struct{}),
	}
}

// Stats runs the five counts concurrently.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var out Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.ActiveConversations, err = s.source.CountSessions(gctx, now.Add(-s.activeWindow))
		return err
	})
	g.Go(func() (err error) {
		out.TotalConversations, err = s.source.CountSessions(gctx, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		out.TotalMessages, err = s.source.CountMessages(gctx, chat.SenderUser, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		out.TodayMessages, err = s.source.CountMessages(gctx, chat.SenderUser, startOfDay)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	// 每个会话对应一个匿名访客
	out.UniqueUsers = out.TotalConversations
	out.GeneratedAt = now
	return out, nil
}

// Sessions lists recent sessions, newest first.
func (s *Service) Sessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	sessions, err := s.source.ListSessions(ctx, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(sessions, func(sess chat.Session, _ int) SessionSummary {
		return summarize(sess)
	}), nil
}

// Transcript returns the persisted messages of one session in order.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]chat.PersistedMessage, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	msgs, err := s.source.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []chat.PersistedMessage{}
	}
	return msgs, nil
}

// Latest returns the most recently broadcast stats.
func (s *Service) Latest() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Refresh recomputes stats and broadcasts them.
func (s *Service) Refresh(ctx context.Context) {
	stats, err := s.Stats(ctx)
	if err != nil {
		zap.S().Warnw("[analytics] refresh failed", "error", err)
		return
	}

	s.mu.Lock()
	s.latest = stats
	subs := lo.Keys(s.subscribers)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- stats:
		default:
		}
	}
}

// Subscribe returns a channel of refreshed stats and a cancel func.
func (s *Service) Subscribe() (<-chan Stats, func()) {
	ch := make(chan Stats, 1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
		})
	}
}

// Follow refreshes on every broker event until ctx ends. Bursts are
// coalesced by the minimum interval.
func (s *Service) Follow(ctx context.Context, broker pubsub.Broker, minInterval time.Duration) error {
	events, err := broker.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		var last time.Time
		for evt := range events {
			if s.now().Sub(last) < minInterval {
				continue
			}
			last = s.now()
			zap.S().Debugw("[analytics] store changed", "kind", evt.Kind, "session_id", evt.SessionID)
			s.Refresh(ctx)
		}
	}()
	return nil
}

func summarize(sess chat.Session) SessionSummary {
	ua := useragent.Parse(sess.UserAgent)
	device := "Desktop"
	switch {
	case ua.Bot:
		device = "Bot"
	case ua.Tablet:
		device = "Tablet"
	case ua.Mobile:
		device = "Mobile"
	case !ua.Desktop && ua.Name == "":
		device = "Unknown"
	}
	return SessionSummary{
		Session: sess,
		Browser: lo.Ternary(ua.Name != "", ua.Name, "Unknown"),
		OS:      lo.Ternary(ua.OS != "", ua.OS, "Unknown"),
		Device:  device,
	}
}
