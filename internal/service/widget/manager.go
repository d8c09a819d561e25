package widget

import (
	"context"
	"errors"
	"sync"
	"time"

	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/service/session"
	"github.com/zhouzirui/botrix/backend/internal/service/voice"
	"go.uber.org/zap"
)

var (
	ErrBotRequired    = errors.New("bot id is required")
	ErrWidgetNotFound = errors.New("widget not found")
)

// BotSource resolves bot configurations.
type BotSource interface {
	Get(ctx context.Context, id string) (botmodel.BotConfig, error)
}

// Options 组件管理器依赖
type Options struct {
	Bots        BotSource
	Dispatcher  Dispatcher
	Tracker     *session.Tracker
	Transcriber voice.Transcriber
	ReplyDelay  time.Duration
	// OnClose 在组件卸载或空闲回收后调用，可为空
	OnClose     func(sessionID string)
}

// MountRequest describes a new widget.
type MountRequest struct {
	BotID     string
	UserAgent string
	Open      bool
}

// Manager owns every live widget instance, keyed by session id.
type Manager struct {
	opts Options

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewManager 创建组件管理器
func NewManager(opts Options) *Manager {
	if opts.Tracker == nil {
		opts.Tracker = session.NewTracker(nil)
	}
	return &Manager{opts: opts, instances: make(map[string]*Instance)}
}

// Mount resolves the bot, creates the session and seeds the welcome message.
func (m *Manager) Mount(ctx context.Context, req MountRequest) (*Instance, error) {
	if req.BotID == "" {
		return nil, ErrBotRequired
	}
	cfg, err := m.opts.Bots.Get(ctx, req.BotID)
	if err != nil {
		return nil, err
	}

	inst := newInstance(instanceParams{
		bot:         cfg,
		userAgent:   req.UserAgent,
		open:        req.Open,
		dispatcher:  m.opts.Dispatcher,
		tracker:     m.opts.Tracker,
		transcriber: m.opts.Transcriber,
		replyDelay:  m.opts.ReplyDelay,
	})

	m.mu.Lock()
	m.instances[inst.ID()] = inst
	m.mu.Unlock()

	zap.S().Infow("[widget] mounted", "session_id", inst.ID(), "bot_id", cfg.ID)
	return inst, nil
}

// Get returns a live instance.
func (m *Manager) Get(id string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrWidgetNotFound
	}
	return inst, nil
}

// Unmount closes and forgets an instance.
func (m *Manager) Unmount(id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	delete(m.instances, id)
	m.mu.Unlock()
	if !ok {
		return ErrWidgetNotFound
	}
	m.release(inst)
	zap.S().Infow("[widget] unmounted", "session_id", id)
	return nil
}

// EvictIdle unmounts instances idle longer than maxIdle.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	now := time.Now()
	m.mu.Lock()
	var stale []*Instance
	for id, inst := range m.instances {
		if inst.IdleFor(now) > maxIdle {
			stale = append(stale, inst)
			delete(m.instances, id)
		}
	}
	m.mu.Unlock()

	for _, inst := range stale {
		m.release(inst)
	}
	return len(stale)
}

func (m *Manager) release(inst *Instance) {
	inst.Close()
	if m.opts.OnClose != nil {
		m.opts.OnClose(inst.ID())
	}
}

// Len reports the number of live instances.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// CloseAll unmounts every instance.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Instance, 0, len(m.instances))
	for id, inst := range m.instances {
		all = append(all, inst)
		delete(m.instances, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, inst := range all {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			inst.Close()
		}(inst)
	}
	wg.Wait()
}
