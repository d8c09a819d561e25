// Package bot manages bot configurations owned by dashboard users.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/store"
	"go.uber.org/zap"
)

var (
	ErrNameRequired   = errors.New("bot name is required")
	ErrInvalidWebhook = errors.New("webhook url must be an absolute http(s) url")
	ErrNotFound       = errors.New("bot not found")
)

const cacheTTL = 5 * time.Minute

// Registry validates and stores bot configurations with a read-through cache.
type Registry struct {
	store store.BotStore
	cache *ristretto.Cache[string, botmodel.BotConfig]
	now   func() time.Time
}

// NewRegistry 创建机器人配置注册表
func NewRegistry(s store.BotStore) (*Registry, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, botmodel.BotConfig]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create bot cache: %w", err)
	}
	return &Registry{store: s, cache: cache, now: time.Now}, nil
}

// Close releases the cache.
func (r *Registry) Close() {
	r.cache.Close()
}

// Create assigns an id and timestamps and persists cfg.
func (r *Registry) Create(ctx context.Context, cfg botmodel.BotConfig) (botmodel.BotConfig, error) {
	cfg = normalize(cfg)
	if err := validate(cfg); err != nil {
		return botmodel.BotConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := r.now().UTC()
	cfg.CreatedAt, cfg.UpdatedAt = now, now

	if err := r.store.UpsertBot(ctx, cfg); err != nil {
		return botmodel.BotConfig{}, err
	}
	r.remember(cfg)
	return cfg, nil
}

// Update replaces an existing bot, keeping its id, owner and creation time.
func (r *Registry) Update(ctx context.Context, id string, cfg botmodel.BotConfig) (botmodel.BotConfig, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return botmodel.BotConfig{}, err
	}
	cfg = normalize(cfg)
	if err := validate(cfg); err != nil {
		return botmodel.BotConfig{}, err
	}
	cfg.ID = existing.ID
	cfg.OwnerID = existing.OwnerID
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = r.now().UTC()

	if err := r.store.UpsertBot(ctx, cfg); err != nil {
		return botmodel.BotConfig{}, err
	}
	r.remember(cfg)
	return cfg, nil
}

// Get returns the bot, consulting the cache first.
func (r *Registry) Get(ctx context.Context, id string) (botmodel.BotConfig, error) {
	if cfg, ok := r.cache.Get(id); ok {
		return cfg, nil
	}
	cfg, err := r.store.GetBot(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return botmodel.BotConfig{}, ErrNotFound
	}
	if err != nil {
		return botmodel.BotConfig{}, err
	}
	r.remember(cfg)
	return cfg, nil
}

// List returns the bots of ownerID, or every bot when ownerID is empty.
func (r *Registry) List(ctx context.Context, ownerID string) ([]botmodel.BotConfig, error) {
	bots, err := r.store.ListBots(ctx, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, err
	}
	if bots == nil {
		bots = []botmodel.BotConfig{}
	}
	return bots, nil
}

// Delete removes the bot and evicts it from the cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.cache.Del(id)
	err := r.store.DeleteBot(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// EnsureSeed installs the given bots when they do not exist yet.
func (r *Registry) EnsureSeed(ctx context.Context, seeds []botmodel.BotConfig) error {
	for _, seed := range seeds {
		_, err := r.Get(ctx, seed.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := r.Create(ctx, seed); err != nil {
			return fmt.Errorf("seed bot %s: %w", seed.ID, err)
		}
		zap.S().Infow("[bot] seeded", "bot_id", seed.ID)
	}
	return nil
}

func (r *Registry) remember(cfg botmodel.BotConfig) {
	r.cache.SetWithTTL(cfg.ID, cfg, 1, cacheTTL)
	r.cache.Wait()
}

func normalize(cfg botmodel.BotConfig) botmodel.BotConfig {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	cfg.OwnerID = strings.TrimSpace(cfg.OwnerID)
	cfg.CategoryKeywords = lo.Uniq(lo.Compact(lo.Map(cfg.CategoryKeywords, func(k string, _ int) string {
		return strings.TrimSpace(k)
	})))
	return cfg
}

func validate(cfg botmodel.BotConfig) error {
	if cfg.Name == "" {
		return ErrNameRequired
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidWebhook
	}
	return nil
}
