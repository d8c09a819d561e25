package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sessionRow struct {
	SessionID    string    `gorm:"column:session_id;primaryKey"`
	UserAgent    string    `gorm:"column:user_agent;type:text;not null;default:''"`
	BotID        string    `gorm:"column:bot_id;index;not null;default:''"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	LastActivity time.Time `gorm:"column:last_activity;index;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (sessionRow) TableName() string { return "chat_sessions" }

type messageRow struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID   string    `gorm:"column:session_id;index;not null"`
	MessageText string    `gorm:"column:message_text;type:text;not null"`
	Sender      string    `gorm:"column:sender;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;index;not null"`
}

func (messageRow) TableName() string { return "chat_messages" }

type botRow struct {
	ID        string         `gorm:"column:id;primaryKey"`
	OwnerID   string         `gorm:"column:owner_id;index;not null;default:''"`
	Config    datatypes.JSON `gorm:"column:config_json;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (botRow) TableName() string { return "bots" }

// PostgresStore implements Repository with gorm on PostgreSQL.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgres connects to dsn and migrates the three tables.
func NewPostgres(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&sessionRow{}, &messageRow{}, &botRow{}); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) CreateSession(ctx context.Context, session chat.Session) error {
	created := session.CreatedAt
	if created.IsZero() {
		created = session.LastActivity
	}
	row := sessionRow{
		SessionID:    session.SessionID,
		UserAgent:    session.UserAgent,
		BotID:        session.BotID,
		IsActive:     session.IsActive,
		LastActivity: session.LastActivity,
		CreatedAt:    created,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{"last_activity": at, "is_active": true})
	if res.Error != nil {
		return fmt.Errorf("touch session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountSessions(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&sessionRow{})
	if !since.IsZero() {
		q = q.Where("last_activity >= ?", since)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]chat.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	out := make([]chat.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, chat.Session{
			SessionID:    r.SessionID,
			UserAgent:    r.UserAgent,
			BotID:        r.BotID,
			IsActive:     r.IsActive,
			LastActivity: r.LastActivity,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg chat.PersistedMessage) error {
	row := messageRow{
		SessionID:   msg.SessionID,
		MessageText: msg.MessageText,
		Sender:      string(msg.Sender),
		CreatedAt:   msg.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountMessages(ctx context.Context, sender chat.Sender, since time.Time) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&messageRow{})
	if sender != "" {
		q = q.Where("sender = ?", string(sender))
	}
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string) ([]chat.PersistedMessage, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	out := make([]chat.PersistedMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, chat.PersistedMessage{
			ID:          r.ID,
			SessionID:   r.SessionID,
			MessageText: r.MessageText,
			Sender:      chat.Sender(r.Sender),
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) UpsertBot(ctx context.Context, cfg bot.BotConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode bot config: %w", err)
	}
	row := botRow{
		ID:        cfg.ID,
		OwnerID:   cfg.OwnerID,
		Config:    datatypes.JSON(payload),
		CreatedAt: cfg.CreatedAt,
		UpdatedAt: cfg.UpdatedAt,
	}
	err = s.db.WithContext(ctx).
		Where(botRow{ID: cfg.ID}).
		Assign(botRow{OwnerID: row.OwnerID, Config: row.Config, UpdatedAt: row.UpdatedAt}).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("upsert bot: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBot(ctx context.Context, id string) (bot.BotConfig, error) {
	var row botRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bot.BotConfig{}, ErrNotFound
	}
	if err != nil {
		return bot.BotConfig{}, fmt.Errorf("query bot: %w", err)
	}
	return decodeBot(row.Config)
}

func (s *PostgresStore) ListBots(ctx context.Context, ownerID string) ([]bot.BotConfig, error) {
	var rows []botRow
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query bots: %w", err)
	}
	out := make([]bot.BotConfig, 0, len(rows))
	for _, r := range rows {
		cfg, err := decodeBot(r.Config)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s *PostgresStore) DeleteBot(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&botRow{})
	if res.Error != nil {
		return fmt.Errorf("delete bot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
