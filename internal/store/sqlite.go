package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/botrix.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// 单写者，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		user_agent TEXT NOT NULL DEFAULT '',
		bot_id TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_activity INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON chat_sessions(last_activity);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		message_text TEXT NOT NULL,
		sender TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);

	CREATE TABLE IF NOT EXISTS bots (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		config_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bots_owner ON bots(owner_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session chat.Session) error {
	created := session.CreatedAt
	if created.IsZero() {
		created = session.LastActivity
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO chat_sessions (session_id, user_agent, bot_id, is_active, last_activity, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.UserAgent, session.BotID, boolToInt(session.IsActive),
		session.LastActivity.UnixMilli(), created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_activity = ?, is_active = 1 WHERE session_id = ?`,
		at.UnixMilli(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CountSessions(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_sessions WHERE last_activity >= ?`, millisOrZero(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]chat.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT session_id, user_agent, bot_id, is_active, last_activity, created_at
	FROM chat_sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []chat.Session
	for rows.Next() {
		var sess chat.Session
		var active int
		var last, created int64
		if err := rows.Scan(&sess.SessionID, &sess.UserAgent, &sess.BotID, &active, &last, &created); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.IsActive = active == 1
		sess.LastActivity = time.UnixMilli(last).UTC()
		sess.CreatedAt = time.UnixMilli(created).UTC()
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) InsertMessage(ctx context.Context, msg chat.PersistedMessage) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO chat_messages (session_id, message_text, sender, created_at)
	VALUES (?, ?, ?, ?)`,
		msg.SessionID, msg.MessageText, string(msg.Sender), msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountMessages(ctx context.Context, sender chat.Sender, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM chat_messages WHERE created_at >= ?`
	args := []any{millisOrZero(since)}
	if sender != "" {
		query += ` AND sender = ?`
		args = append(args, string(sender))
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]chat.PersistedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, session_id, message_text, sender, created_at
	FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []chat.PersistedMessage
	for rows.Next() {
		var msg chat.PersistedMessage
		var sender string
		var created int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.MessageText, &sender, &created); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Sender = chat.Sender(sender)
		msg.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertBot(ctx context.Context, cfg bot.BotConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode bot config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO bots (id, owner_id, config_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		config_json = excluded.config_json,
		updated_at = excluded.updated_at`,
		cfg.ID, cfg.OwnerID, string(payload), cfg.CreatedAt.UnixMilli(), cfg.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert bot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBot(ctx context.Context, id string) (bot.BotConfig, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT config_json FROM bots WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return bot.BotConfig{}, ErrNotFound
	}
	if err != nil {
		return bot.BotConfig{}, fmt.Errorf("query bot: %w", err)
	}
	return decodeBot([]byte(payload))
}

func (s *SQLiteStore) ListBots(ctx context.Context, ownerID string) ([]bot.BotConfig, error) {
	query := `SELECT config_json FROM bots`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bots: %w", err)
	}
	defer rows.Close()

	var out []bot.BotConfig
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan bot row: %w", err)
		}
		cfg, err := decodeBot([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteBot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeBot(payload []byte) (bot.BotConfig, error) {
	var cfg bot.BotConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return bot.BotConfig{}, fmt.Errorf("decode bot config: %w", err)
	}
	return cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func millisOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
