// Package database implements the persistent store on SQLite: per-server
// configuration, chat history, warnings, and reminders.
//
// A single long-lived *sql.DB handle is shared by all operations. The schema
// is created on open with CREATE TABLE IF NOT EXISTS, so a fresh database
// file is usable immediately.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Message roles stored in the messages table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ServerSettings is the typed form of the servers.settings column. It is
// serialized to JSON only at the storage boundary.
type ServerSettings struct {
	// Users maps a user ID to their per-server preferences.
	Users map[string]UserPreferences `json:"users,omitempty"`
}

// UserPreferences holds a single user's per-server preferences.
type UserPreferences struct {
	// MaxSentences limits reply length for this user. Nil means no
	// preference (use the configured default); 0 means unlimited.
	MaxSentences *int `json:"max_sentences,omitempty"`
}

// ServerData is one row of the servers table.
type ServerData struct {
	GuildID  string
	Persona  string
	Settings ServerSettings
}

// ChatTurn is one stored message exchange half.
type ChatTurn struct {
	// Role is RoleUser or RoleAssistant.
	Role string

	// Name is the sanitized author name; always empty for assistant turns.
	Name string

	Content string
}

// Warning is one moderation action. Rows are immutable once created.
type Warning struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	Timestamp   time.Time
}

// Reminder is one scheduled notice, deleted once delivery is attempted.
type Reminder struct {
	ID          int64
	UserID      string
	ChannelID   string
	GuildID     string
	Message     string
	RemindTime  time.Time
	CreatedTime time.Time
}

// Store wraps the SQLite connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists. The parent directory is created if missing.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, logger: logger.With("component", "database")}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS servers (
			guild_id TEXT PRIMARY KEY,
			persona  TEXT NOT NULL,
			settings TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id   TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			timestamp  DATETIME DEFAULT CURRENT_TIMESTAMP,
			role       TEXT NOT NULL,
			name       TEXT,
			content    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel
			ON messages (guild_id, channel_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS warnings (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id     TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			moderator_id TEXT NOT NULL,
			reason       TEXT,
			timestamp    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      TEXT NOT NULL,
			channel_id   TEXT NOT NULL,
			guild_id     TEXT NOT NULL,
			message      TEXT NOT NULL,
			remind_time  DATETIME NOT NULL,
			created_time DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// ---------- Servers ----------

// ServerData returns the row for a guild, creating it with the default
// persona when the guild has never been seen. A missing row is not an
// error; only genuine storage faults are.
func (s *Store) ServerData(guildID, defaultPersona string) (ServerData, error) {
	var (
		persona  string
		settings sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT persona, settings FROM servers WHERE guild_id = ?`, guildID,
	).Scan(&persona, &settings)

	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec(
			`INSERT INTO servers (guild_id, persona, settings) VALUES (?, ?, ?)`,
			guildID, defaultPersona, "{}",
		); err != nil {
			return ServerData{}, fmt.Errorf("initializing server %s: %w", guildID, err)
		}
		s.logger.Info("initialized server", "guild", guildID, "persona", defaultPersona)
		return ServerData{GuildID: guildID, Persona: defaultPersona}, nil

	case err != nil:
		return ServerData{}, fmt.Errorf("reading server %s: %w", guildID, err)
	}

	data := ServerData{GuildID: guildID, Persona: persona}
	if settings.Valid && settings.String != "" {
		if err := json.Unmarshal([]byte(settings.String), &data.Settings); err != nil {
			// A corrupt settings blob should not take the server down;
			// preferences reset to defaults.
			s.logger.Error("corrupt settings, resetting", "guild", guildID, "error", err)
			data.Settings = ServerSettings{}
		}
	}
	return data, nil
}

// SetPersona updates a guild's active persona, creating the row if needed.
func (s *Store) SetPersona(guildID, persona string) error {
	res, err := s.db.Exec(
		`UPDATE servers SET persona = ? WHERE guild_id = ?`, persona, guildID,
	)
	if err != nil {
		return fmt.Errorf("updating persona: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.db.Exec(
			`INSERT INTO servers (guild_id, persona, settings) VALUES (?, ?, ?)`,
			guildID, persona, "{}",
		); err != nil {
			return fmt.Errorf("inserting server: %w", err)
		}
	}
	return nil
}

// SetUserMaxSentences stores a user's reply-length preference for a guild.
func (s *Store) SetUserMaxSentences(guildID, userID string, maxSentences int, defaultPersona string) error {
	data, err := s.ServerData(guildID, defaultPersona)
	if err != nil {
		return err
	}

	if data.Settings.Users == nil {
		data.Settings.Users = make(map[string]UserPreferences)
	}
	prefs := data.Settings.Users[userID]
	prefs.MaxSentences = &maxSentences
	data.Settings.Users[userID] = prefs

	return s.saveSettings(guildID, data.Settings)
}

// UserMaxSentences returns a user's reply-length preference, or the default
// when none is stored. Read-only: an unknown guild is not initialized here.
func (s *Store) UserMaxSentences(guildID, userID string, defaultMax int) (int, error) {
	var blob sql.NullString
	err := s.db.QueryRow(
		`SELECT settings FROM servers WHERE guild_id = ?`, guildID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return defaultMax, nil
	}
	if err != nil {
		return defaultMax, fmt.Errorf("reading settings: %w", err)
	}

	if !blob.Valid || blob.String == "" {
		return defaultMax, nil
	}
	var settings ServerSettings
	if err := json.Unmarshal([]byte(blob.String), &settings); err != nil {
		s.logger.Error("corrupt settings", "guild", guildID, "error", err)
		return defaultMax, nil
	}
	if prefs, ok := settings.Users[userID]; ok && prefs.MaxSentences != nil {
		return *prefs.MaxSentences, nil
	}
	return defaultMax, nil
}

func (s *Store) saveSettings(guildID string, settings ServerSettings) error {
	blob, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if _, err := s.db.Exec(
		`UPDATE servers SET settings = ? WHERE guild_id = ?`, string(blob), guildID,
	); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// ---------- Messages ----------

// AppendMessage stores one chat turn. The name is persisted only for user
// turns; assistant turns always store NULL.
func (s *Store) AppendMessage(guildID, channelID string, turn ChatTurn) error {
	var name any
	if turn.Role == RoleUser && turn.Name != "" {
		name = turn.Name
	}
	if _, err := s.db.Exec(
		`INSERT INTO messages (guild_id, channel_id, role, name, content) VALUES (?, ?, ?, ?, ?)`,
		guildID, channelID, turn.Role, name, turn.Content,
	); err != nil {
		return fmt.Errorf("storing message: %w", err)
	}
	return nil
}

// History returns the most recent limit turns for a channel in
// chronological order (oldest first). The query selects the newest rows and
// re-ascends them, so a long-lived channel still yields its latest context.
func (s *Store) History(guildID, channelID string, limit int) ([]ChatTurn, error) {
	rows, err := s.db.Query(
		`SELECT role, name, content FROM messages
		 WHERE guild_id = ? AND channel_id = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		guildID, channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var newestFirst []ChatTurn
	for rows.Next() {
		var (
			turn ChatTurn
			name sql.NullString
		)
		if err := rows.Scan(&turn.Role, &name, &turn.Content); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if turn.Role == RoleUser {
			turn.Name = name.String
		}
		newestFirst = append(newestFirst, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}

// ---------- Warnings ----------

// AddWarning records a moderation warning and returns its ID.
func (s *Store) AddWarning(guildID, userID, moderatorID, reason string) (int64, error) {
	var reasonVal any
	if reason != "" {
		reasonVal = reason
	}
	res, err := s.db.Exec(
		`INSERT INTO warnings (guild_id, user_id, moderator_id, reason) VALUES (?, ?, ?, ?)`,
		guildID, userID, moderatorID, reasonVal,
	)
	if err != nil {
		return 0, fmt.Errorf("storing warning: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading warning id: %w", err)
	}
	return id, nil
}

// Warnings returns a user's warnings in a guild, newest first.
func (s *Store) Warnings(guildID, userID string) ([]Warning, error) {
	rows, err := s.db.Query(
		`SELECT id, guild_id, user_id, moderator_id, reason, timestamp
		 FROM warnings WHERE guild_id = ? AND user_id = ?
		 ORDER BY timestamp DESC, id DESC`,
		guildID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading warnings: %w", err)
	}
	defer rows.Close()

	var warnings []Warning
	for rows.Next() {
		var (
			w      Warning
			reason sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.ModeratorID, &reason, &w.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning warning: %w", err)
		}
		w.Reason = reason.String
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// ---------- Reminders ----------

// AddReminder stores a reminder and returns its ID.
func (s *Store) AddReminder(userID, channelID, guildID, message string, remindTime time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO reminders (user_id, channel_id, guild_id, message, remind_time) VALUES (?, ?, ?, ?, ?)`,
		userID, channelID, guildID, message, remindTime.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("storing reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading reminder id: %w", err)
	}
	return id, nil
}

// DueReminders returns every reminder whose remind_time is at or before now.
func (s *Store) DueReminders(now time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, channel_id, guild_id, message, remind_time, created_time
		 FROM reminders WHERE remind_time <= ?`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("reading due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.ChannelID, &r.GuildID, &r.Message, &r.RemindTime, &r.CreatedTime); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// DeleteReminder removes a reminder by ID. Returns false when the row was
// already gone.
func (s *Store) DeleteReminder(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
