// Package store persists server-side chat sessions and their messages in a relational
// store, one row per message. It is distinct from the client-facing history collection:
// sessions are the durable audit record written by the chat completion endpoint.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Session is a server-persisted conversation record.
type Session struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one logged chat turn belonging to a session.
type Message struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStore provides CRUD over the session/message tables backed by SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore opens the database at dataSourceName and initializes the schema.
func NewSessionStore(dataSourceName string) (*SessionStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SessionStore{db: db}
	if err = s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database connection is usable.
func (s *SessionStore) Ping() error {
	return s.db.Ping()
}

func (s *SessionStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS chat_sessions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL DEFAULT 'New Conversation',
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id INTEGER NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
        content TEXT NOT NULL,
        model TEXT NOT NULL,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (session_id) REFERENCES chat_sessions (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts a new session. An empty title falls back to the schema default.
func (s *SessionStore) CreateSession(title string) (*Session, error) {
	if title == "" {
		title = "New Conversation"
	}

	now := time.Now()
	res, err := s.db.Exec(
		"INSERT INTO chat_sessions (title, created_at, updated_at) VALUES (?, ?, ?)",
		title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get session id: %w", err)
	}
	return &Session{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// Sessions returns all sessions ordered by their last-updated marker.
func (s *SessionStore) Sessions() ([]Session, error) {
	rows, err := s.db.Query(
		"SELECT id, title, created_at, updated_at FROM chat_sessions ORDER BY updated_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Session returns the session with the given id together with its messages ordered by
// timestamp, or nil when no such session exists.
func (s *SessionStore) Session(id int64) (*Session, []Message, error) {
	var session Session
	err := s.db.QueryRow(
		"SELECT id, title, created_at, updated_at FROM chat_sessions WHERE id = ?", id).
		Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT id, session_id, role, content, model, timestamp FROM messages "+
			"WHERE session_id = ? ORDER BY timestamp", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Model, &msg.Timestamp); err != nil {
			return nil, nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return &session, messages, rows.Err()
}

// DeleteSession removes the session with the given id, cascading to its messages first. It
// reports whether a session was actually deleted.
func (s *SessionStore) DeleteSession(id int64) (bool, error) {
	if _, err := s.db.Exec("DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return false, fmt.Errorf("failed to delete messages: %w", err)
	}

	res, err := s.db.Exec("DELETE FROM chat_sessions WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// AddMessage logs one chat turn against the given session.
func (s *SessionStore) AddMessage(sessionID int64, role, content, model string) (*Message, error) {
	now := time.Now()
	res, err := s.db.Exec(
		"INSERT INTO messages (session_id, role, content, model, timestamp) VALUES (?, ?, ?, ?, ?)",
		sessionID, role, content, model, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message id: %w", err)
	}
	return &Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Model:     model,
		Timestamp: now,
	}, nil
}

// TouchSession advances the session's last-updated marker.
func (s *SessionStore) TouchSession(id int64) error {
	_, err := s.db.Exec("UPDATE chat_sessions SET updated_at = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}
