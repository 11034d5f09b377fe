package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionSource identifies the transport a session arrived on.
type SessionSource string

const (
	SourceHTTP   SessionSource = "http"
	SourceWS     SessionSource = "ws"
	SourceCamera SessionSource = "camera"
)

// Session is one recognition stream.
type Session struct {
	ID         string        `json:"id"`
	Source     SessionSource `json:"source"`
	Frames     int           `json:"frames"`
	LastLabel  string        `json:"last_label"`
	StartedAt  time.Time     `json:"started_at"`
	LastSeenAt time.Time     `json:"last_seen_at"`
	ClosedAt   *time.Time    `json:"closed_at,omitempty"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is filled with a new UUID.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now()
	sess.StartedAt = now
	sess.LastSeenAt = now

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, frames, last_label, started_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Source), sess.Frames, sess.LastLabel, sess.StartedAt, sess.LastSeenAt,
	)
	return err
}

// Ensure creates the session if it does not exist yet, and reopens it if it
// was closed. Counters and the start time of an existing session are kept.
func (r *SessionRepository) Ensure(id string, source SessionSource) error {
	now := time.Now()
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, started_at, last_seen_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET closed_at = NULL, last_seen_at = excluded.last_seen_at`,
		id, string(source), now, now,
	)
	return err
}

// Touch adds frames to the session count and records the latest label.
func (r *SessionRepository) Touch(id string, frames int, label string) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET frames = frames + ?, last_label = ?, last_seen_at = ? WHERE id = ?`,
		frames, label, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return affectOne(result)
}

// Close marks the session closed.
func (r *SessionRepository) Close(id string) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET closed_at = ? WHERE id = ? AND closed_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return err
	}
	return affectOne(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, source, frames, last_label, started_at, last_seen_at, closed_at
		 FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns all sessions, most recently active first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, source, frames, last_label, started_at, last_seen_at, closed_at
		 FROM sessions ORDER BY last_seen_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*Session, error) {
	sess := &Session{}
	var source string
	var closed sql.NullTime

	if err := s.Scan(&sess.ID, &source, &sess.Frames, &sess.LastLabel, &sess.StartedAt, &sess.LastSeenAt, &closed); err != nil {
		return nil, err
	}
	sess.Source = SessionSource(source)
	if closed.Valid {
		t := closed.Time
		sess.ClosedAt = &t
	}
	return sess, nil
}
