package store

// aslSeed maps the default gesture labels to English phrases.
var aslSeed = map[string]string{
	"HELLO":      "Hello",
	"HELLO_L":    "Hello",
	"THANK_YOU":  "Thank you",
	"YES":        "Yes",
	"NO":         "No",
	"PLEASE":     "Please",
	"SORRY":      "Sorry",
	"I_LOVE_YOU": "I love you",
	"GOOD":       "Good",
	"BAD":        "Bad",
}

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sign mappings table - label to phrase per sign language
		`CREATE TABLE IF NOT EXISTS sign_mappings (
			lang TEXT NOT NULL,
			label TEXT NOT NULL,
			text TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (lang, label)
		)`,

		// Sessions table - one row per recognition stream
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL CHECK(source IN ('http', 'ws', 'camera')),
			frames INTEGER NOT NULL DEFAULT 0,
			last_label TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			last_seen_at DATETIME NOT NULL,
			closed_at DATETIME
		)`,

		// Label events table - recorded whenever a session's label changes
		`CREATE TABLE IF NOT EXISTS label_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			source TEXT NOT NULL,
			score REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_label_events_session_id ON label_events(session_id, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	for label, text := range aslSeed {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO sign_mappings (lang, label, text) VALUES ('ASL', ?, ?)`,
			label, text,
		); err != nil {
			return err
		}
	}

	return nil
}
