package store

import (
	"database/sql"
	"strings"
	"time"
)

// MappingRepository stores label to phrase tables per sign language.
type MappingRepository struct {
	db *sql.DB
}

// Mappings returns the sign mapping repository for this store.
func (s *Store) Mappings() *MappingRepository {
	return &MappingRepository{db: s.db}
}

// List returns the mapping for lang. Language codes are case-insensitive.
// An unknown language returns ErrNotFound.
func (r *MappingRepository) List(lang string) (map[string]string, error) {
	rows, err := r.db.Query(
		`SELECT label, text FROM sign_mappings WHERE lang = ? ORDER BY label`,
		strings.ToUpper(lang),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var label, text string
		if err := rows.Scan(&label, &text); err != nil {
			return nil, err
		}
		mapping[label] = text
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(mapping) == 0 {
		return nil, ErrNotFound
	}
	return mapping, nil
}

// Languages returns the language codes that have at least one mapping.
func (r *MappingRepository) Languages() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT lang FROM sign_mappings ORDER BY lang`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

// Upsert sets the phrase for a label.
func (r *MappingRepository) Upsert(lang, label, text string) error {
	_, err := r.db.Exec(
		`INSERT INTO sign_mappings (lang, label, text, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(lang, label) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at`,
		strings.ToUpper(lang), label, text, time.Now(),
	)
	return err
}

// Delete removes a single label from a language.
func (r *MappingRepository) Delete(lang, label string) error {
	result, err := r.db.Exec(
		`DELETE FROM sign_mappings WHERE lang = ? AND label = ?`,
		strings.ToUpper(lang), label,
	)
	if err != nil {
		return err
	}
	return affectOne(result)
}
