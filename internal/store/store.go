// Package store persists operator settings between runs: nick lists,
// the active language, the translation flag, and payment parameters.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chatpilot/chatpilot/internal/session"
)

// Store is the SQLite-backed settings store.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS nicks (
			nick TEXT NOT NULL,
			list TEXT NOT NULL,
			added_at INTEGER NOT NULL,
			PRIMARY KEY (nick, list)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create nicks table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) setValue(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getValue(key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// GetJSON decodes a JSON settings value into out. Returns false when
// the key has never been set.
func (s *Store) GetJSON(key string, out any) (bool, error) {
	raw, err := s.getValue(key, "")
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores a value as JSON under a settings key.
func (s *Store) SetJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.setValue(key, string(raw))
}

// ActiveLanguage returns the persisted outgoing language, "en" by
// default.
func (s *Store) ActiveLanguage() (string, error) {
	return s.getValue("active_language", "en")
}

func (s *Store) SetActiveLanguage(lang string) error {
	return s.setValue("active_language", lang)
}

func (s *Store) TranslationEnabled() (bool, error) {
	v, err := s.getValue("translation_enabled", "false")
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *Store) SetTranslationEnabled(enabled bool) error {
	return s.setValue("translation_enabled", strconv.FormatBool(enabled))
}

// PaymentParams loads the persisted payment window configuration.
// Missing keys return the zero (disabled) configuration.
func (s *Store) PaymentParams() (session.PaymentParams, error) {
	var params session.PaymentParams
	raw, err := s.getValue("payment_params", "")
	if err != nil {
		return params, err
	}
	if raw == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return params, fmt.Errorf("decode payment params: %w", err)
	}
	return params, nil
}

func (s *Store) SetPaymentParams(params session.PaymentParams) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode payment params: %w", err)
	}
	return s.setValue("payment_params", string(raw))
}

// Nicks returns one of the persisted nick lists ("target", "ignore",
// "suggested") in insertion order.
func (s *Store) Nicks(list string) ([]string, error) {
	rows, err := s.db.Query(`SELECT nick FROM nicks WHERE list = ? ORDER BY added_at, nick`, list)
	if err != nil {
		return nil, fmt.Errorf("query %s nicks: %w", list, err)
	}
	defer rows.Close()

	var nicks []string
	for rows.Next() {
		var nick string
		if err := rows.Scan(&nick); err != nil {
			return nil, fmt.Errorf("scan nick: %w", err)
		}
		nicks = append(nicks, nick)
	}
	return nicks, rows.Err()
}

func (s *Store) AddNick(nick, list string) error {
	_, err := s.db.Exec(`
		INSERT INTO nicks (nick, list, added_at) VALUES (?, ?, ?)
		ON CONFLICT(nick, list) DO NOTHING
	`, nick, list, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("add nick %s to %s: %w", nick, list, err)
	}
	return nil
}

func (s *Store) RemoveNick(nick, list string) error {
	_, err := s.db.Exec(`DELETE FROM nicks WHERE nick = ? AND list = ?`, nick, list)
	if err != nil {
		return fmt.Errorf("remove nick %s from %s: %w", nick, list, err)
	}
	return nil
}

func (s *Store) ClearNicks(list string) error {
	_, err := s.db.Exec(`DELETE FROM nicks WHERE list = ?`, list)
	if err != nil {
		return fmt.Errorf("clear %s nicks: %w", list, err)
	}
	return nil
}
