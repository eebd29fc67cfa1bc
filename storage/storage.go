// Storage module - SQLite data storage

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

type Professor struct {
	ID         int64     `json:"id"`
	School     string    `json:"school"`
	Department string    `json:"department"`
	Name       string    `json:"name"`
	Link       string    `json:"link"` // first page the name was found on
	CreatedAt  time.Time `json:"created_at"`
}

type Paper struct {
	ID         int64     `json:"id"`
	School     string    `json:"school"`
	Department string    `json:"department"`
	Professor  string    `json:"professor"`
	Type       string    `json:"type"`  // paper, patent, project, ...
	Value      string    `json:"value"` // title or short citation
	Body       string    `json:"body"`
	Link       string    `json:"link"`
	Confirm    string    `json:"confirm"` // yes, no, uncertain
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

type Transcript struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	Step      string          `json:"step"`     // professors, extract, dedup, confirm
	Messages  json.RawMessage `json:"messages"` // JSON array of chat messages
	CreatedAt time.Time       `json:"created_at"`
}

// SessionMeta describes a saved chat session.
type SessionMeta struct {
	SessionKey      string    `json:"session_key"`
	MessageCount    int       `json:"message_count"`
	CompactionCount int       `json:"compaction_count"` // times the history was cleared
	UpdatedAt       time.Time `json:"updated_at"`
}

type Config struct {
	ID        int64     `json:"id"`
	Section   string    `json:"section"` // e.g., "llm", "search"
	Key       string    `json:"key"`     // e.g., "apiKey", "baseUrl", "model"
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Storage{db: db}

	// Set WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous: %w", err)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS professors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		school TEXT NOT NULL,
		department TEXT NOT NULL,
		name TEXT NOT NULL,
		link TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(school, department, name)
	)`,
	`CREATE TABLE IF NOT EXISTS papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		school TEXT NOT NULL,
		department TEXT NOT NULL,
		professor TEXT NOT NULL,
		type TEXT,
		value TEXT,
		body TEXT,
		link TEXT,
		confirm TEXT,
		reason TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_papers_professor ON papers(school, department, professor)`,
	`CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step TEXT NOT NULL,
		messages TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcripts_run ON transcripts(run_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		messages TEXT,
		message_count INTEGER DEFAULT 0,
		compaction_count INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	// Config table (persistent config)
	`CREATE TABLE IF NOT EXISTS config (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		section TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(section, key)
	)`,
}

func (s *Storage) initSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// ============ Professors ============

// SaveProfessors inserts new names for a department and reports how many
// were added. Names already stored keep their original link.
func (s *Storage) SaveProfessors(school, department string, professors []Professor) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO professors (school, department, name, link) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, p := range professors {
		res, err := stmt.Exec(school, department, p.Name, p.Link)
		if err != nil {
			return 0, fmt.Errorf("save professor %s: %w", p.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, tx.Commit()
}

func (s *Storage) ListProfessors(school, department string) ([]Professor, error) {
	rows, err := s.db.Query(
		"SELECT id, school, department, name, COALESCE(link, ''), created_at FROM professors WHERE school = ? AND department = ? ORDER BY id",
		school, department,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Professor
	for rows.Next() {
		var p Professor
		if err := rows.Scan(&p.ID, &p.School, &p.Department, &p.Name, &p.Link, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ============ Papers ============

// SavePapers replaces every stored paper of one professor.
func (s *Storage) SavePapers(school, department, professor string, papers []Paper) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM papers WHERE school = ? AND department = ? AND professor = ?",
		school, department, professor,
	); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO papers (school, department, professor, type, value, body, link, confirm, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range papers {
		if _, err := stmt.Exec(school, department, professor, p.Type, p.Value, p.Body, p.Link, p.Confirm, p.Reason); err != nil {
			return fmt.Errorf("save paper %q: %w", p.Value, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) ListPapers(school, department, professor string) ([]Paper, error) {
	rows, err := s.db.Query(`SELECT id, school, department, professor,
		COALESCE(type, ''), COALESCE(value, ''), COALESCE(body, ''), COALESCE(link, ''),
		COALESCE(confirm, ''), COALESCE(reason, ''), created_at
		FROM papers WHERE school = ? AND department = ? AND professor = ? ORDER BY id`,
		school, department, professor,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Paper
	for rows.Next() {
		var p Paper
		if err := rows.Scan(&p.ID, &p.School, &p.Department, &p.Professor,
			&p.Type, &p.Value, &p.Body, &p.Link, &p.Confirm, &p.Reason, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ============ Transcripts ============

// SaveTranscript stores the JSON encoding of messages under a run id.
func (s *Storage) SaveTranscript(runID, step string, messages any) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO transcripts (run_id, step, messages) VALUES (?, ?, ?)",
		runID, step, string(data),
	)
	return err
}

// GetTranscript returns every step of a run in insertion order.
func (s *Storage) GetTranscript(runID string) ([]Transcript, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, step, COALESCE(messages, 'null'), created_at FROM transcripts WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		var t Transcript
		var raw string
		if err := rows.Scan(&t.ID, &t.RunID, &t.Step, &raw, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Messages = json.RawMessage(raw)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ============ Sessions ============

// SaveSession replaces the stored history of a chat session.
func (s *Storage) SaveSession(key string, messages any, count int, cleared bool) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	compacted := 0
	if cleared {
		compacted = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (session_key, messages, message_count, compaction_count, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_key) DO UPDATE SET
			messages = excluded.messages,
			message_count = excluded.message_count,
			compaction_count = sessions.compaction_count + excluded.compaction_count,
			updated_at = CURRENT_TIMESTAMP
	`, key, string(data), count, compacted)
	return err
}

// LoadSession returns the stored history of a session; ok is false when the
// session was never saved.
func (s *Storage) LoadSession(key string) (json.RawMessage, bool, error) {
	var raw string
	err := s.db.QueryRow("SELECT COALESCE(messages, 'null') FROM sessions WHERE session_key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

func (s *Storage) DeleteSession(key string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE session_key = ?", key)
	return err
}

// ListSessions returns saved sessions, most recently updated first.
func (s *Storage) ListSessions() ([]SessionMeta, error) {
	rows, err := s.db.Query("SELECT session_key, message_count, compaction_count, updated_at FROM sessions ORDER BY updated_at DESC, session_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionMeta
	for rows.Next() {
		var m SessionMeta
		if err := rows.Scan(&m.SessionKey, &m.MessageCount, &m.CompactionCount, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Stats counts rows per table.
func (s *Storage) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{"professors", "papers", "transcripts", "sessions", "config"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}
	return stats, nil
}

// ============ Config (persistence) ============

// SetConfig writes a config entry to the database
func (s *Storage) SetConfig(section, key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO config (section, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
		section, key, value,
	)
	return err
}

// GetConfig reads a config value
func (s *Storage) GetConfig(section, key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT COALESCE(value, '') FROM config WHERE section = ? AND key = ?", section, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// GetConfigSection reads all config values in a section
func (s *Storage) GetConfigSection(section string) (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, COALESCE(value, '') FROM config WHERE section = ?", section)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		config[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return config, nil
}

// ConfigExists checks whether a section exists
func (s *Storage) ConfigExists(section string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM config WHERE section = ?", section).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
