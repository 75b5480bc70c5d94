package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`,
	// one row per provider call
	`CREATE TABLE IF NOT EXISTS calls(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		call_id TEXT,
		message_id TEXT,
		user_id TEXT,
		source TEXT,
		service TEXT,
		model TEXT,
		raw_input TEXT,
		response_text TEXT,
		input_len INTEGER,
		tokens_in INTEGER,
		tokens_out INTEGER,
		cost REAL,
		dur_ms REAL,
		status TEXT,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS calls_service ON calls(service)`,
	`CREATE TABLE IF NOT EXISTS history(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		user_id TEXT,
		type TEXT,
		message TEXT,
		source TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS history_user ON history(user_id, id)`,
	`CREATE TABLE IF NOT EXISTS feedback(
		message_id TEXT,
		service TEXT,
		feedback TEXT,
		user_id TEXT,
		ts REAL,
		PRIMARY KEY(message_id, service)
	)`,
	`CREATE TABLE IF NOT EXISTS credentials(
		user_id TEXT,
		service TEXT,
		sealed_key TEXT,
		is_valid INTEGER DEFAULT 0,
		ts REAL,
		PRIMARY KEY(user_id, service)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions(
		token TEXT PRIMARY KEY,
		user_id TEXT,
		email TEXT,
		guest INTEGER,
		created REAL,
		expires REAL
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_tokens(
		email TEXT PRIMARY KEY,
		access_token TEXT,
		refresh_token TEXT,
		token_type TEXT,
		expiry REAL
	)`,
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		Timestamp(time.Now()), level, code, msg, m)
}

// Timestamp converts a time to the REAL seconds stored in every table
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Time converts stored REAL seconds back to a time
func Time(ts float64) time.Time {
	return time.Unix(0, int64(ts*1e9))
}
