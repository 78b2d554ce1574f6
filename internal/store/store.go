// Package store is the SQLite backend. It implements the exam service's
// Store, the grading Source and user/session persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS exams (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		author_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		clamp_time BOOLEAN NOT NULL DEFAULT 0,
		show_scores BOOLEAN NOT NULL DEFAULT 0,
		has_scripts BOOLEAN NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_exams_author ON exams(author_id);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		points REAL NOT NULL,
		max_attempts INTEGER NOT NULL,
		type INTEGER NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		correct TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);
	CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_id, position);

	CREATE TABLE IF NOT EXISTS submissions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		exam_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		finished BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE (exam_id, student_id),
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_student ON submissions(student_id);

	CREATE TABLE IF NOT EXISTS answers (
		submission_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		used_attempts INTEGER NOT NULL DEFAULT 0,
		provided TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (submission_id, question_id),
		FOREIGN KEY (submission_id) REFERENCES submissions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn in a transaction and commits if it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Index lists are stored as JSON arrays.
func encodeInts(v []int) string {
	if v == nil {
		v = []int{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeInts(s string) ([]int, error) {
	v := []int{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode index list: %w", err)
	}
	return v, nil
}

func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeStrings(s string) ([]string, error) {
	v := []string{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return v, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func orderDir(newest bool) string {
	if newest {
		return "DESC"
	}
	return "ASC"
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
