// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// The original deployment of this platform kept everything in process
// memory and lost it on restart; SQLite gives the same get/set-by-key
// access with durability, while staying a single embedded file — no
// database server to run. modernc.org/sqlite is a pure Go driver, so the
// binary cross-compiles without CGo.
//
// Use ":memory:" as the path for a throwaway database in tests.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository. One DB value serves all four entity
// types; the server owns it and closes it on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Surface a bad path or permissions problem now, not on first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight — the
	// progress endpoints are read-heavy.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Enrollments and completions reference users; keep the references honest.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Per-entity accessors. Each returns a thin view over the same
// connection pool implementing one repository interface; this keeps the
// method sets apart (Users().Create vs Enrollments().Create) while the
// server still owns a single DB.

func (db *DB) Users() *UserDB             { return &UserDB{conn: db.conn} }
func (db *DB) Enrollments() *EnrollmentDB { return &EnrollmentDB{conn: db.conn} }
func (db *DB) Lessons() *LessonDB         { return &LessonDB{conn: db.conn} }
func (db *DB) Stats() *StatsDB            { return &StatsDB{conn: db.conn} }

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent, so it is safe to run on every start.
func (db *DB) migrate() error {
	// github_id is 0 for password accounts; the partial unique index
	// only constrains real GitHub IDs.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER NOT NULL DEFAULT 0,
			avatar_url    TEXT NOT NULL DEFAULT '',
			bio           TEXT NOT NULL DEFAULT '',
			xp            INTEGER NOT NULL DEFAULT 0,
			level         INTEGER NOT NULL DEFAULT 1,
			streak        INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id != 0;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS enrollments (
			user_id       TEXT NOT NULL REFERENCES users(id),
			course_id     TEXT NOT NULL,
			course_title  TEXT NOT NULL DEFAULT '',
			course_icon   TEXT NOT NULL DEFAULT '',
			total_lessons INTEGER NOT NULL DEFAULT 1,
			enrolled_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, course_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating enrollments table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS lesson_progress (
			user_id      TEXT NOT NULL REFERENCES users(id),
			course_id    TEXT NOT NULL,
			lesson_id    INTEGER NOT NULL,
			completed    INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			time_spent   INTEGER NOT NULL DEFAULT 0,
			score        INTEGER NOT NULL DEFAULT 0,
			xp_earned    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, course_id, lesson_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating lesson_progress table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_stats (
			user_id                 TEXT PRIMARY KEY REFERENCES users(id),
			total_lessons_completed INTEGER NOT NULL DEFAULT 0,
			total_lessons           INTEGER NOT NULL DEFAULT 0,
			completion_rate         INTEGER NOT NULL DEFAULT 0,
			enrolled_courses        INTEGER NOT NULL DEFAULT 0,
			completed_courses       INTEGER NOT NULL DEFAULT 0,
			total_time_spent        INTEGER NOT NULL DEFAULT 0,
			average_score           INTEGER NOT NULL DEFAULT 0,
			average_time_per_lesson INTEGER NOT NULL DEFAULT 0,
			last_activity           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			current_streak          INTEGER NOT NULL DEFAULT 0,
			longest_streak          INTEGER NOT NULL DEFAULT 0,
			days_active             INTEGER NOT NULL DEFAULT 1
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user_stats table: %w", err)
	}

	return nil
}
