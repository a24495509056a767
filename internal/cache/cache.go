// Package cache keeps a history of compilations in a SQLite database:
// which modules each session resolved and in what order, the diagnostics
// it reported and the constants it pooled.
package cache

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/funvibe/c4c/internal/ast"
	"github.com/funvibe/c4c/internal/compiler"
	"github.com/funvibe/c4c/internal/diagnostics"
)

const driver = "sqlite"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		entry       TEXT NOT NULL,
		compiled_at TEXT NOT NULL,
		fatal       INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS modules (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		position   INTEGER NOT NULL,
		name       TEXT NOT NULL,
		file       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS diagnostics (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		code       TEXT NOT NULL,
		severity   INTEGER NOT NULL,
		file       TEXT NOT NULL,
		line       INTEGER NOT NULL,
		col        INTEGER NOT NULL,
		message    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS constants (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		id         INTEGER NOT NULL,
		kind       TEXT NOT NULL,
		value      TEXT NOT NULL
	)`,
}

// Store is an open history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open cache %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "open cache %s", path)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "create cache schema")
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Session summarizes one recorded compilation.
type Session struct {
	ID          string
	Entry       string
	CompiledAt  time.Time
	Fatal       bool
	Modules     []string // dependency order
	Diagnostics int
	Constants   int
}

// Record stores res under its session id.
func (s *Store) Record(res *compiler.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	id := res.ID.String()
	if _, err := tx.Exec(`INSERT INTO sessions (id, entry, compiled_at, fatal) VALUES (?, ?, ?, ?)`,
		id, res.Entry, time.Now().UTC().Format(time.RFC3339Nano), res.Fatal); err != nil {
		return errors.Wrapf(err, "record session %s", id)
	}
	for i, m := range res.Modules {
		if _, err := tx.Exec(`INSERT INTO modules (session_id, position, name, file) VALUES (?, ?, ?, ?)`,
			id, i, m.Name, m.File); err != nil {
			return errors.Wrapf(err, "record module %s", m.Name)
		}
	}
	for _, d := range res.Diagnostics {
		if _, err := tx.Exec(`INSERT INTO diagnostics (session_id, code, severity, file, line, col, message) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, string(d.Code), int(d.Severity), d.File, d.Pos.Line, d.Pos.Column, d.Message); err != nil {
			return errors.Wrap(err, "record diagnostic")
		}
	}
	if res.Pool != nil {
		for i, v := range res.Pool.Values() {
			if _, err := tx.Exec(`INSERT INTO constants (session_id, id, kind, value) VALUES (?, ?, ?, ?)`,
				id, i+1, v.Type.String(), v.String()); err != nil {
				return errors.Wrap(err, "record constant")
			}
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Sessions returns up to limit sessions, newest first. A limit of zero or
// less returns all of them.
func (s *Store) Sessions(limit int) ([]Session, error) {
	query := `SELECT s.id, s.entry, s.compiled_at, s.fatal,
		(SELECT COUNT(*) FROM diagnostics d WHERE d.session_id = s.id),
		(SELECT COUNT(*) FROM constants c WHERE c.session_id = s.id)
		FROM sessions s ORDER BY s.compiled_at DESC, s.rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var at string
		if err := rows.Scan(&sess.ID, &sess.Entry, &at, &sess.Fatal, &sess.Diagnostics, &sess.Constants); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		sess.CompiledAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	for i := range out {
		mods, err := s.modules(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Modules = mods
	}
	return out, nil
}

func (s *Store) modules(sessionID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM modules WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "modules of %s", sessionID)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan module")
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Diagnostics returns the diagnostics recorded for a session in the order
// they were reported.
func (s *Store) Diagnostics(sessionID string) ([]*diagnostics.DiagnosticError, error) {
	rows, err := s.db.Query(`SELECT code, severity, file, line, col, message FROM diagnostics
		WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "diagnostics of %s", sessionID)
	}
	defer rows.Close()
	var out []*diagnostics.DiagnosticError
	for rows.Next() {
		var (
			code, file, msg string
			sev, line, col  int
		)
		if err := rows.Scan(&code, &sev, &file, &line, &col, &msg); err != nil {
			return nil, errors.Wrap(err, "scan diagnostic")
		}
		out = append(out, &diagnostics.DiagnosticError{
			Code:     diagnostics.Code(code),
			Severity: diagnostics.Severity(sev),
			Pos:      ast.Pos{File: file, Line: line, Column: col},
			File:     file,
			Message:  msg,
		})
	}
	return out, rows.Err()
}
