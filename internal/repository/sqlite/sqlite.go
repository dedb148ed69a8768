// Package sqlite implements the repository interfaces on SQLite.
//
// DRIVER:
// modernc.org/sqlite is a pure-Go translation of SQLite, so the binary builds
// without a C toolchain. The blank import registers the "sqlite" driver with
// database/sql.
//
// CONNECTIONS:
// SQLite allows one writer at a time. The pool is capped at a single open
// connection, which serialises writes inside the process and keeps ":memory:"
// databases (one per connection) coherent in tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sakif/wedding-rsvp/internal/model"
)

// DB wraps a sql.DB and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/wedding.db" → file-based database
//   - ":memory:"        → in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

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

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database still answers. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL DEFAULT '',
			is_superuser  INTEGER NOT NULL DEFAULT 0,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// user_id is NULL for on-behalf records. SQLite treats NULLs as distinct
	// in a UNIQUE index, so the index only constrains own records.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS rsvps (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT REFERENCES users(id) ON DELETE SET NULL,
			full_name            TEXT NOT NULL,
			email                TEXT NOT NULL DEFAULT '',
			attending            INTEGER NOT NULL DEFAULT 0,
			children             TEXT NOT NULL DEFAULT '[]',
			plus_one             TEXT,
			dietary_requirements TEXT NOT NULL DEFAULT '',
			song_requests        TEXT NOT NULL DEFAULT '',
			submitted_by         TEXT NOT NULL,
			created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_rsvps_user_id ON rsvps(user_id);
		CREATE INDEX IF NOT EXISTS idx_rsvps_created_at ON rsvps(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating rsvps table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS guest_messages (
			id         TEXT PRIMARY KEY,
			user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
			name       TEXT,
			message    TEXT NOT NULL,
			media_url  TEXT,
			is_public  INTEGER NOT NULL DEFAULT 1,
			approved   INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_guest_messages_created_at ON guest_messages(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating guest_messages table: %w", err)
	}

	if err := db.normalizeSubRecords(); err != nil {
		return fmt.Errorf("normalizing rsvp sub-records: %w", err)
	}

	return nil
}

// normalizeSubRecords rewrites children/plus_one values that are not in the
// canonical encoding (double-encoded strings, single objects, numeric ages).
// Rows that cannot be decoded are left untouched; readers still tolerate them.
func (db *DB) normalizeSubRecords() error {
	rows, err := db.conn.Query(`SELECT id, children, plus_one FROM rsvps`)
	if err != nil {
		return err
	}

	type fix struct {
		id, children string
		plusOne      sql.NullString
	}
	var fixes []fix

	for rows.Next() {
		var (
			id       string
			children string
			plusOne  sql.NullString
		)
		if err := rows.Scan(&id, &children, &plusOne); err != nil {
			rows.Close()
			return err
		}

		kids, err := model.DecodeChildren([]byte(children))
		if err != nil {
			continue
		}
		partner, err := model.DecodePlusOne([]byte(plusOne.String))
		if err != nil {
			continue
		}

		canonKids, err := model.EncodeChildren(kids)
		if err != nil {
			continue
		}
		canonPartner, err := model.EncodePlusOne(partner)
		if err != nil {
			continue
		}

		if canonKids != children || canonPartner != plusOne.String {
			fixes = append(fixes, fix{id: id, children: canonKids, plusOne: nullString(canonPartner)})
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, f := range fixes {
		if _, err := db.conn.Exec(
			`UPDATE rsvps SET children = ?, plus_one = ? WHERE id = ?`,
			f.children, f.plusOne, f.id,
		); err != nil {
			return fmt.Errorf("rewriting rsvp %s: %w", f.id, err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return nullString(*p)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}
