package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS remaps (
    layer       INTEGER NOT NULL,
    row         INTEGER NOT NULL,
    col         INTEGER NOT NULL,
    action      TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (layer, row, col)
);

CREATE INDEX IF NOT EXISTS idx_remaps_seq ON remaps(seq);
`

// SQLite stores the latest remap per binding in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. An empty path or
// ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path == "" || path == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Load implements Store.
func (s *SQLite) Load(ctx context.Context) ([]Remap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT layer, row, col, action FROM remaps ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query remaps: %w", err)
	}
	defer rows.Close()

	var out []Remap
	for rows.Next() {
		var layer, row, col uint8
		var notation string
		if err := rows.Scan(&layer, &row, &col, &notation); err != nil {
			return nil, fmt.Errorf("scan remap: %w", err)
		}
		a, err := action.Parse(notation)
		if err != nil {
			return nil, fmt.Errorf("remap layer %d %s: %w", layer, key.Pos(row, col), err)
		}
		out = append(out, Remap{Layer: layer, Position: key.Pos(row, col), Action: a})
	}
	return out, rows.Err()
}

// Save implements Store.
func (s *SQLite) Save(ctx context.Context, r Remap) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remaps (layer, row, col, action, seq, updated_at)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM remaps), ?)
		ON CONFLICT (layer, row, col) DO UPDATE SET
			action = excluded.action,
			seq = excluded.seq,
			updated_at = excluded.updated_at`,
		r.Layer, r.Position.Row, r.Position.Col, r.Action.String(), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save remap: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
