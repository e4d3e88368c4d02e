package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// schemaTmpl keeps chunk text and metadata in a plain table and the
// embeddings in a vec0 virtual table joined by rowid. vec0 keys must
// be integers, so the string chunk id maps to rid via the chunks
// table.
const schemaTmpl = `
CREATE TABLE IF NOT EXISTS chunks (
	rid      INTEGER PRIMARY KEY AUTOINCREMENT,
	id       TEXT NOT NULL UNIQUE,
	document TEXT NOT NULL,
	source   TEXT NOT NULL DEFAULT '',
	section  TEXT NOT NULL DEFAULT ''
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
	chunk_rid INTEGER PRIMARY KEY,
	embedding float[%d]
);
`

// SQLite implements Store backed by SQLite with the sqlite-vec
// extension for KNN queries.
type SQLite struct {
	db   *sql.DB
	dims int
}

var _ Store = (*SQLite)(nil)

// Open creates or opens the database at path with an embedding column
// of the given dimensionality. The dimensionality is fixed at table
// creation; reopening with a different value on an existing file is a
// caller error that surfaces on the first insert.
func Open(path string, dims int) (*SQLite, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vectorstore: invalid dimensions %d", dims)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(fmt.Sprintf(schemaTmpl, dims)); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: init schema: %w", err)
	}
	return &SQLite{db: db, dims: dims}, nil
}

// Upsert writes all records in one transaction. An existing id's row
// and vector are replaced; new ids are inserted.
func (s *SQLite) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin upsert: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if len(r.Embedding) != s.dims {
			return fmt.Errorf("vectorstore: record %s has %d dimensions, store expects %d", r.ID, len(r.Embedding), s.dims)
		}
		blob, err := sqlite_vec.SerializeFloat32(r.Embedding)
		if err != nil {
			return fmt.Errorf("vectorstore: serialize %s: %w", r.ID, err)
		}

		var rid int64
		err = tx.QueryRowContext(ctx, `SELECT rid FROM chunks WHERE id = ?`, r.ID).Scan(&rid)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.ExecContext(ctx,
				`INSERT INTO chunks (id, document, source, section) VALUES (?, ?, ?, ?)`,
				r.ID, r.Document, r.Source, r.Section)
			if err != nil {
				return fmt.Errorf("vectorstore: insert %s: %w", r.ID, err)
			}
			if rid, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("vectorstore: insert %s: %w", r.ID, err)
			}
		case err != nil:
			return fmt.Errorf("vectorstore: lookup %s: %w", r.ID, err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE chunks SET document = ?, source = ?, section = ? WHERE rid = ?`,
				r.Document, r.Source, r.Section, rid); err != nil {
				return fmt.Errorf("vectorstore: update %s: %w", r.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE chunk_rid = ?`, rid); err != nil {
				return fmt.Errorf("vectorstore: clear vector %s: %w", r.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_chunks (chunk_rid, embedding) VALUES (?, ?)`, rid, blob); err != nil {
			return fmt.Errorf("vectorstore: insert vector %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectorstore: commit upsert: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vectorstore: count: %w", err)
	}
	return n, nil
}

// Delete removes the given ids and their vectors. Unknown ids are
// ignored.
func (s *SQLite) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		var rid int64
		err := tx.QueryRowContext(ctx, `SELECT rid FROM chunks WHERE id = ?`, id).Scan(&rid)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("vectorstore: lookup %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE chunk_rid = ?`, rid); err != nil {
			return fmt.Errorf("vectorstore: delete vector %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE rid = ?`, rid); err != nil {
			return fmt.Errorf("vectorstore: delete %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectorstore: commit delete: %w", err)
	}
	return nil
}

// Query returns the k records whose embeddings are closest to the
// query embedding.
func (s *SQLite) Query(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: serialize query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document, c.source, c.section, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.rid = v.chunk_rid
		WHERE v.embedding MATCH ?
		ORDER BY v.distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Document, &h.Source, &h.Section, &h.Distance); err != nil {
			return nil, fmt.Errorf("vectorstore: scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: query rows: %w", err)
	}
	return hits, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
