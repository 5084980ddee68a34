package dataset

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ferry/internal/models"
)

const tableSchemaSQL = `
CREATE TABLE reference (
	pattern            TEXT NOT NULL DEFAULT '',
	filename           TEXT NOT NULL DEFAULT '',
	output_folder      TEXT NOT NULL DEFAULT '',
	rename_template    TEXT NOT NULL DEFAULT '',
	extension_override TEXT NOT NULL DEFAULT ''
);
`

// table is a throwaway in-memory SQLite copy of one sheet. LIKE runs
// case-sensitively so '%' and '_' are the only loose parts of a pattern.
type table struct {
	db   *sql.DB
	conn *sql.Conn
}

// openTable creates the in-memory table and loads rows into it. A single
// connection is pinned because every ":memory:" connection is its own database.
func openTable(ctx context.Context, rows []models.ReferenceRow, matches []string) (*table, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("dataset: open table: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dataset: acquire conn: %w", err)
	}
	t := &table{db: db, conn: conn}

	if _, err := conn.ExecContext(ctx, `PRAGMA case_sensitive_like = ON`); err != nil {
		t.Close()
		return nil, fmt.Errorf("dataset: pragma: %w", err)
	}
	if _, err := conn.ExecContext(ctx, tableSchemaSQL); err != nil {
		t.Close()
		return nil, fmt.Errorf("dataset: apply schema: %w", err)
	}
	if err := t.load(ctx, rows, matches); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *table) load(ctx context.Context, rows []models.ReferenceRow, matches []string) error {
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dataset: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reference (pattern, filename, output_folder, rename_template, extension_override)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("dataset: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, matches[i], r.Filename, r.OutputFolder, r.RenameTemplate, r.ExtensionOverride); err != nil {
			return fmt.Errorf("dataset: insert row %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// like returns every row whose match cell is LIKE pattern, in sheet order.
func (t *table) like(ctx context.Context, pattern string) ([]models.ReferenceRow, error) {
	rows, err := t.conn.QueryContext(ctx, `
		SELECT filename, output_folder, rename_template, extension_override
		FROM reference
		WHERE pattern LIKE ?
		ORDER BY rowid
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("dataset: query: %w", err)
	}
	defer rows.Close()

	var out []models.ReferenceRow
	for rows.Next() {
		var r models.ReferenceRow
		if err := rows.Scan(&r.Filename, &r.OutputFolder, &r.RenameTemplate, &r.ExtensionOverride); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the pinned connection and the database.
func (t *table) Close() error {
	_ = t.conn.Close()
	return t.db.Close()
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
