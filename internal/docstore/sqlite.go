package docstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// OpenSQLite opens a SQLite-backed store at dbPath and runs migrations.
// ":memory:" gives a private database that lives as long as the store.
func OpenSQLite(dbPath string, opts ...Option) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes commits and keeps ":memory:" databases whole.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newDB(&sqliteEngine{db: db}, opts), nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

type sqliteEngine struct {
	db *sql.DB
}

func decodeData(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}

func loadDoc(row *sql.Row) (map[string]any, int64, error) {
	var raw string
	var version int64
	err := row.Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	data, err := decodeData(raw)
	if err != nil {
		return nil, 0, err
	}
	return data, version, nil
}

func (e *sqliteEngine) get(ctx context.Context, path string) (map[string]any, int64, error) {
	return loadDoc(e.db.QueryRowContext(ctx, `SELECT data, version FROM documents WHERE path = ?`, path))
}

// sqlValue converts a normalized filter value into a bind argument that
// compares equal to json_extract output.
func sqlValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, float64:
		return t, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return nil, fmt.Errorf("unsupported filter value %T", v)
}

// jsonPath quotes every segment of a dotted field so map keys outside the
// identifier alphabet still address the right member.
func jsonPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteString(`"`)
	}
	return b.String()
}

func (e *sqliteEngine) query(ctx context.Context, q Query, filterValues []any) ([]*Snapshot, error) {
	var where []string
	var args []any
	if q.group {
		where = append(where, "collection_id = ?")
	} else {
		where = append(where, "collection = ?")
	}
	args = append(args, q.collection)

	for i, f := range q.filters {
		v, err := sqlValue(filterValues[i])
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		switch f.Op {
		case Equal:
			if v == nil {
				where = append(where, "json_type(data, ?) = 'null'")
				args = append(args, jsonPath(f.Field))
				continue
			}
			where = append(where, "json_extract(data, ?) = ?")
		case ArrayContains:
			where = append(where, "EXISTS (SELECT 1 FROM json_each(documents.data, ?) WHERE json_each.value = ?)")
		}
		args = append(args, jsonPath(f.Field), v)
	}

	stmt := `SELECT path, data, version FROM documents WHERE ` + strings.Join(where, " AND ")

	var orders []string
	for _, o := range q.orders {
		dir := "ASC"
		if o.Direction == Desc {
			dir = "DESC"
		}
		orders = append(orders, "json_extract(data, ?) "+dir)
		args = append(args, jsonPath(o.Field))
	}
	orders = append(orders, "path ASC")
	stmt += ` ORDER BY ` + strings.Join(orders, ", ")

	if q.limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.limit)
	}

	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var path, raw string
		var version int64
		if err := rows.Scan(&path, &raw, &version); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, newSnapshot(path, data, version))
	}
	return out, rows.Err()
}

func (e *sqliteEngine) begin(ctx context.Context) (engineTx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{ctx: ctx, tx: tx}, nil
}

func (e *sqliteEngine) close() error {
	return e.db.Close()
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) load(path string) (map[string]any, int64, error) {
	return loadDoc(t.tx.QueryRowContext(t.ctx, `SELECT data, version FROM documents WHERE path = ?`, path))
}

func (t *sqliteTx) store(path string, data map[string]any, version int64) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	collection, id, err := splitDoc(path)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO documents (path, collection, collection_id, doc_id, data, version)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, version = excluded.version, updated_at = CURRENT_TIMESTAMP`,
		path, collection, collectionID(collection), id, string(raw), version,
	)
	return err
}

func (t *sqliteTx) remove(path string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM documents WHERE path = ?`, path)
	return err
}

func (t *sqliteTx) commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
