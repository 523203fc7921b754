// Package sqlstore implements the relational-engine-as-key-value adapter.
// Every table is a namespace inside one "documents" table holding JSON text;
// SQLite (modernc.org/sqlite) and SQL Server (go-mssqldb) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Dialect selects placeholder syntax, ordering column and migrations.
type Dialect string

const (
	DialectSQLite    Dialect = "sqlite"
	DialectSQLServer Dialect = "sqlserver"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectSQLite, DialectSQLServer:
		return Dialect(s), nil
	}
	return "", fmt.Errorf("unknown sql dialect %q", s)
}

func (d Dialect) placeholder(n int) string {
	if d == DialectSQLServer {
		return fmt.Sprintf("@p%d", n)
	}
	return "?"
}

func (d Dialect) orderColumn() string {
	if d == DialectSQLServer {
		return "seq"
	}
	return "rowid"
}

// Store keeps documents as JSON text rows.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *logrus.Entry
}

var _ store.Store = (*Store)(nil)

// New migrates the schema and returns a store over db.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	if err := migrateSchema(db, dialect); err != nil {
		return nil, err
	}
	return &Store{
		db:      db,
		dialect: dialect,
		log:     logger.WithFields(logrus.Fields{"component": "sqlstore", "dialect": dialect}),
	}, nil
}

// query rewrites "?" placeholders into the dialect's syntax.
func (s *Store) query(q string) string {
	if s.dialect == DialectSQLite {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) Kind() models.Kind { return models.KindSQL }

func (s *Store) Capabilities() models.Capabilities {
	return models.DefaultCapabilities(models.KindSQL)
}

func encode(doc models.Document) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(b), nil
}

func decode(text string) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func timestamps(doc models.Document) (string, string) {
	created, _ := doc[store.FieldCreatedAt].(string)
	updated, _ := doc[store.FieldUpdatedAt].(string)
	return created, updated
}

func (s *Store) Create(ctx context.Context, table, id string, doc models.Document) (string, error) {
	if id == "" {
		id = store.NewID()
	}

	// Check if row exists
	var exists int
	err := s.db.QueryRowContext(ctx, s.query("SELECT 1 FROM documents WHERE tbl = ? AND id = ?"), table, id).Scan(&exists)
	if err == nil {
		return "", fmt.Errorf("%s/%s: %w", table, id, store.ErrAlreadyExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("error checking row existence: %w", err)
	}

	stamped := store.Stamp(doc)
	text, err := encode(stamped)
	if err != nil {
		return "", err
	}
	created, updated := timestamps(stamped)
	_, err = s.db.ExecContext(ctx,
		s.query("INSERT INTO documents (tbl, id, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"),
		table, id, text, created, updated)
	if err != nil {
		return "", fmt.Errorf("error inserting %s/%s: %w", table, id, err)
	}
	return id, nil
}

func (s *Store) Read(ctx context.Context, table, id string) (models.Document, error) {
	var text string
	err := s.db.QueryRowContext(ctx, s.query("SELECT doc FROM documents WHERE tbl = ? AND id = ?"), table, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s/%s: %w", table, id, err)
	}
	return decode(text)
}

// scan calls fn for each (id, json text) row of a table in insertion order.
func (s *Store) scan(ctx context.Context, table string, fn func(id, text string) error) error {
	q := "SELECT id, doc FROM documents WHERE tbl = ? ORDER BY " + s.dialect.orderColumn()
	rows, err := s.db.QueryContext(ctx, s.query(q), table)
	if err != nil {
		return fmt.Errorf("error reading table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return err
		}
		if err := fn(id, text); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) ReadAll(ctx context.Context, table string) (map[string]models.Document, error) {
	out := make(map[string]models.Document)
	err := s.scan(ctx, table, func(id, text string) error {
		doc, err := decode(text)
		if err != nil {
			s.log.WithError(err).WithField("id", id).Warn("skipping undecodable row")
			return nil
		}
		out[id] = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// gjsonPath escapes a field name so gjson treats it as a single key.
func gjsonPath(field string) string {
	var b strings.Builder
	for _, r := range field {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// matching scans the table and decodes only rows whose field equals value.
func (s *Store) matching(ctx context.Context, table, field string, value interface{}, limit int) (map[string]models.Document, error) {
	want := store.Normalize(value)
	path := gjsonPath(field)
	var out map[string]models.Document

	errStop := errors.New("stop")
	err := s.scan(ctx, table, func(id, text string) error {
		res := gjson.Get(text, path)
		if !res.Exists() || !reflect.DeepEqual(res.Value(), want) {
			return nil
		}
		doc, err := decode(text)
		if err != nil {
			return err
		}
		if out == nil {
			out = make(map[string]models.Document)
		}
		out[id] = doc
		if limit > 0 && len(out) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReadBy(ctx context.Context, table, field string, value interface{}) (models.Document, error) {
	docs, err := s.matching(ctx, table, field, value, 1)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		return doc, nil
	}
	return nil, nil
}

func (s *Store) GetItemsByKeyValue(ctx context.Context, table, field string, value interface{}) (map[string]models.Document, error) {
	return s.matching(ctx, table, field, value, 0)
}

func (s *Store) Update(ctx context.Context, table, id string, data models.Document) (models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var text string
	err = tx.QueryRowContext(ctx, s.query("SELECT doc FROM documents WHERE tbl = ? AND id = ?"), table, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", table, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s/%s: %w", table, id, err)
	}
	existing, err := decode(text)
	if err != nil {
		return nil, err
	}

	merged := store.Merge(existing, data)
	newText, err := encode(merged)
	if err != nil {
		return nil, err
	}
	_, updated := timestamps(merged)
	_, err = tx.ExecContext(ctx,
		s.query("UPDATE documents SET doc = ?, updated_at = ? WHERE tbl = ? AND id = ?"),
		newText, updated, table, id)
	if err != nil {
		return nil, fmt.Errorf("error updating %s/%s: %w", table, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return decode(newText)
}

func (s *Store) Delete(ctx context.Context, table, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.query("DELETE FROM documents WHERE tbl = ? AND id = ?"), table, id)
	if err != nil {
		return false, fmt.Errorf("error deleting %s/%s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) DeleteAll(ctx context.Context, table string) (bool, error) {
	if _, err := s.db.ExecContext(ctx, s.query("DELETE FROM documents WHERE tbl = ?"), table); err != nil {
		return false, fmt.Errorf("error clearing table %s: %w", table, err)
	}
	return true, nil
}

func (s *Store) Upload(ctx context.Context, file io.Reader, destinationPath string) (*store.UploadResult, error) {
	return nil, store.Unsupported("upload", models.KindSQL, "no object storage configured")
}

// Close closes the underlying database.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// Tables lists the table namespaces that currently hold documents.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT tbl FROM documents ORDER BY tbl")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}
