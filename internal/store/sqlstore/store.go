// Package sqlstore implements the record store on database/sql for MySQL,
// Postgres and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/sqlutil"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

// Store is a SQL-backed record store.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
	tables  tableNames
	logger  *logger.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool. prefix is prepended to every table name and must
// be a plain identifier.
func New(db *sql.DB, dialect sqlutil.Dialect, prefix string) (*Store, error) {
	tables, err := newTableNames(dialect, prefix)
	if err != nil {
		return nil, fmt.Errorf("table prefix: %w", err)
	}
	return &Store{
		db:      db,
		dialect: dialect,
		tables:  tables,
		logger:  logger.NewNop(),
	}, nil
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(log *logger.Logger) {
	s.logger = log
}

// query formats a statement with table names and rebinds its placeholders.
func (s *Store) query(format string, tables ...interface{}) string {
	return s.dialect.Rebind(fmt.Sprintf(format, tables...))
}

// ============================================================================
// Records
// ============================================================================

// LoadByID loads a record and its field items.
func (s *Store) LoadByID(ctx context.Context, kind string, id int64) (*content.Record, error) {
	row := s.db.QueryRowContext(ctx, s.query(
		"SELECT id, uuid, kind, bundle, owner_type, owner_id, owner_field FROM %s WHERE kind = ? AND id = ?",
		s.tables.records), kind, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	if err := s.loadItems(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// LoadByUUID loads a record of the given kind by its uuid.
func (s *Store) LoadByUUID(ctx context.Context, kind, uuid string) (*content.Record, error) {
	row := s.db.QueryRowContext(ctx, s.query(
		"SELECT id, uuid, kind, bundle, owner_type, owner_id, owner_field FROM %s WHERE kind = ? AND uuid = ?",
		s.tables.records), kind, uuid)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, uuid, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, uuid, err)
	}
	if err := s.loadItems(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRecord(row *sql.Row) (*content.Record, error) {
	rec := &content.Record{}
	err := row.Scan(&rec.ID, &rec.UUID, &rec.Kind, &rec.Bundle,
		&rec.Owner.Type, &rec.Owner.ID, &rec.Owner.Field)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) loadItems(ctx context.Context, rec *content.Record) error {
	rows, err := s.db.QueryContext(ctx, s.query(
		"SELECT field_name, item_value, item_summary, item_format, target_kind, target_id FROM %s WHERE record_id = ? ORDER BY field_name, delta",
		s.tables.fieldItems), rec.ID)
	if err != nil {
		return fmt.Errorf("load items of %s %d: %w", rec.Kind, rec.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var field string
		var it content.Item
		if err := rows.Scan(&field, &it.Value, &it.Summary, &it.Format, &it.TargetKind, &it.TargetID); err != nil {
			return fmt.Errorf("scan item of %s %d: %w", rec.Kind, rec.ID, err)
		}
		rec.Append(field, it)
	}
	return rows.Err()
}

// Save rewrites the record row and all its field items in one transaction.
func (s *Store) Save(ctx context.Context, rec *content.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %s %d: begin: %w", rec.Kind, rec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.query(
		"UPDATE %s SET bundle = ?, owner_type = ?, owner_id = ?, owner_field = ? WHERE kind = ? AND id = ?",
		s.tables.records),
		rec.Bundle, rec.Owner.Type, rec.Owner.ID, rec.Owner.Field, rec.Kind, rec.ID)
	if err != nil {
		return fmt.Errorf("save %s %d: %w", rec.Kind, rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save %s %d: %w", rec.Kind, rec.ID, store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, s.query(
		"DELETE FROM %s WHERE record_id = ?", s.tables.fieldItems), rec.ID); err != nil {
		return fmt.Errorf("save %s %d: clear items: %w", rec.Kind, rec.ID, err)
	}
	if err := s.insertItems(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s %d: commit: %w", rec.Kind, rec.ID, err)
	}

	s.logger.Debugw("record saved", "kind", rec.Kind, "id", rec.ID, "uuid", rec.UUID)
	return nil
}

// Create inserts a new record and its items. A uuid is generated when empty;
// the assigned id and uuid are written back to rec.
func (s *Store) Create(ctx context.Context, rec *content.Record) error {
	if rec.UUID == "" {
		rec.UUID = store.NewUUID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create %s: begin: %w", rec.Kind, err)
	}
	defer func() { _ = tx.Rollback() }()

	args := []interface{}{rec.UUID, rec.Kind, rec.Bundle, rec.Owner.Type, rec.Owner.ID, rec.Owner.Field}
	insert := "INSERT INTO %s (uuid, kind, bundle, owner_type, owner_id, owner_field) VALUES (?, ?, ?, ?, ?, ?)"

	if s.dialect == sqlutil.Postgres {
		if err := tx.QueryRowContext(ctx, s.query(insert+" RETURNING id", s.tables.records), args...).Scan(&rec.ID); err != nil {
			return fmt.Errorf("create %s %s: %w", rec.Kind, rec.UUID, err)
		}
	} else {
		res, err := tx.ExecContext(ctx, s.query(insert, s.tables.records), args...)
		if err != nil {
			return fmt.Errorf("create %s %s: %w", rec.Kind, rec.UUID, err)
		}
		if rec.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("create %s %s: last insert id: %w", rec.Kind, rec.UUID, err)
		}
	}

	if err := s.insertItems(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create %s %s: commit: %w", rec.Kind, rec.UUID, err)
	}
	return nil
}

// insertItems writes every field item of rec, fields in name order.
func (s *Store) insertItems(ctx context.Context, tx *sql.Tx, rec *content.Record) error {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	stmt := s.query(
		"INSERT INTO %s (record_id, field_name, delta, item_value, item_summary, item_format, target_kind, target_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.tables.fieldItems)

	for _, name := range names {
		for delta, it := range rec.Fields[name] {
			if _, err := tx.ExecContext(ctx, stmt,
				rec.ID, name, delta, it.Value, it.Summary, it.Format, it.TargetKind, it.TargetID); err != nil {
				return fmt.Errorf("write %s[%d] of %s %d: %w", name, delta, rec.Kind, rec.ID, err)
			}
		}
	}
	return nil
}

// ListUUIDs returns the uuids of kind in id order. An empty bundle matches all bundles.
func (s *Store) ListUUIDs(ctx context.Context, kind, bundle string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if bundle == "" {
		rows, err = s.db.QueryContext(ctx, s.query(
			"SELECT uuid FROM %s WHERE kind = ? ORDER BY id", s.tables.records), kind)
	} else {
		rows, err = s.db.QueryContext(ctx, s.query(
			"SELECT uuid FROM %s WHERE kind = ? AND bundle = ? ORDER BY id", s.tables.records), kind, bundle)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		uuids = append(uuids, u)
	}
	return uuids, rows.Err()
}
