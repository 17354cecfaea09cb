package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

// FieldDefinitions returns the fields of a kind/bundle pair in weight order.
func (s *Store) FieldDefinitions(ctx context.Context, kind, bundle string) ([]content.FieldDef, error) {
	rows, err := s.db.QueryContext(ctx, s.query(
		"SELECT field_name, field_type, target_kind FROM %s WHERE kind = ? AND bundle = ? ORDER BY weight, field_name",
		s.tables.fieldDefs), kind, bundle)
	if err != nil {
		return nil, fmt.Errorf("field definitions of %s.%s: %w", kind, bundle, err)
	}
	defer rows.Close()

	var defs []content.FieldDef
	for rows.Next() {
		var d content.FieldDef
		if err := rows.Scan(&d.Name, &d.Type, &d.TargetKind); err != nil {
			return nil, fmt.Errorf("field definitions of %s.%s: %w", kind, bundle, err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// Bundles returns the bundles of kind that have field definitions.
func (s *Store) Bundles(ctx context.Context, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.query(
		"SELECT DISTINCT bundle FROM %s WHERE kind = ? ORDER BY bundle", s.tables.fieldDefs), kind)
	if err != nil {
		return nil, fmt.Errorf("bundles of %s: %w", kind, err)
	}
	defer rows.Close()

	var bundles []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("bundles of %s: %w", kind, err)
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// DefineFields replaces the field definitions of a kind/bundle pair.
// Declaration order becomes the field weight.
func (s *Store) DefineFields(ctx context.Context, kind, bundle string, defs ...content.FieldDef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("define fields: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.query(
		"DELETE FROM %s WHERE kind = ? AND bundle = ?", s.tables.fieldDefs), kind, bundle); err != nil {
		return fmt.Errorf("define fields of %s.%s: %w", kind, bundle, err)
	}

	stmt := s.query(
		"INSERT INTO %s (kind, bundle, field_name, field_type, target_kind, weight) VALUES (?, ?, ?, ?, ?, ?)",
		s.tables.fieldDefs)
	for i, d := range defs {
		if _, err := tx.ExecContext(ctx, stmt, kind, bundle, d.Name, d.Type, d.TargetKind, i); err != nil {
			return fmt.Errorf("define field %s on %s.%s: %w", d.Name, kind, bundle, err)
		}
	}

	return tx.Commit()
}

// LoadFormat returns a text format with its filters.
func (s *Store) LoadFormat(ctx context.Context, name string) (*content.FormatConfig, error) {
	var found string
	err := s.db.QueryRowContext(ctx, s.query(
		"SELECT format_name FROM %s WHERE format_name = ?", s.tables.formats), name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("format %s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, s.query(
		"SELECT filter_id, status, weight FROM %s WHERE format_name = ?", s.tables.filters), name)
	if err != nil {
		return nil, fmt.Errorf("filters of format %s: %w", name, err)
	}
	defer rows.Close()

	f := &content.FormatConfig{Name: found, Filters: make(map[string]content.FilterConfig)}
	for rows.Next() {
		var (
			fc     content.FilterConfig
			status int64
		)
		if err := rows.Scan(&fc.ID, &status, &fc.Weight); err != nil {
			return nil, fmt.Errorf("filters of format %s: %w", name, err)
		}
		fc.Status = status != 0
		f.Filters[fc.ID] = fc
	}
	return f, rows.Err()
}

// PutFormat stores or replaces a text format and its filters.
func (s *Store) PutFormat(ctx context.Context, f *content.FormatConfig) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put format: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.query(
		"DELETE FROM %s WHERE format_name = ?", s.tables.filters), f.Name); err != nil {
		return fmt.Errorf("put format %s: %w", f.Name, err)
	}
	if _, err := tx.ExecContext(ctx, s.query(
		"DELETE FROM %s WHERE format_name = ?", s.tables.formats), f.Name); err != nil {
		return fmt.Errorf("put format %s: %w", f.Name, err)
	}
	if _, err := tx.ExecContext(ctx, s.query(
		"INSERT INTO %s (format_name) VALUES (?)", s.tables.formats), f.Name); err != nil {
		return fmt.Errorf("put format %s: %w", f.Name, err)
	}

	ids := make([]string, 0, len(f.Filters))
	for id := range f.Filters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stmt := s.query(
		"INSERT INTO %s (format_name, filter_id, status, weight) VALUES (?, ?, ?, ?)", s.tables.filters)
	for _, id := range ids {
		fc := f.Filters[id]
		if _, err := tx.ExecContext(ctx, stmt, f.Name, id, boolToInt(fc.Status), fc.Weight); err != nil {
			return fmt.Errorf("put filter %s on format %s: %w", id, f.Name, err)
		}
	}

	return tx.Commit()
}

// IsModuleActive reports whether the module row exists with a non-zero status.
func (s *Store) IsModuleActive(ctx context.Context, name string) (bool, error) {
	var status int64
	err := s.db.QueryRowContext(ctx, s.query(
		"SELECT status FROM %s WHERE module_name = ?", s.tables.modules), name).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("module %s: %w", name, err)
	}
	return status != 0, nil
}

// SetModule records a module as active or inactive.
func (s *Store) SetModule(ctx context.Context, name string, active bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set module: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.query(
		"DELETE FROM %s WHERE module_name = ?", s.tables.modules), name); err != nil {
		return fmt.Errorf("set module %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, s.query(
		"INSERT INTO %s (module_name, status) VALUES (?, ?)", s.tables.modules), name, boolToInt(active)); err != nil {
		return fmt.Errorf("set module %s: %w", name, err)
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
