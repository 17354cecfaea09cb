package sqlstore

import (
	"context"
	"fmt"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/sqlutil"
)

// Base table names; a configured prefix is prepended to each.
const (
	tableRecords    = "records"
	tableFieldDefs  = "field_definitions"
	tableFieldItems = "field_items"
	tableFormats    = "text_formats"
	tableFilters    = "format_filters"
	tableModules    = "modules"
)

// tableNames holds the quoted, prefixed table identifiers.
type tableNames struct {
	records    string
	fieldDefs  string
	fieldItems string
	formats    string
	filters    string
	modules    string
}

func newTableNames(d sqlutil.Dialect, prefix string) (tableNames, error) {
	var t tableNames
	for _, e := range []struct {
		dst  *string
		name string
	}{
		{&t.records, tableRecords},
		{&t.fieldDefs, tableFieldDefs},
		{&t.fieldItems, tableFieldItems},
		{&t.formats, tableFormats},
		{&t.filters, tableFilters},
		{&t.modules, tableModules},
	} {
		q, err := d.QuoteIdentifierSafe(prefix + e.name)
		if err != nil {
			return tableNames{}, err
		}
		*e.dst = q
	}
	return t, nil
}

// columnTypes are the dialect-specific type names used by the DDL.
type columnTypes struct {
	id   string // auto-increment primary key
	key  string // indexed short string
	text string // unbounded text
	num  string // 64-bit integer
}

func typesFor(d sqlutil.Dialect) columnTypes {
	switch d {
	case sqlutil.Postgres:
		return columnTypes{id: "BIGSERIAL PRIMARY KEY", key: "TEXT", text: "TEXT", num: "BIGINT"}
	case sqlutil.SQLite:
		return columnTypes{id: "INTEGER PRIMARY KEY AUTOINCREMENT", key: "TEXT", text: "TEXT", num: "INTEGER"}
	default:
		return columnTypes{id: "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", key: "VARCHAR(191)", text: "LONGTEXT", num: "BIGINT"}
	}
}

// schemaStatements returns the CREATE TABLE statements for the store.
func (s *Store) schemaStatements() []string {
	c := typesFor(s.dialect)
	t := s.tables

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	uuid %s NOT NULL UNIQUE,
	kind %s NOT NULL,
	bundle %s NOT NULL,
	owner_type %s NOT NULL DEFAULT '',
	owner_id %s NOT NULL DEFAULT 0,
	owner_field %s NOT NULL DEFAULT ''
)`, t.records, c.id, c.key, c.key, c.key, c.key, c.num, c.key),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	kind %s NOT NULL,
	bundle %s NOT NULL,
	field_name %s NOT NULL,
	field_type %s NOT NULL,
	target_kind %s NOT NULL DEFAULT '',
	weight %s NOT NULL DEFAULT 0,
	PRIMARY KEY (kind, bundle, field_name)
)`, t.fieldDefs, c.key, c.key, c.key, c.key, c.key, c.num),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	record_id %s NOT NULL,
	field_name %s NOT NULL,
	delta %s NOT NULL,
	item_value %s NOT NULL,
	item_summary %s NOT NULL,
	item_format %s NOT NULL DEFAULT '',
	target_kind %s NOT NULL DEFAULT '',
	target_id %s NOT NULL DEFAULT 0,
	PRIMARY KEY (record_id, field_name, delta)
)`, t.fieldItems, c.num, c.key, c.num, c.text, c.text, c.key, c.key, c.num),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	format_name %s NOT NULL PRIMARY KEY
)`, t.formats, c.key),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	format_name %s NOT NULL,
	filter_id %s NOT NULL,
	status %s NOT NULL DEFAULT 0,
	weight %s NOT NULL DEFAULT 0,
	PRIMARY KEY (format_name, filter_id)
)`, t.filters, c.key, c.key, c.num, c.num),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	module_name %s NOT NULL PRIMARY KEY,
	status %s NOT NULL DEFAULT 0
)`, t.modules, c.key, c.num),
	}
}

// EnsureSchema creates any missing tables. Existing tables are left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
