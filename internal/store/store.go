// Package store defines the record-store contracts consumed by the adoption
// engine and the CLI. Backends live in the memory and sqlstore subpackages.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
)

// ErrNotFound is returned (wrapped) when a record or format does not exist.
var ErrNotFound = errors.New("not found")

// RecordAccessor loads and persists records and reads schema and format
// configuration.
type RecordAccessor interface {
	FieldDefinitions(ctx context.Context, kind, bundle string) ([]content.FieldDef, error)
	LoadByID(ctx context.Context, kind string, id int64) (*content.Record, error)
	LoadByUUID(ctx context.Context, kind, uuid string) (*content.Record, error)
	LoadFormat(ctx context.Context, name string) (*content.FormatConfig, error)
	Save(ctx context.Context, rec *content.Record) error
}

// ModuleChecker reports whether an optional feature module is enabled.
type ModuleChecker interface {
	IsModuleActive(ctx context.Context, name string) (bool, error)
}

// SchemaReader lists the bundles of a kind alongside their field definitions.
type SchemaReader interface {
	FieldDefinitions(ctx context.Context, kind, bundle string) ([]content.FieldDef, error)
	Bundles(ctx context.Context, kind string) ([]string, error)
}

// Store is the full backend surface used by the CLI.
type Store interface {
	RecordAccessor
	ModuleChecker
	SchemaReader
	Create(ctx context.Context, rec *content.Record) error
	ListUUIDs(ctx context.Context, kind, bundle string) ([]string, error)
}

// NewUUID returns a time-ordered identifier for a new record.
func NewUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
