// Package memory is an in-process record store used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

type recordKey struct {
	kind string
	id   int64
}

type bundleKey struct {
	kind   string
	bundle string
}

// Store keeps records, schema, formats and module state in maps. Records are
// copied on the way in and out so callers never alias stored state.
type Store struct {
	mu       sync.RWMutex
	records  map[recordKey]*content.Record
	byUUID   map[string]recordKey
	nextID   map[string]int64
	fields   map[bundleKey][]content.FieldDef
	formats  map[string]*content.FormatConfig
	modules  map[string]bool
	failSave map[string]error
	saves    int
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		records:  make(map[recordKey]*content.Record),
		byUUID:   make(map[string]recordKey),
		nextID:   make(map[string]int64),
		fields:   make(map[bundleKey][]content.FieldDef),
		formats:  make(map[string]*content.FormatConfig),
		modules:  make(map[string]bool),
		failSave: make(map[string]error),
	}
}

// DefineFields replaces the field definitions of a kind/bundle pair.
func (s *Store) DefineFields(kind, bundle string, defs ...content.FieldDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[bundleKey{kind, bundle}] = append([]content.FieldDef(nil), defs...)
}

// PutFormat stores or replaces a text format.
func (s *Store) PutFormat(f *content.FormatConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats[f.Name] = cloneFormat(f)
}

// SetModule marks a module active or inactive.
func (s *Store) SetModule(name string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[name] = active
}

// FailSaveFor makes every later Save of the record with this uuid return err.
// A nil err clears the failure.
func (s *Store) FailSaveFor(uuid string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failSave, uuid)
		return
	}
	s.failSave[uuid] = err
}

// Saves returns how many successful Save calls the store has accepted.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Create inserts a new record, assigning an id and a uuid when they are unset.
// The assigned values are written back to rec.
func (s *Store) Create(_ context.Context, rec *content.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UUID == "" {
		rec.UUID = store.NewUUID()
	}
	if _, dup := s.byUUID[rec.UUID]; dup {
		return fmt.Errorf("create %s: uuid %s already exists", rec.Kind, rec.UUID)
	}

	if rec.ID == 0 {
		s.nextID[rec.Kind]++
		rec.ID = s.nextID[rec.Kind]
	} else if rec.ID > s.nextID[rec.Kind] {
		s.nextID[rec.Kind] = rec.ID
	}

	key := recordKey{rec.Kind, rec.ID}
	if _, dup := s.records[key]; dup {
		return fmt.Errorf("create %s: id %d already exists", rec.Kind, rec.ID)
	}

	s.records[key] = rec.Clone()
	s.byUUID[rec.UUID] = key
	return nil
}

// Save replaces a stored record.
func (s *Store) Save(_ context.Context, rec *content.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failSave[rec.UUID]; ok {
		return err
	}

	key := recordKey{rec.Kind, rec.ID}
	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("save %s %d: %w", rec.Kind, rec.ID, store.ErrNotFound)
	}

	s.records[key] = rec.Clone()
	s.saves++
	return nil
}

// LoadByID returns a copy of the record.
func (s *Store) LoadByID(_ context.Context, kind string, id int64) (*content.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey{kind, id}]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
	}
	return rec.Clone(), nil
}

// LoadByUUID returns a copy of the record of the given kind.
func (s *Store) LoadByUUID(_ context.Context, kind, uuid string) (*content.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byUUID[uuid]
	if !ok || key.kind != kind {
		return nil, fmt.Errorf("%s %s: %w", kind, uuid, store.ErrNotFound)
	}
	return s.records[key].Clone(), nil
}

// FieldDefinitions returns the definitions in declaration order.
// Unknown bundles have no fields.
func (s *Store) FieldDefinitions(_ context.Context, kind, bundle string) ([]content.FieldDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]content.FieldDef(nil), s.fields[bundleKey{kind, bundle}]...), nil
}

// Bundles returns the sorted bundle names with field definitions for kind.
func (s *Store) Bundles(_ context.Context, kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bundles []string
	for k := range s.fields {
		if k.kind == kind {
			bundles = append(bundles, k.bundle)
		}
	}
	sort.Strings(bundles)
	return bundles, nil
}

// LoadFormat returns a copy of the named format.
func (s *Store) LoadFormat(_ context.Context, name string) (*content.FormatConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.formats[name]
	if !ok {
		return nil, fmt.Errorf("format %s: %w", name, store.ErrNotFound)
	}
	return cloneFormat(f), nil
}

// IsModuleActive reports the state set through SetModule. Unknown modules are inactive.
func (s *Store) IsModuleActive(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modules[name], nil
}

// ListUUIDs returns the uuids of kind, optionally restricted to bundle, in id order.
func (s *Store) ListUUIDs(_ context.Context, kind, bundle string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*content.Record
	for key, rec := range s.records {
		if key.kind != kind || (bundle != "" && rec.Bundle != bundle) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })

	uuids := make([]string, len(recs))
	for i, rec := range recs {
		uuids[i] = rec.UUID
	}
	return uuids, nil
}

func cloneFormat(f *content.FormatConfig) *content.FormatConfig {
	cp := &content.FormatConfig{Name: f.Name}
	if f.Filters != nil {
		cp.Filters = make(map[string]content.FilterConfig, len(f.Filters))
		for id, fc := range f.Filters {
			cp.Filters[id] = fc
		}
	}
	return cp
}
