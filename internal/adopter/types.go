// Package adopter discovers blocks embedded in rich text and attaches them to
// their host record's collector field.
package adopter

import (
	"errors"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/config"
)

// ErrNilHost is returned when Adopt, Scan or Collect is called without a host.
var ErrNilHost = errors.New("host record is nil")

// ErrUnsavedHost is returned when blocks would be adopted by a host that has
// no storage id yet. An owner id of 0 reads as unowned.
var ErrUnsavedHost = errors.New("host has no storage id")

// Options names the kinds and field the engine works with.
type Options struct {
	BlockKind       string
	LibraryItemKind string
	CollectorField  string
	EmbedFilter     string
	RequiredModule  string // empty disables the module check
}

// OptionsFromConfig maps the adoption settings onto engine options.
func OptionsFromConfig(cfg config.AdoptionConfig) Options {
	return Options{
		BlockKind:       cfg.BlockKind,
		LibraryItemKind: cfg.LibraryItemKind,
		CollectorField:  cfg.CollectorField,
		EmbedFilter:     cfg.EmbedFilter,
		RequiredModule:  cfg.RequiredModule,
	}
}

// IdentifierSet is a deduplicated set of block identifiers that remembers
// insertion order so reports are deterministic.
type IdentifierSet struct {
	m *orderedmap.OrderedMap[string, struct{}]
}

// NewIdentifierSet returns a set holding ids.
func NewIdentifierSet(ids ...string) *IdentifierSet {
	s := &IdentifierSet{m: orderedmap.NewOrderedMap[string, struct{}]()}
	s.AddAll(ids)
	return s
}

// Add inserts id and reports whether it was new. Empty ids are ignored.
func (s *IdentifierSet) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.m.Get(id); ok {
		return false
	}
	s.m.Set(id, struct{}{})
	return true
}

// AddAll inserts every id and returns how many were new.
func (s *IdentifierSet) AddAll(ids []string) int {
	added := 0
	for _, id := range ids {
		if s.Add(id) {
			added++
		}
	}
	return added
}

// Has reports whether id is in the set.
func (s *IdentifierSet) Has(id string) bool {
	_, ok := s.m.Get(id)
	return ok
}

// Len returns the number of identifiers.
func (s *IdentifierSet) Len() int {
	if s == nil {
		return 0
	}
	return s.m.Len()
}

// Values returns the identifiers in insertion order.
func (s *IdentifierSet) Values() []string {
	if s == nil {
		return nil
	}
	return s.m.Keys()
}

// WalkStats summarises one Collect call.
type WalkStats struct {
	RecordsVisited    int           // records whose fields were enumerated, the start record included
	MaxDepth          int           // deepest nesting reached; the start record is depth 0
	TextItemsScanned  int           // rich-text items handed to the scanner
	ReferencesSkipped int           // dangling or wrong-kind references
	Revisits          int           // references to records already visited in this walk
	Duration          time.Duration // wall time of the walk
}

// Host outcomes reported to a Recorder.
const (
	ResultAdopted = "adopted" // at least one block adopted
	ResultNoop    = "noop"    // walk ran, nothing to adopt
	ResultSkipped = "skipped" // preconditions not met
	ResultFailed  = "failed"  // walk or save error
)

// Candidate skip reasons reported to a Recorder.
const (
	SkipMissing = "missing" // no block with that identifier
	SkipOwned   = "owned"   // block already has an owner
)

// Recorder receives engine outcomes, typically to update metrics.
type Recorder interface {
	HostProcessed(result string)
	BlocksAdopted(n int)
	CandidateSkipped(reason string)
	WalkObserved(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) HostProcessed(string)       {}
func (nopRecorder) BlocksAdopted(int)          {}
func (nopRecorder) CandidateSkipped(string)    {}
func (nopRecorder) WalkObserved(time.Duration) {}
