package adopter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

// Walker traverses a record and every block or library item reachable through
// reference fields, collecting the identifiers embedded in eligible rich text.
// It never writes.
type Walker struct {
	accessor store.RecordAccessor
	scanner  *Scanner
	opts     Options
	logger   *logger.Logger
}

// NewWalker creates a walker.
func NewWalker(accessor store.RecordAccessor, scanner *Scanner, opts Options) *Walker {
	return &Walker{
		accessor: accessor,
		scanner:  scanner,
		opts:     opts,
		logger:   logger.NewNop(),
	}
}

// SetLogger sets the logger for the walker.
func (w *Walker) SetLogger(log *logger.Logger) {
	w.logger = log
}

// walkState is the accumulator for one Collect call.
type walkState struct {
	ids     *IdentifierSet
	visited map[content.Reference]bool
	stats   WalkStats
}

type queueItem struct {
	rec   *content.Record
	level int
}

// Collect walks rec breadth-first and returns the identifiers found. The
// collector field is never followed. Each record is visited at most once per
// call, so misconfigured reference cycles terminate.
func (w *Walker) Collect(ctx context.Context, rec *content.Record) (*IdentifierSet, WalkStats, error) {
	if rec == nil {
		return NewIdentifierSet(), WalkStats{}, ErrNilHost
	}
	start := time.Now()
	st := &walkState{
		ids:     NewIdentifierSet(),
		visited: make(map[content.Reference]bool),
	}

	st.visited[content.Reference{Kind: rec.Kind, ID: rec.ID}] = true
	queue := []queueItem{{rec: rec, level: 0}}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			st.stats.Duration = time.Since(start)
			return st.ids, st.stats, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		children, err := w.visit(ctx, item, st)
		if err != nil {
			st.stats.Duration = time.Since(start)
			return st.ids, st.stats, err
		}
		queue = append(queue, children...)
	}

	st.stats.Duration = time.Since(start)
	w.logger.Debugw("walk complete",
		"identifiers", st.ids.Len(),
		"records_visited", st.stats.RecordsVisited,
		"max_depth", st.stats.MaxDepth,
		"duration", st.stats.Duration,
	)
	return st.ids, st.stats, nil
}

// visit scans the text fields of one record and returns the referenced
// records still to be walked.
func (w *Walker) visit(ctx context.Context, item queueItem, st *walkState) ([]queueItem, error) {
	rec := item.rec
	st.stats.RecordsVisited++
	if item.level > st.stats.MaxDepth {
		st.stats.MaxDepth = item.level
	}

	defs, err := w.accessor.FieldDefinitions(ctx, rec.Kind, rec.Bundle)
	if err != nil {
		return nil, fmt.Errorf("field definitions of %s.%s: %w", rec.Kind, rec.Bundle, err)
	}

	var next []queueItem
	for _, def := range defs {
		if def.Name == w.opts.CollectorField {
			continue
		}

		switch {
		case def.Type == content.FieldTypeRevisionReference && def.TargetKind == w.opts.BlockKind,
			def.Type == content.FieldTypeReference && def.TargetKind == w.opts.LibraryItemKind:
			children, err := w.follow(ctx, rec, def, st)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				next = append(next, queueItem{rec: child, level: item.level + 1})
			}

		case content.IsRichText(def.Type) && !rec.IsEmpty(def.Name):
			if err := w.scanText(ctx, rec, def.Name, st); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

// follow loads the targets of a reference field, skipping dangling,
// wrong-kind and already visited targets.
func (w *Walker) follow(ctx context.Context, rec *content.Record, def content.FieldDef, st *walkState) ([]*content.Record, error) {
	var out []*content.Record
	for _, ref := range rec.References(def.Name) {
		if ref.Kind != "" && ref.Kind != def.TargetKind {
			st.stats.ReferencesSkipped++
			w.logger.Debugw("skipping wrong-kind reference",
				"field", def.Name, "expected", def.TargetKind, "kind", ref.Kind, "id", ref.ID)
			continue
		}

		key := content.Reference{Kind: def.TargetKind, ID: ref.ID}
		if st.visited[key] {
			st.stats.Revisits++
			w.logger.Debugw("skipping revisit", "kind", key.Kind, "id", key.ID, "field", def.Name)
			continue
		}

		target, err := w.accessor.LoadByID(ctx, def.TargetKind, ref.ID)
		if errors.Is(err, store.ErrNotFound) {
			st.stats.ReferencesSkipped++
			w.logger.Debugw("skipping dangling reference", "field", def.Name, "kind", key.Kind, "id", key.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s %d referenced by %s: %w", def.TargetKind, ref.ID, def.Name, err)
		}
		if target.Kind != def.TargetKind {
			st.stats.ReferencesSkipped++
			w.logger.Debugw("skipping wrong-kind target",
				"field", def.Name, "expected", def.TargetKind, "kind", target.Kind, "id", ref.ID)
			continue
		}

		st.visited[key] = true
		out = append(out, target)
	}
	return out, nil
}

// scanText feeds every non-blank item of a rich-text field to the scanner,
// value and summary together, each with its own format.
func (w *Walker) scanText(ctx context.Context, rec *content.Record, field string, st *walkState) error {
	for delta, it := range rec.Get(field) {
		text := it.Value + it.Summary
		if text == "" {
			continue
		}

		st.stats.TextItemsScanned++
		ids, err := w.scanner.Extract(ctx, text, it.Format)
		if err != nil {
			return fmt.Errorf("scan %s[%d] of %s %d: %w", field, delta, rec.Kind, rec.ID, err)
		}
		if added := st.ids.AddAll(ids); added > 0 {
			w.logger.WithRecord(rec).Debugw("embedded identifiers found",
				"field", field, "delta", delta, "new", added)
		}
	}
	return nil
}
