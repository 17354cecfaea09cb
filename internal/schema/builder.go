package schema

import (
	"context"
	"fmt"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/adopter"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

// Builder constructs the traversal graph of a host bundle. It follows the
// same fields the walker follows: structural references to the block kind
// and shared references to the library item kind, never the collector field.
type Builder struct {
	reader store.SchemaReader
	opts   adopter.Options
}

// NewBuilder creates a builder over the given schema.
func NewBuilder(reader store.SchemaReader, opts adopter.Options) *Builder {
	return &Builder{reader: reader, opts: opts}
}

// Build returns every bundle reachable from kind/bundle. A reference field
// carries no bundle restriction, so it links to every bundle of its target
// kind. Cycles are kept in the graph; use Validate to report them.
func (b *Builder) Build(ctx context.Context, kind, bundle string) (*Graph, error) {
	if kind == "" || bundle == "" {
		return nil, fmt.Errorf("root kind and bundle are required")
	}

	g := NewGraph(kind, bundle)
	bundlesOf := make(map[string][]string)

	queue := []*Node{g.Nodes[g.Root]}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		defs, err := b.reader.FieldDefinitions(ctx, node.Kind, node.Bundle)
		if err != nil {
			return nil, fmt.Errorf("field definitions of %s: %w", node.Key, err)
		}

		for _, def := range defs {
			if def.Name == b.opts.CollectorField {
				continue
			}
			if content.IsRichText(def.Type) {
				node.TextFields = append(node.TextFields, def.Name)
				continue
			}
			if !b.follows(def) {
				continue
			}

			targets, ok := bundlesOf[def.TargetKind]
			if !ok {
				targets, err = b.reader.Bundles(ctx, def.TargetKind)
				if err != nil {
					return nil, fmt.Errorf("bundles of %s: %w", def.TargetKind, err)
				}
				bundlesOf[def.TargetKind] = targets
			}

			for _, target := range targets {
				key := NodeKey(def.TargetKind, target)
				if !g.HasNode(key) {
					queue = append(queue, g.AddNode(def.TargetKind, target))
				}
				g.AddEdge(node.Key, key, def.Name)
			}
		}
	}

	return g, nil
}

func (b *Builder) follows(def content.FieldDef) bool {
	switch def.Type {
	case content.FieldTypeRevisionReference:
		return def.TargetKind == b.opts.BlockKind
	case content.FieldTypeReference:
		return def.TargetKind == b.opts.LibraryItemKind
	}
	return false
}
