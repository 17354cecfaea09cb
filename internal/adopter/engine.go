package adopter

import (
	"context"
	"fmt"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/markup"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

// Engine wires the gate, scanner, walker and reconciler together. One engine
// may serve many hosts; the format cache lives as long as the engine.
type Engine struct {
	accessor   store.RecordAccessor
	modules    store.ModuleChecker
	opts       Options
	gate       *FormatGate
	walker     *Walker
	reconciler *Reconciler
	recorder   Recorder
	logger     *logger.Logger
}

// NewEngine creates an engine. modules may be nil when opts.RequiredModule is empty.
func NewEngine(accessor store.RecordAccessor, modules store.ModuleChecker, processor markup.Processor, opts Options) (*Engine, error) {
	if accessor == nil {
		return nil, fmt.Errorf("record accessor is nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("text processor is nil")
	}
	if modules == nil && opts.RequiredModule != "" {
		return nil, fmt.Errorf("module checker is nil but module %q is required", opts.RequiredModule)
	}
	if opts.CollectorField == "" || opts.BlockKind == "" {
		return nil, fmt.Errorf("collector field and block kind are required")
	}

	gate := NewFormatGate(accessor, opts.EmbedFilter)
	scanner := NewScanner(gate, processor)

	return &Engine{
		accessor:   accessor,
		modules:    modules,
		opts:       opts,
		gate:       gate,
		walker:     NewWalker(accessor, scanner, opts),
		reconciler: NewReconciler(accessor, opts),
		recorder:   nopRecorder{},
		logger:     logger.NewNop(),
	}, nil
}

// SetLogger sets the logger for the engine and its parts.
func (e *Engine) SetLogger(log *logger.Logger) {
	e.logger = log
	e.gate.SetLogger(log)
	e.walker.SetLogger(log)
	e.reconciler.SetLogger(log)
}

// SetRecorder sets where outcomes are reported.
func (e *Engine) SetRecorder(rec Recorder) {
	if rec == nil {
		rec = nopRecorder{}
	}
	e.recorder = rec
	e.reconciler.SetRecorder(rec)
}

// Ready reports whether adoption applies to host: it must have a storage id,
// its schema must carry the collector field and the required module must be
// active. reason explains a false result.
func (e *Engine) Ready(ctx context.Context, host *content.Record) (ok bool, reason string, err error) {
	if host == nil {
		return false, "", ErrNilHost
	}
	if host.ID == 0 {
		return false, fmt.Sprintf("%s.%s %s", host.Kind, host.Bundle, ErrUnsavedHost), nil
	}

	defs, err := e.accessor.FieldDefinitions(ctx, host.Kind, host.Bundle)
	if err != nil {
		return false, "", fmt.Errorf("field definitions of %s.%s: %w", host.Kind, host.Bundle, err)
	}
	hasField := false
	for _, def := range defs {
		if def.Name == e.opts.CollectorField {
			hasField = true
			break
		}
	}
	if !hasField {
		return false, fmt.Sprintf("%s.%s has no %s field", host.Kind, host.Bundle, e.opts.CollectorField), nil
	}

	if e.opts.RequiredModule != "" {
		active, err := e.modules.IsModuleActive(ctx, e.opts.RequiredModule)
		if err != nil {
			return false, "", fmt.Errorf("module %s: %w", e.opts.RequiredModule, err)
		}
		if !active {
			return false, fmt.Sprintf("module %s is not active", e.opts.RequiredModule), nil
		}
	}

	return true, "", nil
}

// Scan runs the precondition check and the walk without writing anything.
// A host that is not ready yields an empty set.
func (e *Engine) Scan(ctx context.Context, host *content.Record) (*IdentifierSet, WalkStats, error) {
	ok, reason, err := e.Ready(ctx, host)
	if err != nil {
		return NewIdentifierSet(), WalkStats{}, err
	}
	if !ok {
		e.logger.WithHost(host).Debugw("adoption not applicable", "reason", reason)
		return NewIdentifierSet(), WalkStats{}, nil
	}

	ids, stats, err := e.walker.Collect(ctx, host)
	e.recorder.WalkObserved(stats.Duration)
	return ids, stats, err
}

// Adopt discovers the blocks embedded anywhere under host and adopts the
// unowned ones. It returns the identifiers adopted by this call. The host's
// collector field is updated in memory; persisting the host is the caller's
// job. Hosts that are not ready return an empty result and no error.
func (e *Engine) Adopt(ctx context.Context, host *content.Record) ([]string, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	log := e.logger.WithHost(host)

	ok, reason, err := e.Ready(ctx, host)
	if err != nil {
		e.recorder.HostProcessed(ResultFailed)
		return nil, err
	}
	if !ok {
		log.Debugw("adoption not applicable", "reason", reason)
		e.recorder.HostProcessed(ResultSkipped)
		return []string{}, nil
	}

	ids, stats, err := e.walker.Collect(ctx, host)
	e.recorder.WalkObserved(stats.Duration)
	if err != nil {
		e.recorder.HostProcessed(ResultFailed)
		return nil, fmt.Errorf("collect embedded blocks: %w", err)
	}
	if ids.Len() == 0 {
		log.Debugw("no embedded blocks found", "records_visited", stats.RecordsVisited)
		e.recorder.HostProcessed(ResultNoop)
		return []string{}, nil
	}

	adopted, err := e.reconciler.Reconcile(ctx, ids, host)
	e.recorder.BlocksAdopted(len(adopted))
	if err != nil {
		e.recorder.HostProcessed(ResultFailed)
		log.Errorw("adoption aborted", "adopted", len(adopted), "error", err)
		return adopted, err
	}

	if len(adopted) == 0 {
		e.recorder.HostProcessed(ResultNoop)
	} else {
		e.recorder.HostProcessed(ResultAdopted)
	}

	log.Infow("adoption complete",
		"candidates", ids.Len(),
		"adopted", len(adopted),
		"records_visited", stats.RecordsVisited,
		"max_depth", stats.MaxDepth,
		"duration", stats.Duration,
	)
	return adopted, nil
}
