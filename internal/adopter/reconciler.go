package adopter

import (
	"context"
	"errors"
	"fmt"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

// Reconciler attaches unowned blocks to a host.
type Reconciler struct {
	accessor store.RecordAccessor
	opts     Options
	recorder Recorder
	logger   *logger.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(accessor store.RecordAccessor, opts Options) *Reconciler {
	return &Reconciler{
		accessor: accessor,
		opts:     opts,
		recorder: nopRecorder{},
		logger:   logger.NewNop(),
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(log *logger.Logger) {
	r.logger = log
}

// SetRecorder sets where skip reasons are reported.
func (r *Reconciler) SetRecorder(rec Recorder) {
	if rec == nil {
		rec = nopRecorder{}
	}
	r.recorder = rec
}

// Reconcile adopts every unowned block in ids: it sets the block's owner to
// host, saves the block, and appends it to the host's collector field unless
// already listed. Blocks that do not exist or already have an owner are
// skipped. The host is changed in memory only.
//
// A load or save error stops the run; the identifiers adopted before it are
// returned alongside the error and stay adopted. A host without a storage id
// is rejected with ErrUnsavedHost before anything is written.
func (r *Reconciler) Reconcile(ctx context.Context, ids *IdentifierSet, host *content.Record) ([]string, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if host.ID == 0 {
		return nil, ErrUnsavedHost
	}
	field := r.opts.CollectorField

	existing := make(map[int64]bool)
	for _, ref := range host.References(field) {
		existing[ref.ID] = true
	}

	adopted := make([]string, 0, ids.Len())
	for _, id := range ids.Values() {
		if err := ctx.Err(); err != nil {
			return adopted, err
		}

		block, err := r.accessor.LoadByUUID(ctx, r.opts.BlockKind, id)
		if errors.Is(err, store.ErrNotFound) {
			r.recorder.CandidateSkipped(SkipMissing)
			r.logger.Debugw("embedded block not found", "uuid", id)
			continue
		}
		if err != nil {
			return adopted, fmt.Errorf("load %s %s: %w", r.opts.BlockKind, id, err)
		}
		if block.Kind != r.opts.BlockKind {
			r.recorder.CandidateSkipped(SkipMissing)
			continue
		}

		if block.Owner.IsSet() {
			r.recorder.CandidateSkipped(SkipOwned)
			r.logger.Debugw("embedded block already owned",
				"uuid", id, "owner_type", block.Owner.Type, "owner_id", block.Owner.ID)
			continue
		}

		block.Owner = content.Owner{Type: host.Kind, ID: host.ID, Field: field}
		if err := r.accessor.Save(ctx, block); err != nil {
			return adopted, fmt.Errorf("save adopted %s %s: %w", r.opts.BlockKind, id, err)
		}

		if !existing[block.ID] {
			host.Append(field, content.Item{TargetKind: r.opts.BlockKind, TargetID: block.ID})
			existing[block.ID] = true
		}

		adopted = append(adopted, id)
		r.logger.Debugw("block adopted", "uuid", id, "block_id", block.ID)
	}

	return adopted, nil
}
