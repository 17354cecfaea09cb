// Package verifier audits stored hosts against the adoption invariants.
package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/adopter"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

// VerificationMethod selects how much of a host is checked.
type VerificationMethod string

const (
	// MethodStructure checks the collector field only (fast)
	MethodStructure VerificationMethod = "structure"
	// MethodFull also walks the host and reports embeds still waiting for adoption
	MethodFull VerificationMethod = "full"
	// MethodSkip skips verification entirely
	MethodSkip VerificationMethod = "skip"
)

// Problem kinds.
const (
	ProblemDuplicate     = "duplicate"      // block listed more than once
	ProblemDangling      = "dangling"       // listed block does not exist
	ProblemOwnerMismatch = "owner_mismatch" // listed block owned by something else
	ProblemPending       = "pending"        // embedded unowned block not yet adopted
)

// Problem is one invariant violation on a host.
type Problem struct {
	Kind    string
	BlockID int64
	UUID    string
	Detail  string
}

// VerifyResult holds the findings for a single host.
type VerifyResult struct {
	HostID        int64
	HostUUID      string
	Method        VerificationMethod
	BlocksChecked int
	Problems      []Problem
}

// OK reports whether the host passed.
func (r *VerifyResult) OK() bool {
	return len(r.Problems) == 0
}

// VerifyStats aggregates results over several hosts.
type VerifyStats struct {
	HostsVerified int
	HostsPassed   int
	HostsFailed   int
	BlocksChecked int
	Method        VerificationMethod
	Results       []*VerifyResult
}

// Scanner collects embedded identifiers without writing.
type Scanner interface {
	Scan(ctx context.Context, host *content.Record) (*adopter.IdentifierSet, adopter.WalkStats, error)
}

// Verifier checks hosts through a record accessor.
type Verifier struct {
	accessor store.RecordAccessor
	scanner  Scanner
	opts     adopter.Options
	method   VerificationMethod
	logger   *logger.Logger
}

// NewVerifier creates a verifier. scanner is required only for MethodFull.
func NewVerifier(accessor store.RecordAccessor, scanner Scanner, opts adopter.Options, method VerificationMethod, log *logger.Logger) (*Verifier, error) {
	if accessor == nil {
		return nil, fmt.Errorf("record accessor is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if method == "" {
		method = MethodStructure
	}
	switch method {
	case MethodStructure, MethodSkip:
	case MethodFull:
		if scanner == nil {
			return nil, fmt.Errorf("method %s needs a scanner", method)
		}
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", method)
	}

	return &Verifier{
		accessor: accessor,
		scanner:  scanner,
		opts:     opts,
		method:   method,
		logger:   log,
	}, nil
}

// VerifyHost checks one host. Problems are reported in the result; the
// error is reserved for storage failures.
func (v *Verifier) VerifyHost(ctx context.Context, host *content.Record) (*VerifyResult, error) {
	if host == nil {
		return nil, adopter.ErrNilHost
	}
	result := &VerifyResult{HostID: host.ID, HostUUID: host.UUID, Method: v.method}
	if v.method == MethodSkip {
		return result, nil
	}

	field := v.opts.CollectorField
	seen := make(map[int64]bool)
	for _, ref := range host.References(field) {
		if seen[ref.ID] {
			result.Problems = append(result.Problems, Problem{
				Kind:    ProblemDuplicate,
				BlockID: ref.ID,
				Detail:  fmt.Sprintf("%s lists block %d more than once", field, ref.ID),
			})
			continue
		}
		seen[ref.ID] = true
		result.BlocksChecked++

		block, err := v.accessor.LoadByID(ctx, v.opts.BlockKind, ref.ID)
		if errors.Is(err, store.ErrNotFound) {
			result.Problems = append(result.Problems, Problem{
				Kind:    ProblemDangling,
				BlockID: ref.ID,
				Detail:  fmt.Sprintf("%s references missing block %d", field, ref.ID),
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load block %d: %w", ref.ID, err)
		}

		want := content.Owner{Type: host.Kind, ID: host.ID, Field: field}
		if block.Owner != want {
			result.Problems = append(result.Problems, Problem{
				Kind:    ProblemOwnerMismatch,
				BlockID: block.ID,
				UUID:    block.UUID,
				Detail: fmt.Sprintf("owner is %s %d (%s), want %s %d (%s)",
					block.Owner.Type, block.Owner.ID, block.Owner.Field, want.Type, want.ID, want.Field),
			})
		}
	}

	if v.method == MethodFull {
		if err := v.checkPending(ctx, host, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// checkPending reports embedded blocks that exist, have no owner and would
// be adopted by the next run.
func (v *Verifier) checkPending(ctx context.Context, host *content.Record, result *VerifyResult) error {
	ids, _, err := v.scanner.Scan(ctx, host)
	if err != nil {
		return fmt.Errorf("scan host %d: %w", host.ID, err)
	}

	for _, id := range ids.Values() {
		block, err := v.accessor.LoadByUUID(ctx, v.opts.BlockKind, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load block %s: %w", id, err)
		}
		if !block.Owner.IsSet() {
			result.Problems = append(result.Problems, Problem{
				Kind:    ProblemPending,
				BlockID: block.ID,
				UUID:    id,
				Detail:  fmt.Sprintf("embedded block %s has no owner", id),
			})
		}
	}
	return nil
}

// Verify checks every host and returns an error when any host failed.
func (v *Verifier) Verify(ctx context.Context, hosts []*content.Record) (*VerifyStats, error) {
	stats := &VerifyStats{Method: v.method}
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return stats, nil
	}

	v.logger.Infof("Starting verification (method=%s) for %d hosts", v.method, len(hosts))

	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		result, err := v.VerifyHost(ctx, host)
		if err != nil {
			return stats, fmt.Errorf("verify host %s: %w", host.UUID, err)
		}

		stats.HostsVerified++
		stats.BlocksChecked += result.BlocksChecked
		stats.Results = append(stats.Results, result)

		if result.OK() {
			stats.HostsPassed++
			v.logger.WithHost(host).Debugw("verification passed", "blocks", result.BlocksChecked)
			continue
		}
		stats.HostsFailed++
		for _, p := range result.Problems {
			v.logger.WithHost(host).Warnw("verification problem", "kind", p.Kind, "block_id", p.BlockID, "detail", p.Detail)
		}
	}

	v.logger.Infof("Verification complete: %d hosts verified, %d passed, %d failed, %d blocks checked",
		stats.HostsVerified, stats.HostsPassed, stats.HostsFailed, stats.BlocksChecked)

	if stats.HostsFailed > 0 {
		return stats, fmt.Errorf("verification failed: %d hosts had problems", stats.HostsFailed)
	}
	return stats, nil
}
