package adopter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/config"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/logger"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/markup"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store/memory"
)

func TestNewEngine_Validation(t *testing.T) {
	s := memory.New()
	proc := markup.NewEmbedCollector(config.DefaultAdoption().Markup)
	opts := OptionsFromConfig(config.DefaultAdoption())

	tests := []struct {
		name    string
		build   func() (*Engine, error)
		wantErr bool
	}{
		{"valid", func() (*Engine, error) { return NewEngine(s, s, proc, opts) }, false},
		{"nil accessor", func() (*Engine, error) { return NewEngine(nil, s, proc, opts) }, true},
		{"nil processor", func() (*Engine, error) { return NewEngine(s, s, nil, opts) }, true},
		{"nil modules with required module", func() (*Engine, error) { return NewEngine(s, nil, proc, opts) }, true},
		{"nil modules without required module", func() (*Engine, error) {
			o := opts
			o.RequiredModule = ""
			return NewEngine(s, nil, proc, o)
		}, false},
		{"no collector field", func() (*Engine, error) {
			o := opts
			o.CollectorField = ""
			return NewEngine(s, s, proc, o)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.build()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, e)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, e)
			}
		})
	}
}

// Two embeds in the body, one existing unowned block and one unknown id.
func TestAdopt_AdoptsExistingUnownedBlock(t *testing.T) {
	f := newFixture(t)
	b1 := f.block("u1", "text", content.Owner{}, "")
	host := f.host(embed("u1", "u2"), fmtFull)

	adopted, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)

	assert.Equal(t, []string{"u1"}, adopted)
	assert.Equal(t, []int64{b1.ID}, collectorIDs(host))
	assert.Equal(t, owned(content.KindNode, host.ID, collector), f.reload(b1).Owner)
}

func TestAdopt_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.block("u1", "text", content.Owner{}, "")
	f.block("u2", "text", content.Owner{}, "")
	host := f.host(embed("u1", "u2"), fmtFull)

	first, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, first)
	require.NoError(t, f.store.Save(f.ctx, host))

	saves := f.store.Saves()
	refs := collectorIDs(host)

	second, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, refs, collectorIDs(host))
	assert.Equal(t, saves, f.store.Saves(), "second run must not write")
}

// A host that has not been stored yet cannot own blocks: an owner id of 0
// would leave them adoptable by every later run.
func TestAdopt_UnsavedHostAdoptsNothing(t *testing.T) {
	f := newFixture(t)
	b1 := f.block("u1", "text", content.Owner{}, "")

	host := &content.Record{Kind: content.KindNode, Bundle: "page"}
	host.Append("field_body", content.Item{Value: embed("u1"), Format: fmtFull})

	rec := newFakeRecorder()
	f.engine.SetRecorder(rec)

	for i := 0; i < 2; i++ {
		adopted, err := f.engine.Adopt(f.ctx, host)
		require.NoError(t, err)
		assert.Empty(t, adopted)
	}

	assert.Empty(t, collectorIDs(host))
	assert.Equal(t, content.Owner{}, f.reload(b1).Owner)
	assert.Equal(t, 0, f.store.Saves())
	assert.Equal(t, 2, rec.hosts[ResultSkipped])

	ok, reason, err := f.engine.Ready(f.ctx, host)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "no storage id")

	// Once stored, the same host adopts the block exactly once.
	require.NoError(t, f.store.Create(f.ctx, host))
	first, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, first)
	assert.Equal(t, owned(content.KindNode, host.ID, collector), f.reload(b1).Owner)

	second, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestAdopt_NoDuplicateReferences(t *testing.T) {
	f := newFixture(t)
	b1 := f.block("u1", "text", content.Owner{}, "")

	nested := f.block("", "text", content.Owner{}, embed("u1"))
	host := f.host(embed("u1", "u1"), fmtFull)
	host.Append("field_blocks", content.Item{TargetKind: content.KindParagraph, TargetID: nested.ID})

	adopted, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, adopted)
	assert.Equal(t, []int64{b1.ID}, collectorIDs(host))
}

func TestAdopt_FormatGating(t *testing.T) {
	for _, format := range []string{fmtRestricted, fmtBasic, "unknown_format"} {
		t.Run(format, func(t *testing.T) {
			f := newFixture(t)
			b1 := f.block("u1", "text", content.Owner{}, "")
			host := f.host(embed("u1"), format)

			adopted, err := f.engine.Adopt(f.ctx, host)
			require.NoError(t, err)
			assert.Empty(t, adopted)
			assert.Empty(t, collectorIDs(host))
			assert.False(t, f.reload(b1).Owner.IsSet())
			assert.Equal(t, 0, f.proc.Calls(), "processor must not run on ineligible text")
		})
	}
}

func TestAdopt_NestedAndLibraryEmbeds(t *testing.T) {
	f := newFixture(t)
	deep := f.block("deep", "text", content.Owner{}, "")
	fromLib := f.block("from-lib", "text", content.Owner{}, "")

	inner := f.block("", "text", content.Owner{}, embed("deep"))
	middle := f.block("", "container", content.Owner{}, "")
	middle.Append("field_children", content.Item{TargetKind: content.KindParagraph, TargetID: inner.ID})
	require.NoError(t, f.store.Save(f.ctx, middle))

	lib := &content.Record{Kind: content.KindLibraryItem, Bundle: "paragraphs_library_item"}
	lib.Append("field_text", content.Item{Value: embed("from-lib"), Format: fmtFull})
	require.NoError(t, f.store.Create(f.ctx, lib))

	host := f.host("", "")
	host.Append("field_blocks", content.Item{TargetKind: content.KindParagraph, TargetID: middle.ID})
	host.Append("field_library", content.Item{TargetKind: content.KindLibraryItem, TargetID: lib.ID})

	adopted, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"deep", "from-lib"}, adopted)
	assert.ElementsMatch(t, []int64{deep.ID, fromLib.ID}, collectorIDs(host))

	for _, ref := range host.References(collector) {
		assert.Equal(t, content.KindParagraph, ref.Kind, "library items are never adopted")
	}
}

func TestAdopt_HostWithoutCollectorField(t *testing.T) {
	f := newFixture(t)
	b1 := f.block("u1", "text", content.Owner{}, "")

	host := &content.Record{Kind: content.KindNode, Bundle: "landing"}
	host.Append("field_body", content.Item{Value: embed("u1"), Format: fmtFull})
	require.NoError(t, f.store.Create(f.ctx, host))

	rec := newFakeRecorder()
	f.engine.SetRecorder(rec)

	adopted, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Empty(t, adopted)
	assert.False(t, f.reload(b1).Owner.IsSet())
	assert.Equal(t, 0, f.proc.Calls())
	assert.Equal(t, 1, rec.hosts[ResultSkipped])
}

func TestAdopt_RequiredModuleInactive(t *testing.T) {
	f := newFixture(t)
	f.store.SetModule("paragraphs_inline_entity_form", false)
	f.block("u1", "text", content.Owner{}, "")
	host := f.host(embed("u1"), fmtFull)

	adopted, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Empty(t, adopted)

	ok, reason, err := f.engine.Ready(f.ctx, host)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "paragraphs_inline_entity_form")
}

func TestAdopt_NilHost(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Adopt(f.ctx, nil)
	assert.ErrorIs(t, err, ErrNilHost)

	_, _, err = f.engine.Scan(f.ctx, nil)
	assert.ErrorIs(t, err, ErrNilHost)
}

func TestAdopt_PartialResultOnSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.block("u1", "text", content.Owner{}, "")
	f.block("u2", "text", content.Owner{}, "")
	host := f.host(embed("u1", "u2"), fmtFull)

	f.store.FailSaveFor("u2", errors.New("lock wait timeout"))
	rec := newFakeRecorder()
	f.engine.SetRecorder(rec)

	adopted, err := f.engine.Adopt(f.ctx, host)
	require.Error(t, err)
	assert.Equal(t, []string{"u1"}, adopted)
	assert.Equal(t, 1, rec.hosts[ResultFailed])
	assert.Equal(t, 1, rec.adopted)

	// Retrying once the store recovers picks up the rest.
	f.store.FailSaveFor("u2", nil)
	adopted, err = f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, adopted)
	assert.Len(t, collectorIDs(host), 2)
}

func TestAdopt_RecorderOutcomes(t *testing.T) {
	f := newFixture(t)
	f.block("u1", "text", content.Owner{}, "")
	f.block("taken", "text", owned(content.KindNode, 42, collector), "")
	host := f.host(embed("u1", "taken", "ghost"), fmtFull)

	rec := newFakeRecorder()
	f.engine.SetRecorder(rec)

	_, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)
	_, err = f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)

	empty := f.host("<p>nothing</p>", fmtFull)
	_, err = f.engine.Adopt(f.ctx, empty)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.hosts[ResultAdopted])
	assert.Equal(t, 2, rec.hosts[ResultNoop])
	assert.Equal(t, 1, rec.adopted)
	assert.Equal(t, 3, rec.skipped[SkipOwned], "u1 joins taken on the second run")
	assert.Equal(t, 2, rec.skipped[SkipMissing])
	assert.Equal(t, 3, rec.walks)
}

func TestScan_DoesNotWrite(t *testing.T) {
	f := newFixture(t)
	b1 := f.block("u1", "text", content.Owner{}, "")
	host := f.host(embed("u1", "u2"), fmtFull)

	ids, stats, err := f.engine.Scan(f.ctx, host)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids.Values())
	assert.Equal(t, 1, stats.RecordsVisited)
	assert.Equal(t, 0, f.store.Saves())
	assert.False(t, f.reload(b1).Owner.IsSet())
	assert.Empty(t, collectorIDs(host))
}

func TestAdopt_FormatLookupsCachedAcrossHosts(t *testing.T) {
	f := newFixture(t)
	loads := 0
	counting := &formatCountingStore{Store: f.store, loads: &loads}
	engine, err := NewEngine(counting, counting, f.proc, f.engine.opts)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		host := f.host(embed("x"), fmtFull)
		_, err := engine.Adopt(f.ctx, host)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loads)
}

type formatCountingStore struct {
	*memory.Store
	loads *int
}

func (s *formatCountingStore) LoadFormat(ctx context.Context, name string) (*content.FormatConfig, error) {
	*s.loads++
	return s.Store.LoadFormat(ctx, name)
}

func TestAdopt_Logging(t *testing.T) {
	f := newFixture(t)
	f.block("u1", "text", content.Owner{}, "")
	host := f.host(embed("u1"), fmtFull)

	core, logs := observer.New(zap.InfoLevel)
	f.engine.SetLogger(logger.FromZap(zap.New(core)))

	_, err := f.engine.Adopt(f.ctx, host)
	require.NoError(t, err)

	entries := logs.FilterMessage("adoption complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1), fields["adopted"])
	assert.Equal(t, host.UUID, fields["host_uuid"])
}
