package adopter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/config"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/markup"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store/memory"
)

const (
	collector = "field_embedded_paragraphs"

	fmtFull       = "full_html"       // entity_embed enabled
	fmtRestricted = "restricted_html" // entity_embed present but disabled
	fmtBasic      = "basic_html"      // no entity_embed filter
)

// embed renders the markup an editor produces for inline blocks.
func embed(uuids ...string) string {
	var b strings.Builder
	b.WriteString("<p>Intro</p>")
	for _, u := range uuids {
		fmt.Fprintf(&b, `<drupal-entity data-entity-type="paragraph" data-entity-uuid="%s"></drupal-entity>`, u)
	}
	return b.String()
}

// countingProcessor records how often the text processor runs.
type countingProcessor struct {
	inner markup.Processor
	mu    sync.Mutex
	calls int
}

func (p *countingProcessor) Process(ctx context.Context, text string) (markup.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.inner.Process(ctx, text)
}

func (p *countingProcessor) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeRecorder captures engine outcomes.
type fakeRecorder struct {
	hosts   map[string]int
	adopted int
	skipped map[string]int
	walks   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{hosts: map[string]int{}, skipped: map[string]int{}}
}

func (r *fakeRecorder) HostProcessed(result string)    { r.hosts[result]++ }
func (r *fakeRecorder) BlocksAdopted(n int)            { r.adopted += n }
func (r *fakeRecorder) CandidateSkipped(reason string) { r.skipped[reason]++ }
func (r *fakeRecorder) WalkObserved(time.Duration)     { r.walks++ }

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	proc   *countingProcessor
	engine *Engine
}

// newFixture builds a store with a page host bundle, text and container
// block bundles, a library item bundle, three text formats and the required
// module enabled.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memory.New()
	s.DefineFields(content.KindNode, "page",
		content.FieldDef{Name: "field_body", Type: content.FieldTypeTextWithSummary},
		content.FieldDef{Name: "field_blocks", Type: content.FieldTypeRevisionReference, TargetKind: content.KindParagraph},
		content.FieldDef{Name: "field_library", Type: content.FieldTypeReference, TargetKind: content.KindLibraryItem},
		content.FieldDef{Name: "field_tags", Type: content.FieldTypeReference, TargetKind: "taxonomy_term"},
		content.FieldDef{Name: collector, Type: content.FieldTypeRevisionReference, TargetKind: content.KindParagraph},
	)
	s.DefineFields(content.KindNode, "landing",
		content.FieldDef{Name: "field_body", Type: content.FieldTypeTextWithSummary},
	)
	s.DefineFields(content.KindParagraph, "text",
		content.FieldDef{Name: "field_text", Type: content.FieldTypeTextLong},
	)
	s.DefineFields(content.KindParagraph, "container",
		content.FieldDef{Name: "field_text", Type: content.FieldTypeTextLong},
		content.FieldDef{Name: "field_children", Type: content.FieldTypeRevisionReference, TargetKind: content.KindParagraph},
	)
	s.DefineFields(content.KindLibraryItem, "paragraphs_library_item",
		content.FieldDef{Name: "field_text", Type: content.FieldTypeTextLong},
	)

	s.PutFormat(&content.FormatConfig{Name: fmtFull, Filters: map[string]content.FilterConfig{
		"entity_embed": {ID: "entity_embed", Status: true},
		"filter_html":  {ID: "filter_html", Status: false},
	}})
	s.PutFormat(&content.FormatConfig{Name: fmtRestricted, Filters: map[string]content.FilterConfig{
		"entity_embed": {ID: "entity_embed", Status: false},
	}})
	s.PutFormat(&content.FormatConfig{Name: fmtBasic, Filters: map[string]content.FilterConfig{
		"filter_html": {ID: "filter_html", Status: true},
	}})
	s.SetModule("paragraphs_inline_entity_form", true)

	proc := &countingProcessor{inner: markup.NewEmbedCollector(config.DefaultAdoption().Markup)}
	engine, err := NewEngine(s, s, proc, OptionsFromConfig(config.DefaultAdoption()))
	require.NoError(t, err)

	return &fixture{t: t, ctx: context.Background(), store: s, proc: proc, engine: engine}
}

// block creates a paragraph. An empty uuid gets a generated one.
func (f *fixture) block(uuid, bundle string, owner content.Owner, text string) *content.Record {
	f.t.Helper()
	rec := &content.Record{Kind: content.KindParagraph, Bundle: bundle, UUID: uuid, Owner: owner}
	if text != "" {
		rec.Append("field_text", content.Item{Value: text, Format: fmtFull})
	}
	require.NoError(f.t, f.store.Create(f.ctx, rec))
	return rec
}

// host creates a page node whose body holds text in the given format.
func (f *fixture) host(body, format string) *content.Record {
	f.t.Helper()
	rec := &content.Record{Kind: content.KindNode, Bundle: "page"}
	if body != "" {
		rec.Append("field_body", content.Item{Value: body, Format: format})
	}
	require.NoError(f.t, f.store.Create(f.ctx, rec))
	return rec
}

func (f *fixture) reload(rec *content.Record) *content.Record {
	f.t.Helper()
	got, err := f.store.LoadByID(f.ctx, rec.Kind, rec.ID)
	require.NoError(f.t, err)
	return got
}

func collectorIDs(host *content.Record) []int64 {
	var ids []int64
	for _, ref := range host.References(collector) {
		ids = append(ids, ref.ID)
	}
	return ids
}

func owned(kind string, id int64, field string) content.Owner {
	return content.Owner{Type: kind, ID: id, Field: field}
}
