package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/content"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/store"
)

func TestCreate_AssignsIDAndUUID(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := &content.Record{Kind: content.KindParagraph, Bundle: "text"}
	b := &content.Record{Kind: content.KindParagraph, Bundle: "text"}
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.NotEmpty(t, a.UUID)
	assert.NotEqual(t, a.UUID, b.UUID)
}

func TestCreate_RejectsDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &content.Record{Kind: content.KindNode, UUID: "h1"}))
	assert.Error(t, s.Create(ctx, &content.Record{Kind: content.KindNode, UUID: "h1"}))

	require.NoError(t, s.Create(ctx, &content.Record{Kind: content.KindNode, ID: 10, UUID: "h2"}))
	assert.Error(t, s.Create(ctx, &content.Record{Kind: content.KindNode, ID: 10, UUID: "h3"}))

	// explicit ids advance the counter
	next := &content.Record{Kind: content.KindNode}
	require.NoError(t, s.Create(ctx, next))
	assert.Equal(t, int64(11), next.ID)
}

func TestLoad_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &content.Record{Kind: content.KindNode, Bundle: "page"}
	rec.Append("field_body", content.Item{Value: "hello"})
	require.NoError(t, s.Create(ctx, rec))

	rec.Fields["field_body"][0].Value = "mutated after create"

	got, err := s.LoadByID(ctx, content.KindNode, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Get("field_body")[0].Value)

	got.Owner.ID = 99
	again, err := s.LoadByUUID(ctx, content.KindNode, rec.UUID)
	require.NoError(t, err)
	assert.False(t, again.Owner.IsSet())
}

func TestLoad_NotFound(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &content.Record{Kind: content.KindParagraph, UUID: "p1"}))

	_, err := s.LoadByID(ctx, content.KindParagraph, 42)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.LoadByUUID(ctx, content.KindParagraph, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	// uuid exists but belongs to another kind
	_, err = s.LoadByUUID(ctx, content.KindNode, "p1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.LoadFormat(ctx, "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSave(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &content.Record{Kind: content.KindParagraph, UUID: "p1"}
	require.NoError(t, s.Create(ctx, rec))

	rec.Owner = content.Owner{Type: content.KindNode, ID: 7, Field: "field_embedded_paragraphs"}
	require.NoError(t, s.Save(ctx, rec))
	assert.Equal(t, 1, s.Saves())

	got, err := s.LoadByUUID(ctx, content.KindParagraph, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Owner.ID)

	err = s.Save(ctx, &content.Record{Kind: content.KindParagraph, ID: 500, UUID: "ghost"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, 1, s.Saves())
}

func TestFailSaveFor(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := &content.Record{Kind: content.KindParagraph, UUID: "p1"}
	require.NoError(t, s.Create(ctx, rec))

	boom := errors.New("disk full")
	s.FailSaveFor("p1", boom)
	assert.ErrorIs(t, s.Save(ctx, rec), boom)

	s.FailSaveFor("p1", nil)
	assert.NoError(t, s.Save(ctx, rec))
}

func TestSchemaAndFormats(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.DefineFields(content.KindParagraph, "text",
		content.FieldDef{Name: "field_text", Type: content.FieldTypeTextLong})
	s.DefineFields(content.KindParagraph, "callout",
		content.FieldDef{Name: "field_body", Type: content.FieldTypeTextWithSummary})
	s.DefineFields(content.KindNode, "page")

	defs, err := s.FieldDefinitions(ctx, content.KindParagraph, "text")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "field_text", defs[0].Name)

	defs, err = s.FieldDefinitions(ctx, content.KindParagraph, "unknown")
	require.NoError(t, err)
	assert.Empty(t, defs)

	bundles, err := s.Bundles(ctx, content.KindParagraph)
	require.NoError(t, err)
	assert.Equal(t, []string{"callout", "text"}, bundles)

	f := &content.FormatConfig{Name: "full_html", Filters: map[string]content.FilterConfig{
		"entity_embed": {ID: "entity_embed", Status: true},
	}}
	s.PutFormat(f)
	f.Filters["entity_embed"] = content.FilterConfig{ID: "entity_embed", Status: false}

	got, err := s.LoadFormat(ctx, "full_html")
	require.NoError(t, err)
	assert.True(t, got.FilterEnabled("entity_embed"), "stored format must not alias the caller's map")
}

func TestModules(t *testing.T) {
	s := New()
	ctx := context.Background()

	active, err := s.IsModuleActive(ctx, "paragraphs_inline_entity_form")
	require.NoError(t, err)
	assert.False(t, active)

	s.SetModule("paragraphs_inline_entity_form", true)
	active, err = s.IsModuleActive(ctx, "paragraphs_inline_entity_form")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestListUUIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, r := range []*content.Record{
		{Kind: content.KindNode, Bundle: "page", UUID: "n1"},
		{Kind: content.KindNode, Bundle: "article", UUID: "n2"},
		{Kind: content.KindNode, Bundle: "page", UUID: "n3"},
		{Kind: content.KindParagraph, Bundle: "page", UUID: "p1"},
	} {
		require.NoError(t, s.Create(ctx, r))
	}

	all, err := s.ListUUIDs(ctx, content.KindNode, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2", "n3"}, all)

	pages, err := s.ListUUIDs(ctx, content.KindNode, "page")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n3"}, pages)
}
