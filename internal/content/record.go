// Package content defines the record, field and format types shared by the
// store backends and the adoption engine.
package content

// Field types understood by the traversal. Any other type is ignored.
const (
	FieldTypeRevisionReference = "entity_reference_revisions" // nested blocks
	FieldTypeReference         = "entity_reference"           // shared library items
	FieldTypeTextLong          = "text_long"
	FieldTypeTextWithSummary   = "text_with_summary"
)

// Default kinds. Deployments may rename them through configuration.
const (
	KindNode        = "node"
	KindParagraph   = "paragraph"
	KindLibraryItem = "paragraphs_library_item"
)

// IsRichText reports whether fieldType holds formatted text.
func IsRichText(fieldType string) bool {
	return fieldType == FieldTypeTextLong || fieldType == FieldTypeTextWithSummary
}

// FieldDef describes one field of a kind/bundle pair.
type FieldDef struct {
	Name       string // Machine name, e.g. "field_body"
	Type       string // One of the FieldType constants (or anything else)
	TargetKind string // Referenced kind for reference fields, empty otherwise
}

// Item is a single value of a multi-value field. Text fields use Value,
// Summary and Format; reference fields use TargetKind and TargetID.
type Item struct {
	Value      string
	Summary    string
	Format     string
	TargetKind string
	TargetID   int64
}

// Reference describes a pointer from one record to another.
type Reference struct {
	Kind string
	ID   int64
}

// Owner is the parent relationship carried by a block.
type Owner struct {
	Type  string // Kind of the parent, e.g. "node"
	ID    int64  // Storage id of the parent; 0 means unowned
	Field string // Field on the parent listing this block
}

// IsSet reports whether the owner relationship has been established.
func (o Owner) IsSet() bool {
	return o.ID != 0
}

// Record is a stored entity: a host, a block or a library item.
type Record struct {
	ID     int64
	UUID   string
	Kind   string
	Bundle string
	Owner  Owner
	Fields map[string][]Item
}

// Get returns the items of a field. Missing fields return nil.
func (r *Record) Get(field string) []Item {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[field]
}

// IsEmpty reports whether a field has no meaningful value. A text field whose
// items carry neither value nor summary counts as empty.
func (r *Record) IsEmpty(field string) bool {
	for _, it := range r.Get(field) {
		if it.Value != "" || it.Summary != "" || it.TargetID != 0 {
			return false
		}
	}
	return true
}

// References returns the targets of a reference field in delta order.
func (r *Record) References(field string) []Reference {
	items := r.Get(field)
	refs := make([]Reference, 0, len(items))
	for _, it := range items {
		if it.TargetID == 0 {
			continue
		}
		refs = append(refs, Reference{Kind: it.TargetKind, ID: it.TargetID})
	}
	return refs
}

// Append adds an item to the end of a field.
func (r *Record) Append(field string, item Item) {
	if r.Fields == nil {
		r.Fields = make(map[string][]Item)
	}
	r.Fields[field] = append(r.Fields[field], item)
}

// Set replaces all items of a field.
func (r *Record) Set(field string, items ...Item) {
	if r.Fields == nil {
		r.Fields = make(map[string][]Item)
	}
	r.Fields[field] = items
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Fields != nil {
		cp.Fields = make(map[string][]Item, len(r.Fields))
		for name, items := range r.Fields {
			cp.Fields[name] = append([]Item(nil), items...)
		}
	}
	return &cp
}
