package schemaref

import (
	"sort"
	"strings"
)

// FieldMeta carries per-field constraint metadata attached through an
// Annotated reference. It mirrors the constraint surface the validator
// enforces; zero values mean "not set".
type FieldMeta struct {
	Title       string
	Description string

	// Default is the schema-declared default. HasDefault distinguishes an
	// explicit nil default from absence.
	Default    any
	HasDefault bool

	Ge      *float64
	Le      *float64
	MinLen  *int
	MaxLen  *int
	Pattern string
}

// metaAttrNames enumerates the snapshot attribute keys in a stable order.
// Snapshot and restore must agree on this list.
var metaAttrNames = []string{
	"title", "description", "default", "ge", "le", "min_len", "max_len", "pattern",
}

// Snapshot freezes the metadata into a MetaSnapshot holding only attributes
// that differ from their defaults, with the given origin reference.
func (m *FieldMeta) Snapshot(origin Ref) MetaSnapshot {
	attrs := map[string]any{}
	if m.Title != "" {
		attrs["title"] = m.Title
	}
	if m.Description != "" {
		attrs["description"] = m.Description
	}
	if m.HasDefault {
		attrs["default"] = Wrap(m.Default)
	}
	if m.Ge != nil {
		attrs["ge"] = *m.Ge
	}
	if m.Le != nil {
		attrs["le"] = *m.Le
	}
	if m.MinLen != nil {
		attrs["min_len"] = *m.MinLen
	}
	if m.MaxLen != nil {
		attrs["max_len"] = *m.MaxLen
	}
	if m.Pattern != "" {
		attrs["pattern"] = m.Pattern
	}
	return MetaSnapshot{Origin: origin, Attrs: attrs}
}

// Meta builds a FieldMeta from snapshot-style attributes. Generated
// artifacts use this constructor form so metadata survives re-evaluation.
func Meta(attrs map[string]any) *FieldMeta {
	return MetaSnapshot{Attrs: attrs}.Restore()
}

// Restore reconstructs the FieldMeta encoded by the snapshot.
func (m MetaSnapshot) Restore() *FieldMeta {
	out := &FieldMeta{}
	for name, v := range m.Attrs {
		switch name {
		case "title":
			out.Title, _ = v.(string)
		case "description":
			out.Description, _ = v.(string)
		case "default":
			out.Default = Unwrap(v)
			out.HasDefault = true
		case "ge":
			if f, ok := toFloat(v); ok {
				out.Ge = &f
			}
		case "le":
			if f, ok := toFloat(v); ok {
				out.Le = &f
			}
		case "min_len":
			if n, ok := toInt(v); ok {
				out.MinLen = &n
			}
		case "max_len":
			if n, ok := toInt(v); ok {
				out.MaxLen = &n
			}
		case "pattern":
			out.Pattern, _ = v.(string)
		}
	}
	return out
}

// String renders the metadata as a Meta(...) call, parseable by ParseExpr.
func (m *FieldMeta) String() string {
	snap := m.Snapshot(nil)
	keys := make([]string, 0, len(snap.Attrs))
	for k := range snap.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + literalString(snap.Attrs[k])
	}
	return "Meta(" + strings.Join(parts, ", ") + ")"
}

// Equal compares two FieldMeta values attribute by attribute.
func (m *FieldMeta) Equal(other *FieldMeta) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Title != other.Title || m.Description != other.Description || m.Pattern != other.Pattern {
		return false
	}
	if m.HasDefault != other.HasDefault || !looseEqual(m.Default, other.Default) {
		return false
	}
	return ptrEqual(m.Ge, other.Ge) && ptrEqual(m.Le, other.Le) &&
		ptrEqual(m.MinLen, other.MinLen) && ptrEqual(m.MaxLen, other.MaxLen)
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}
