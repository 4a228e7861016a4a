package namespace

import (
	"reflect"

	"github.com/typeadapt/schemafield/schemaref"
)

// Annotator lets an owner type publish raw annotations directly instead of
// relying on struct-field introspection. Values may be strings (deferred
// expressions), reflect.Types, or schemaref.Refs; they must not be evaluated
// by the implementation.
type Annotator interface {
	Annotations() map[string]any
}

// AnnotatedType looks up the declared annotation for field on owner without
// evaluating it. For struct owners the annotation is the field's `schema`
// struct tag when present (possibly a forward reference), otherwise the
// field's Go type. The second return is false when no annotation exists.
func AnnotatedType(owner any, field string) (any, bool) {
	if owner == nil || field == "" {
		return nil, false
	}
	if a, ok := owner.(Annotator); ok {
		if v, ok := a.Annotations()[field]; ok {
			return v, true
		}
	}
	t := ownerType(owner)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, false
	}
	sf, ok := t.FieldByName(field)
	if !ok {
		// Fall back to the wire-key rule so annotations can be addressed by
		// their serialized name as well.
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.IsExported() && schemaref.StructKey(f) == field {
				sf, ok = f, true
				break
			}
		}
	}
	if !ok || !sf.IsExported() {
		return nil, false
	}
	if tag, found := sf.Tag.Lookup("schema"); found && tag != "" && tag != "-" {
		return tag, true
	}
	return sf.Type, true
}

// ownerType normalizes the various ways an owner may be supplied: a
// reflect.Type, a pointer to a struct, or a struct value.
func ownerType(owner any) reflect.Type {
	if t, ok := owner.(reflect.Type); ok {
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		return t
	}
	t := reflect.TypeOf(owner)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// OwnerName renders a short, human-readable name for an owner, used in
// configuration error messages.
func OwnerName(owner any) string {
	t := ownerType(owner)
	if t == nil {
		return "<nil>"
	}
	return schemaref.TypeName(t)
}
