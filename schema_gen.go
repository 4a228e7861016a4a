package schemafield

import (
	js "github.com/typeadapt/schemafield/jsonschema"
)

// jsSchema is the exported JSON Schema fragment type.
type jsSchema = js.Schema

func (anyValidator) jsonSchema(byAlias bool) *jsSchema { return &jsSchema{} }
func (anyValidator) defaultValue() (any, bool)         { return nil, false }

func (boolValidator) jsonSchema(byAlias bool) *jsSchema { return &jsSchema{Type: "boolean"} }
func (boolValidator) defaultValue() (any, bool)         { return nil, false }

func (intValidator) jsonSchema(byAlias bool) *jsSchema { return &jsSchema{Type: "integer"} }
func (intValidator) defaultValue() (any, bool)         { return nil, false }

func (floatValidator) jsonSchema(byAlias bool) *jsSchema { return &jsSchema{Type: "number"} }
func (floatValidator) defaultValue() (any, bool)         { return nil, false }

func (stringValidator) jsonSchema(byAlias bool) *jsSchema { return &jsSchema{Type: "string"} }
func (stringValidator) defaultValue() (any, bool)         { return nil, false }

func (bytesValidator) jsonSchema(byAlias bool) *jsSchema {
	return &jsSchema{Type: "string", Format: "byte"}
}
func (bytesValidator) defaultValue() (any, bool) { return nil, false }

func (timeValidator) jsonSchema(byAlias bool) *jsSchema {
	return &jsSchema{Type: "string", Format: "date-time"}
}
func (timeValidator) defaultValue() (any, bool) { return nil, false }

func (durationValidator) jsonSchema(byAlias bool) *jsSchema {
	return &jsSchema{Type: "string", Format: "duration"}
}
func (durationValidator) defaultValue() (any, bool) { return nil, false }

func (jsonNumberValidator) jsonSchema(byAlias bool) *jsSchema { return &jsSchema{Type: "number"} }
func (jsonNumberValidator) defaultValue() (any, bool)         { return nil, false }

func (s *sliceValidator) jsonSchema(byAlias bool) *jsSchema {
	return &jsSchema{Type: "array", Items: s.elem.jsonSchema(byAlias)}
}
func (s *sliceValidator) defaultValue() (any, bool) { return nil, false }

func (m *mapValidator) jsonSchema(byAlias bool) *jsSchema {
	return &jsSchema{Type: "object", AdditionalProperties: m.elem.jsonSchema(byAlias)}
}
func (m *mapValidator) defaultValue() (any, bool) { return nil, false }

func (p *ptrValidator) jsonSchema(byAlias bool) *jsSchema {
	return js.Nullable(p.elem.jsonSchema(byAlias))
}
func (p *ptrValidator) defaultValue() (any, bool) { return nil, false }

func (s *structValidator) jsonSchema(byAlias bool) *jsSchema {
	out := &jsSchema{
		Type:                 "object",
		Properties:           map[string]*jsSchema{},
		AdditionalProperties: false,
	}
	for _, f := range s.fields {
		key := f.name
		if byAlias {
			key = f.alias
		}
		out.Properties[key] = f.v.jsonSchema(byAlias)
		if f.required {
			out.Required = append(out.Required, key)
		}
	}
	return out
}
func (s *structValidator) defaultValue() (any, bool) { return nil, false }

func (o *optionalValidator) jsonSchema(byAlias bool) *jsSchema {
	return js.Nullable(o.inner.jsonSchema(byAlias))
}
func (o *optionalValidator) defaultValue() (any, bool) { return o.inner.defaultValue() }

func (u *unionValidator) jsonSchema(byAlias bool) *jsSchema {
	out := &jsSchema{OneOf: make([]*jsSchema, 0, len(u.branches))}
	for _, b := range u.branches {
		out.OneOf = append(out.OneOf, b.jsonSchema(byAlias))
	}
	return out
}
func (u *unionValidator) defaultValue() (any, bool) { return nil, false }

func (l *literalValidator) jsonSchema(byAlias bool) *jsSchema {
	return &jsSchema{Enum: append([]any(nil), l.values...)}
}
func (l *literalValidator) defaultValue() (any, bool) { return nil, false }

func (a *annotatedValidator) jsonSchema(byAlias bool) *jsSchema {
	out := a.inner.jsonSchema(byAlias)
	if a.meta == nil {
		return out
	}
	if a.meta.Title != "" {
		out.Title = a.meta.Title
	}
	if a.meta.Description != "" {
		out.Description = a.meta.Description
	}
	if a.meta.HasDefault {
		out.Default = a.meta.Default
	}
	if a.meta.Ge != nil {
		out.Minimum = a.meta.Ge
	}
	if a.meta.Le != nil {
		out.Maximum = a.meta.Le
	}
	if a.meta.MinLen != nil {
		if out.Type == "array" {
			out.MinItems = a.meta.MinLen
		} else {
			out.MinLength = a.meta.MinLen
		}
	}
	if a.meta.MaxLen != nil {
		if out.Type == "array" {
			out.MaxItems = a.meta.MaxLen
		} else {
			out.MaxLength = a.meta.MaxLen
		}
	}
	if a.meta.Pattern != "" {
		out.Pattern = a.meta.Pattern
	}
	return out
}

func (a *annotatedValidator) defaultValue() (any, bool) {
	if a.meta != nil && a.meta.HasDefault {
		return a.meta.Default, true
	}
	return a.inner.defaultValue()
}
