// Package formfield binds a schema adapter to a form field: user input
// (JSON text or an already-decoded value) cleans into the typed value, and
// validation failures surface as per-path form errors instead of a flat
// message.
package formfield

import (
	"strings"

	schemafield "github.com/typeadapt/schemafield"
)

// FieldError is one form error with the JSON Pointer path it applies to.
type FieldError struct {
	Path    string
	Code    string
	Message string
}

// Errors is the form-facing error list.
type Errors []FieldError

func (es Errors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Path + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

// Field is a form field validating its input against a schema.
type Field struct {
	adapter  *schemafield.SchemaAdapter
	name     string
	required bool
}

// Option configures a Field at construction.
type Option func(*Field)

// Required marks empty input as an error instead of nil.
func Required(required bool) Option {
	return func(f *Field) { f.required = required }
}

// New builds a form field over an explicit schema spec.
func New(schema any, cfg *schemafield.Config, opts map[string]any, fieldOpts ...Option) (*Field, error) {
	adapter, err := schemafield.FromType(schema, cfg, opts)
	if err != nil {
		return nil, err
	}
	f := &Field{adapter: adapter, required: true}
	for _, o := range fieldOpts {
		o(f)
	}
	f.adapter.WithAllowNull(!f.required)
	return f, nil
}

// Bind attaches the field to its owning form type and attribute name.
func (f *Field) Bind(owner any, attname string) *Field {
	f.name = attname
	f.adapter.Bind(owner, attname)
	return f
}

// Adapter exposes the underlying schema adapter.
func (f *Field) Adapter() *schemafield.SchemaAdapter { return f.adapter }

// Clean validates raw form input into the typed value. String input is
// treated as JSON text; everything else validates natively.
func (f *Field) Clean(raw any) (any, error) {
	if isEmpty(raw) {
		if f.required {
			return nil, Errors{{Path: "/", Code: schemafield.CodeRequired, Message: "this field is required"}}
		}
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch t := raw.(type) {
	case string:
		out, err = f.adapter.ValidateJSON([]byte(t))
	case []byte:
		out, err = f.adapter.ValidateJSON(t)
	default:
		out, err = f.adapter.ValidatePython(raw)
	}
	if err != nil {
		return nil, asFormErrors(err)
	}
	return out, nil
}

// Prepare serializes a typed value back into the JSON text shown in the
// bound widget.
func (f *Field) Prepare(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := f.adapter.DumpJSON(v)
	if err != nil {
		return "", asFormErrors(err)
	}
	return string(data), nil
}

// HasChanged reports whether the submitted input differs from the initial
// value once both normalize through the schema.
func (f *Field) HasChanged(initial, data any) bool {
	cleaned, err := f.Clean(data)
	if err != nil {
		return true
	}
	initialized, err := f.adapter.ValidatePython(initial)
	if err != nil {
		return true
	}
	a, errA := f.adapter.DumpJSON(initialized)
	b, errB := f.adapter.DumpJSON(cleaned)
	if errA != nil || errB != nil {
		return true
	}
	return string(a) != string(b)
}

func isEmpty(raw any) bool {
	switch t := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []byte:
		return len(t) == 0
	}
	return false
}

func asFormErrors(err error) error {
	iss, ok := schemafield.AsIssues(err)
	if !ok {
		return err
	}
	out := make(Errors, len(iss))
	for i, it := range iss {
		out[i] = FieldError{Path: it.Path, Code: it.Code, Message: it.Message}
	}
	return out
}
