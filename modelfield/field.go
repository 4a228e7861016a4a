// Package modelfield binds a schema adapter to a storage/ORM-style field:
// values validate on the way in from the database wire form and dump back to
// JSON text for persistence, and the field declaration itself deconstructs
// into a re-evaluable artifact expression.
package modelfield

import (
	"errors"
	"fmt"
	"sort"

	schemafield "github.com/typeadapt/schemafield"
	"github.com/typeadapt/schemafield/artifact"
	"github.com/typeadapt/schemafield/namespace"
	"github.com/typeadapt/schemafield/schemaref"
)

// Diagnostic is one system-check finding on a field declaration.
type Diagnostic struct {
	ID      string // e.g. schemafield.E001
	Message string
}

// Field is a storage field carrying a schema-validated JSON column.
type Field struct {
	adapter    *schemafield.SchemaAdapter
	name       string
	null       bool
	defaultVal any
	hasDefault bool
}

// Option configures a Field at construction.
type Option func(*Field)

// WithNull marks the column nullable; the adapter wraps the schema so that
// null validates.
func WithNull(null bool) Option {
	return func(f *Field) { f.null = null }
}

// WithDefault sets the field default, validated by Check.
func WithDefault(v any) Option {
	return func(f *Field) {
		f.defaultVal = v
		f.hasDefault = true
	}
}

// New builds a field over an explicit schema spec. Recognized export options
// are extracted from opts; unknown option keys are rejected here since a
// field declaration has no other consumer for them.
func New(schema any, cfg *schemafield.Config, opts map[string]any, fieldOpts ...Option) (*Field, error) {
	adapter, err := schemafield.FromType(schema, cfg, opts)
	if err != nil {
		return nil, err
	}
	if len(opts) > 0 {
		return nil, fmt.Errorf("modelfield: unknown field option %q", anyKey(opts))
	}
	f := &Field{adapter: adapter}
	for _, o := range fieldOpts {
		o(f)
	}
	f.adapter.WithAllowNull(f.null)
	return f, nil
}

func anyKey(m map[string]any) string {
	for k := range m {
		return k
	}
	return ""
}

// Bind attaches the field to its owning model type and attribute name.
// Binding never fails: a schema referencing a type registered later in
// startup resolves lazily on first use.
func (f *Field) Bind(owner any, attname string) *Field {
	f.name = attname
	f.adapter.Bind(owner, attname)
	return f
}

// Name returns the bound attribute name.
func (f *Field) Name() string { return f.name }

// Adapter exposes the underlying schema adapter.
func (f *Field) Adapter() *schemafield.SchemaAdapter { return f.adapter }

// Check runs declaration-time diagnostics: schema resolution (E001), default
// serializability (E002) and lossy export options (W003). An unresolved
// forward reference is reported through E001 like any other resolution
// failure, since checks run after startup registration completes.
func (f *Field) Check() []Diagnostic {
	var out []Diagnostic
	if err := f.adapter.ValidateSchema(); err != nil {
		out = append(out, Diagnostic{
			ID:      "schemafield.E001",
			Message: fmt.Sprintf("cannot resolve schema for field %q: %v", f.name, err),
		})
		return out
	}
	if f.hasDefault {
		if _, err := f.adapter.ValidatePython(f.defaultVal); err != nil {
			out = append(out, Diagnostic{
				ID:      "schemafield.E002",
				Message: fmt.Sprintf("default value for field %q does not validate: %v", f.name, err),
			})
		} else if _, err := f.adapter.DumpJSON(f.defaultVal); err != nil {
			out = append(out, Diagnostic{
				ID:      "schemafield.E002",
				Message: fmt.Sprintf("default value for field %q cannot be serialized: %v", f.name, err),
			})
		}
	}
	kw := f.adapter.ExportKwargs()
	if len(kw.Include) > 0 || len(kw.Exclude) > 0 {
		out = append(out, Diagnostic{
			ID:      "schemafield.W003",
			Message: fmt.Sprintf("field %q uses include/exclude export options; stored values will not round-trip losslessly", f.name),
		})
	}
	return out
}

// ToGo converts a stored wire value into the typed value: JSON text
// validates through the JSON path, anything else through the native path.
func (f *Field) ToGo(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		if f.null {
			return nil, nil
		}
		return nil, f.wrapIssues(schemafield.Issues{{
			Path: "/", Code: schemafield.CodeRequired, Message: "field is not nullable",
		}})
	case []byte:
		out, err := f.adapter.ValidateJSON(t)
		return out, f.wrapErr(err)
	case string:
		out, err := f.adapter.ValidateJSON([]byte(t))
		return out, f.wrapErr(err)
	default:
		out, err := f.adapter.ValidatePython(v)
		return out, f.wrapErr(err)
	}
}

// PrepValue serializes a typed value into the JSON text stored in the
// column.
func (f *Field) PrepValue(v any) (string, error) {
	if v == nil && f.null {
		return "", nil
	}
	data, err := f.adapter.DumpJSON(v)
	if err != nil {
		return "", f.wrapErr(err)
	}
	return string(data), nil
}

// ValueToString is the serialization hook used by fixture dumps.
func (f *Field) ValueToString(v any) (string, error) {
	return f.PrepValue(v)
}

// Default returns the declared default value.
func (f *Field) Default() (any, bool) { return f.defaultVal, f.hasDefault }

// Deconstruct renders the field declaration into an artifact expression:
// the prepared schema is wrapped into its data-only encoding and serialized
// through the registry, so the generated file reconstructs an equal
// declaration.
func (f *Field) Deconstruct(w *artifact.Writer) (artifact.Field, error) {
	prepared, err := f.adapter.Prepared()
	if err != nil {
		return artifact.Field{}, err
	}
	options := exportOptionMap(f.adapter.ExportKwargs())
	return w.RenderField(f.name, schemaref.Wrap(prepared), options)
}

// FieldError is the host-facing validation failure carrying structured
// per-path detail.
type FieldError struct {
	Field  string
	Issues schemafield.Issues
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Issues.Error())
}

func (e *FieldError) Unwrap() error { return e.Issues }

func (f *Field) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if iss, ok := schemafield.AsIssues(err); ok {
		return f.wrapIssues(iss)
	}
	var unresolved *namespace.UnresolvedRefError
	if errors.As(err, &unresolved) {
		return &schemafield.ImproperlyConfiguredError{
			Reason: fmt.Sprintf("field %q used before its schema resolved", f.name),
			Cause:  unresolved,
		}
	}
	return err
}

func (f *Field) wrapIssues(iss schemafield.Issues) error {
	return &FieldError{Field: f.name, Issues: iss}
}

// exportOptionMap renders stored kwargs back into the plain option map shape
// used by manifests and artifacts.
func exportOptionMap(kw schemafield.ExportKwargs) map[string]any {
	out := map[string]any{}
	put := func(key string, p *bool) {
		if p != nil {
			out[key] = *p
		}
	}
	put("strict", kw.Strict)
	put("from_attributes", kw.FromAttributes)
	put("by_alias", kw.ByAlias)
	put("exclude_unset", kw.ExcludeUnset)
	put("exclude_defaults", kw.ExcludeDefaults)
	put("exclude_none", kw.ExcludeNone)
	put("round_trip", kw.RoundTrip)
	put("warnings", kw.Warnings)
	switch kw.Mode {
	case schemafield.ModeJSON:
		out["mode"] = "json"
	case schemafield.ModePython:
		out["mode"] = "python"
	}
	if len(kw.Include) > 0 {
		out["include"] = sortedSet(kw.Include)
	}
	if len(kw.Exclude) > 0 {
		out["exclude"] = sortedSet(kw.Exclude)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
