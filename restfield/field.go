// Package restfield binds a schema adapter to a REST serializer field:
// incoming payload fragments validate to the internal typed value, outgoing
// values dump to representation data, and the field exposes its JSON Schema
// for OpenAPI-style introspection.
package restfield

import (
	schemafield "github.com/typeadapt/schemafield"
	js "github.com/typeadapt/schemafield/jsonschema"
)

// ValidationError carries structured per-path detail in the shape REST
// serializers aggregate: path to message list.
type ValidationError struct {
	Detail map[string][]string
	Issues schemafield.Issues
}

func (e *ValidationError) Error() string { return e.Issues.Error() }

func (e *ValidationError) Unwrap() error { return e.Issues }

// Field is a serializer field validating a schema-typed value.
type Field struct {
	adapter *schemafield.SchemaAdapter
	name    string
}

// New builds a REST field over an explicit schema spec.
func New(schema any, cfg *schemafield.Config, opts map[string]any) (*Field, error) {
	adapter, err := schemafield.FromType(schema, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Field{adapter: adapter}, nil
}

// Bind attaches the field to its owning serializer type and attribute name.
func (f *Field) Bind(owner any, attname string) *Field {
	f.name = attname
	f.adapter.Bind(owner, attname)
	return f
}

// Adapter exposes the underlying schema adapter.
func (f *Field) Adapter() *schemafield.SchemaAdapter { return f.adapter }

// ToInternalValue validates an already-decoded payload fragment into the
// typed value.
func (f *Field) ToInternalValue(data any) (any, error) {
	out, err := f.adapter.ValidatePython(data)
	if err != nil {
		return nil, asValidationError(err)
	}
	return out, nil
}

// ToRepresentation dumps a typed value into plain representation data.
func (f *Field) ToRepresentation(v any) (any, error) {
	out, err := f.adapter.DumpPython(v)
	if err != nil {
		return nil, asValidationError(err)
	}
	return out, nil
}

// Parse decodes and validates a full JSON request body.
func (f *Field) Parse(body []byte) (any, error) {
	out, err := f.adapter.ValidateJSON(body)
	if err != nil {
		return nil, asValidationError(err)
	}
	return out, nil
}

// Render serializes a typed value into a JSON response body.
func (f *Field) Render(v any) ([]byte, error) {
	data, err := f.adapter.DumpJSON(v)
	if err != nil {
		return nil, asValidationError(err)
	}
	return data, nil
}

// OpenAPISchema returns the field's JSON Schema fragment for schema
// generation endpoints.
func (f *Field) OpenAPISchema() (*js.Schema, error) {
	return f.adapter.JSONSchema()
}

func asValidationError(err error) error {
	iss, ok := schemafield.AsIssues(err)
	if !ok {
		return err
	}
	detail := map[string][]string{}
	for _, it := range iss {
		detail[it.Path] = append(detail[it.Path], it.Message)
	}
	return &ValidationError{Detail: detail, Issues: iss}
}
