// Package schemafield lets a host framework field declare its value type as
// a schema reference and marshals between the typed value and its JSON wire
// form. It provides:
//
//   - A SchemaAdapter resolving explicit types, deferred type-expression
//     strings and generic container encodings into a concrete schema
//     (ValidatePython/ValidateJSON/DumpPython/DumpJSON/JSONSchema)
//   - A stable error model via Issues (JSON Pointer, code, message) plus a
//     named ImproperlyConfiguredError for declaration problems
//   - Export kwargs: a closed set of serialization-control options extracted
//     destructively from a plain options map
//
// The compiled validator stays unexported behind the adapter. The container
// encoding lives under schemaref/, name resolution under namespace/, artifact
// serialization under artifact/, the host bindings under modelfield/,
// formfield/ and restfield/, and the CLI under cmd/schemafield.
//
// Typical usage:
//
//	a, err := schemafield.FromType(reflect.TypeOf([]int64(nil)), nil, nil)
//	v, err := a.ValidateJSON([]byte("[1,2,3]"))
//	wire, err := a.DumpJSON(v)
package schemafield
