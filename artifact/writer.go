package artifact

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"strings"
	"text/template"
)

const artifactImport = "github.com/typeadapt/schemafield/artifact"

// FieldDecl is the reconstructible field declaration embedded in generated
// files. Schema holds the re-evaluated reference; Options the export options
// the field was declared with.
type FieldDecl struct {
	Name    string
	Schema  any
	Options map[string]any
}

// Field is one rendered declaration: the expression text plus the imports it
// needs.
type Field struct {
	Name    string
	Expr    string
	Imports Imports
	Options map[string]any
}

// File describes a generated declarative artifact.
type File struct {
	Package string
	Fields  []Field
}

// Writer renders field declarations into generated Go source.
type Writer struct {
	registry *Registry
}

// NewWriter builds a writer over the given registry; nil means the default
// registry.
func NewWriter(r *Registry) *Writer {
	if r == nil {
		r = DefaultRegistry()
	}
	return &Writer{registry: r}
}

// RenderField serializes a wrapped schema into a Field ready for embedding.
func (w *Writer) RenderField(name string, schema any, options map[string]any) (Field, error) {
	expr, imports, err := w.registry.Serialize(schema)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	return Field{Name: name, Expr: expr, Imports: imports, Options: options}, nil
}

type fileData struct {
	Package string
	Imports []string
	Fields  []fieldData
}

type fieldData struct {
	Name    string
	Expr    string
	Options string
}

var fileTemplate = template.Must(template.New("artifact").Parse(`// Code generated by schemafield. DO NOT EDIT.

package {{.Package}}

import (
{{range .Imports}}	"{{.}}"
{{end}})

// Fields declares the persisted schema for each field. Evaluating an entry's
// Schema expression reconstructs the declaration it was generated from.
var Fields = []artifact.FieldDecl{
{{range .Fields}}	{Name: {{printf "%q" .Name}}, Schema: {{.Expr}}{{if .Options}}, Options: {{.Options}}{{end}}},
{{end}}}
`))

// RenderFile renders a complete generated source file and gofmt-formats it.
func (w *Writer) RenderFile(f File) ([]byte, error) {
	imports := NewImports(artifactImport)
	data := fileData{Package: f.Package}
	for _, fd := range f.Fields {
		imports.Merge(fd.Imports)
		opts, err := renderOptions(fd.Options)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		data.Fields = append(data.Fields, fieldData{
			Name:    fd.Name,
			Expr:    fd.Expr,
			Options: opts,
		})
	}
	data.Imports = imports.Sorted()

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("artifact: executing template: %w", err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("artifact: formatting generated code: %w", err)
	}
	return formatted, nil
}

// renderOptions emits an options map literal in stable key order. Option
// values are restricted to the scalar and string-list shapes the export
// kwargs accept.
func renderOptions(opts map[string]any) (string, error) {
	if len(opts) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		expr, err := renderOptionValue(opts[k])
		if err != nil {
			return "", fmt.Errorf("option %q: %w", k, err)
		}
		parts[i] = strconv.Quote(k) + ": " + expr
	}
	return "map[string]any{" + strings.Join(parts, ", ") + "}", nil
}

func renderOptionValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case []string:
		parts := make([]string, len(t))
		for i, s := range t {
			parts[i] = strconv.Quote(s)
		}
		return "[]string{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("unsupported option value type %T", v)
	}
}
