// Package manifest loads declarative field manifests for artifact
// generation. Manifests are YAML with strict duplicate-key detection;
// export options are validated through the adapter's closed option set and
// unknown option keys are rejected here, at the boundary.
package manifest

import (
	"fmt"
	"io"
	"os"
	"sort"

	schemafield "github.com/typeadapt/schemafield"
)

// FieldSpec declares one field: its name, schema type expression, null
// policy and export options.
type FieldSpec struct {
	Name      string
	Schema    string
	AllowNull bool
	Options   map[string]any
	Kwargs    schemafield.ExportKwargs
}

// Manifest is a parsed field manifest.
type Manifest struct {
	Package string
	Fields  []FieldSpec
}

// Load parses and validates a manifest document.
func Load(r io.Reader) (*Manifest, error) {
	doc, err := decodeStrict(r)
	if err != nil {
		return nil, err
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("manifest: document must be a mapping, got %T", doc)
	}
	m := &Manifest{}
	m.Package, _ = root["package"].(string)
	if m.Package == "" {
		return nil, fmt.Errorf("manifest: missing required key \"package\"")
	}
	rawFields, ok := root["fields"].([]any)
	if !ok {
		return nil, fmt.Errorf("manifest: missing required key \"fields\"")
	}
	if err := rejectUnknownKeys(root, "package", "fields"); err != nil {
		return nil, err
	}
	for i, rf := range rawFields {
		fm, ok := rf.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("manifest: fields[%d] must be a mapping, got %T", i, rf)
		}
		spec, err := parseField(fm)
		if err != nil {
			return nil, fmt.Errorf("manifest: fields[%d]: %w", i, err)
		}
		m.Fields = append(m.Fields, spec)
	}
	return m, nil
}

// LoadFile loads a manifest from disk.
func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func parseField(fm map[string]any) (FieldSpec, error) {
	var spec FieldSpec
	spec.Name, _ = fm["name"].(string)
	if spec.Name == "" {
		return spec, fmt.Errorf("missing required key \"name\"")
	}
	spec.Schema, _ = fm["schema"].(string)
	if spec.Schema == "" {
		return spec, fmt.Errorf("field %q: missing required key \"schema\"", spec.Name)
	}
	if raw, ok := fm["null"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return spec, fmt.Errorf("field %q: \"null\" must be a bool, got %T", spec.Name, raw)
		}
		spec.AllowNull = b
	}
	if err := rejectUnknownKeys(fm, "name", "schema", "null", "options"); err != nil {
		return spec, fmt.Errorf("field %q: %w", spec.Name, err)
	}
	rawOpts, _ := fm["options"].(map[string]any)
	if rawOpts == nil {
		return spec, nil
	}
	// Keep the declared options for artifact embedding before extraction
	// consumes them.
	spec.Options = make(map[string]any, len(rawOpts))
	for k, v := range rawOpts {
		spec.Options[k] = v
	}
	kw, err := schemafield.ExtractExportKwargs(rawOpts)
	if err != nil {
		return spec, fmt.Errorf("field %q: %w", spec.Name, err)
	}
	// Extraction pops recognized keys in place; anything left is unknown and
	// rejected at this layer.
	if len(rawOpts) > 0 {
		return spec, fmt.Errorf("field %q: unknown export option %q", spec.Name, firstKey(rawOpts))
	}
	spec.Kwargs = kw
	return spec, nil
}

func rejectUnknownKeys(m map[string]any, known ...string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("unknown key %q", k)
		}
	}
	return nil
}

func firstKey(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
