package manifest_test

import (
	"errors"
	"strings"
	"testing"

	schemafield "github.com/typeadapt/schemafield"
	"github.com/typeadapt/schemafield/manifest"
)

const sampleManifest = `
package: fields
fields:
  - name: payload
    schema: "list[int]"
    null: true
    options:
      by_alias: false
      exclude:
        - internal
  - name: title
    schema: string
`

func TestLoad_Valid(t *testing.T) {
	m, err := manifest.Load(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Package != "fields" {
		t.Fatalf("package = %q", m.Package)
	}
	if len(m.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(m.Fields))
	}

	f := m.Fields[0]
	if f.Name != "payload" || f.Schema != "list[int]" || !f.AllowNull {
		t.Fatalf("unexpected field: %+v", f)
	}
	if f.Kwargs.ByAlias == nil || *f.Kwargs.ByAlias {
		t.Fatalf("by_alias not extracted: %+v", f.Kwargs)
	}
	if _, ok := f.Kwargs.Exclude["internal"]; !ok {
		t.Fatalf("exclude not extracted: %+v", f.Kwargs)
	}
	// The raw options survive for artifact embedding.
	if _, ok := f.Options["by_alias"]; !ok {
		t.Fatalf("raw options lost: %v", f.Options)
	}

	if m.Fields[1].Name != "title" || m.Fields[1].AllowNull {
		t.Fatalf("unexpected second field: %+v", m.Fields[1])
	}
}

func TestLoad_DuplicateKey(t *testing.T) {
	doc := "package: p\npackage: q\nfields: []\n"
	_, err := manifest.Load(strings.NewReader(doc))
	var dup *manifest.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
	if dup.Key != "package" {
		t.Fatalf("unexpected key: %q", dup.Key)
	}
	if dup.Line <= dup.FirstLine {
		t.Fatalf("duplicate position should follow the first: %+v", dup)
	}
}

func TestLoad_NestedDuplicateKey(t *testing.T) {
	doc := `
package: p
fields:
  - name: a
    schema: int
    name: b
`
	_, err := manifest.Load(strings.NewReader(doc))
	var dup *manifest.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
	if dup.Key != "name" {
		t.Fatalf("unexpected key: %q", dup.Key)
	}
}

func TestLoad_UnknownExportOption(t *testing.T) {
	doc := `
package: p
fields:
  - name: a
    schema: int
    options:
      by_alias: true
      bogus: 1
`
	_, err := manifest.Load(strings.NewReader(doc))
	if err == nil || !strings.Contains(err.Error(), `unknown export option "bogus"`) {
		t.Fatalf("expected unknown option error, got %v", err)
	}
}

func TestLoad_BadOptionValueType(t *testing.T) {
	doc := `
package: p
fields:
  - name: a
    schema: int
    options:
      strict: "yes"
`
	_, err := manifest.Load(strings.NewReader(doc))
	if err == nil {
		t.Fatalf("expected type error for strict")
	}
}

func TestLoad_MissingRequiredKeys(t *testing.T) {
	cases := map[string]string{
		"no package": "fields: []\n",
		"no fields":  "package: p\n",
		"no name":    "package: p\nfields:\n  - schema: int\n",
		"no schema":  "package: p\nfields:\n  - name: a\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := manifest.Load(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoad_UnknownTopLevelKey(t *testing.T) {
	doc := "package: p\nfields: []\nextra: true\n"
	_, err := manifest.Load(strings.NewReader(doc))
	if err == nil || !strings.Contains(err.Error(), `unknown key "extra"`) {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoad_ModeOption(t *testing.T) {
	doc := `
package: p
fields:
  - name: a
    schema: time
    options:
      mode: python
`
	m, err := manifest.Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Fields[0].Kwargs.Mode != schemafield.ModePython {
		t.Fatalf("mode not extracted: %v", m.Fields[0].Kwargs.Mode)
	}
}
