package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	j "github.com/goccy/go-json"

	schemafield "github.com/typeadapt/schemafield"
	"github.com/typeadapt/schemafield/artifact"
	"github.com/typeadapt/schemafield/manifest"
	"github.com/typeadapt/schemafield/modelfield"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "gen":
		genCmd(os.Args[2:])
	case "schema":
		schemaCmd(os.Args[2:])
	case "check":
		checkCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "schemafield CLI\n\nUsage:\n  schemafield gen -manifest fields.yaml -o out.go\n  schemafield schema -type \"list[int]\" [-debug]\n  schemafield check -manifest fields.yaml\n\nNotes:\n  - gen renders a manifest into a generated Go artifact file.\n  - schema prints the JSON Schema for a schema type expression.\n  - check runs declaration diagnostics on every manifest field.")
}

func genCmd(args []string) {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	var manifestPath string
	var out string
	var debug bool
	fs.StringVar(&manifestPath, "manifest", "", "path to the field manifest YAML")
	fs.StringVar(&out, "o", "", "output filename")
	fs.BoolVar(&debug, "debug", false, "dump resolved schema references to stderr")
	_ = fs.Parse(args)
	if manifestPath == "" || out == "" {
		fs.Usage()
		os.Exit(2)
	}

	m, err := manifest.LoadFile(manifestPath)
	if err != nil {
		fatalf("loading manifest: %v", err)
	}

	fields, err := buildFields(m)
	if err != nil {
		fatalf("%v", err)
	}

	w := artifact.NewWriter(nil)
	file := artifact.File{Package: m.Package}
	for _, f := range fields {
		if debug {
			prepared, perr := f.Adapter().Prepared()
			if perr == nil {
				fmt.Fprintf(os.Stderr, "field %q resolved to:\n%s", f.Name(), spew.Sdump(prepared))
			}
		}
		rendered, err := f.Deconstruct(w)
		if err != nil {
			fatalf("field %q: %v", f.Name(), err)
		}
		file.Fields = append(file.Fields, rendered)
	}

	code, err := w.RenderFile(file)
	if err != nil {
		fatalf("rendering artifact: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		fatalf("creating output dir: %v", err)
	}
	if err := os.WriteFile(out, code, 0o644); err != nil {
		fatalf("writing output: %v", err)
	}
}

func schemaCmd(args []string) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	var typeExpr string
	var debug bool
	fs.StringVar(&typeExpr, "type", "", "schema type expression, e.g. \"list[int]\"")
	fs.BoolVar(&debug, "debug", false, "dump the resolved schema reference to stderr")
	_ = fs.Parse(args)
	if typeExpr == "" {
		fs.Usage()
		os.Exit(2)
	}

	adapter, err := schemafield.FromType(typeExpr, nil, nil)
	if err != nil {
		fatalf("building adapter: %v", err)
	}
	if debug {
		prepared, perr := adapter.Prepared()
		if perr != nil {
			fatalf("resolving %q: %v", typeExpr, perr)
		}
		fmt.Fprintf(os.Stderr, "resolved:\n%s", spew.Sdump(prepared))
	}
	schema, err := adapter.JSONSchema()
	if err != nil {
		fatalf("resolving %q: %v", typeExpr, err)
	}
	data, err := j.MarshalIndent(schema, "", "  ")
	if err != nil {
		fatalf("encoding schema: %v", err)
	}
	fmt.Println(string(data))
}

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	var manifestPath string
	fs.StringVar(&manifestPath, "manifest", "", "path to the field manifest YAML")
	_ = fs.Parse(args)
	if manifestPath == "" {
		fs.Usage()
		os.Exit(2)
	}

	m, err := manifest.LoadFile(manifestPath)
	if err != nil {
		fatalf("loading manifest: %v", err)
	}
	fields, err := buildFields(m)
	if err != nil {
		fatalf("%v", err)
	}

	failed := false
	for _, f := range fields {
		for _, d := range f.Check() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", d.ID, d.Message)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// buildFields turns manifest field specs into bound model fields. Options
// are re-extracted per field through the adapter's closed option set.
func buildFields(m *manifest.Manifest) ([]*modelfield.Field, error) {
	out := make([]*modelfield.Field, 0, len(m.Fields))
	for _, spec := range m.Fields {
		opts := make(map[string]any, len(spec.Options))
		for k, v := range spec.Options {
			opts[k] = v
		}
		f, err := modelfield.New(spec.Schema, nil, opts, modelfield.WithNull(spec.AllowNull))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", spec.Name, err)
		}
		out = append(out, f.Bind(nil, spec.Name))
	}
	return out, nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
