package schemafield_test

import (
	"errors"
	"reflect"
	"testing"

	schemafield "github.com/typeadapt/schemafield"
	"github.com/typeadapt/schemafield/namespace"
	"github.com/typeadapt/schemafield/schemaref"
)

func TestAdapter_ListIntEndToEnd(t *testing.T) {
	a, err := schemafield.FromType("list[int]", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}

	v, err := a.ValidateJSON([]byte("[1, 2, 3]"))
	if err != nil {
		t.Fatalf("ValidateJSON: %v", err)
	}
	got, ok := v.([]int64)
	if !ok {
		t.Fatalf("expected []int64, got %T", v)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected values: %v", got)
	}

	out, err := a.DumpJSON(got)
	if err != nil {
		t.Fatalf("DumpJSON: %v", err)
	}
	if string(out) != "[1,2,3]" {
		t.Fatalf("expected [1,2,3], got %s", out)
	}
}

func TestAdapter_ValidateJSON_ParseError(t *testing.T) {
	a, err := schemafield.FromType("int", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	_, err = a.ValidateJSON([]byte("{not json"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
	iss, ok := schemafield.AsIssues(err)
	if !ok || len(iss) == 0 || iss[0].Code != schemafield.CodeParseError {
		t.Fatalf("expected parse_error, got %v", err)
	}

	// Exactly one JSON value is accepted per document.
	lst, err := schemafield.FromType("list[int]", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	_, err = lst.ValidateJSON([]byte("[1,2,3] trailing garbage"))
	if iss, ok := schemafield.AsIssues(err); !ok || len(iss) == 0 || iss[0].Code != schemafield.CodeParseError {
		t.Fatalf("expected parse_error for trailing data, got %v", err)
	}
	_, err = lst.ValidateJSON([]byte("[1] [2]"))
	if iss, ok := schemafield.AsIssues(err); !ok || len(iss) == 0 || iss[0].Code != schemafield.CodeParseError {
		t.Fatalf("expected parse_error for a second value, got %v", err)
	}
}

func TestAdapter_NullWrapping(t *testing.T) {
	a, err := schemafield.FromType("int", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	a.WithAllowNull(true)

	prepared, err := a.Prepared()
	if err != nil {
		t.Fatalf("Prepared: %v", err)
	}
	if _, ok := prepared.(schemaref.Optional); !ok {
		t.Fatalf("expected Optional wrapping, got %T", prepared)
	}

	v, err := a.ValidatePython(nil)
	if err != nil {
		t.Fatalf("null should validate: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil, got %v", v)
	}

	// Without the null policy the same input is rejected.
	b, _ := schemafield.FromType("int", nil, nil)
	if _, err := b.ValidatePython(nil); err == nil {
		t.Fatalf("expected error for null without allowNull")
	}
}

func TestAdapter_StrictOverridePrecedence(t *testing.T) {
	opts := map[string]any{"strict": true}
	a, err := schemafield.FromType("int", nil, opts)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}

	// Stored kwargs say strict: numeric strings do not coerce.
	if _, err := a.ValidatePython("12"); err == nil {
		t.Fatalf("expected strict rejection of string input")
	}

	// A per-call override wins over the stored kwargs.
	lax := false
	v, err := a.ValidatePython("12", schemafield.ValidateOpt{Strict: &lax})
	if err != nil {
		t.Fatalf("lax override: %v", err)
	}
	if v != int64(12) {
		t.Fatalf("expected int64(12), got %v (%T)", v, v)
	}
}

func TestExtractExportKwargs_Destructive(t *testing.T) {
	opts := map[string]any{
		"strict":   true,
		"by_alias": false,
		"mode":     "python",
		"include":  []string{"a", "b"},
		"custom":   42,
	}
	kw, err := schemafield.ExtractExportKwargs(opts)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if kw.Strict == nil || !*kw.Strict {
		t.Fatalf("strict not extracted: %+v", kw)
	}
	if kw.ByAlias == nil || *kw.ByAlias {
		t.Fatalf("by_alias not extracted: %+v", kw)
	}
	if kw.Mode != schemafield.ModePython {
		t.Fatalf("mode not extracted: %v", kw.Mode)
	}
	if len(kw.Include) != 2 {
		t.Fatalf("include not extracted: %v", kw.Include)
	}
	// Recognized keys are popped; unrecognized keys stay for the caller.
	if len(opts) != 1 {
		t.Fatalf("expected only the unknown key to remain, got %v", opts)
	}
	if _, ok := opts["custom"]; !ok {
		t.Fatalf("custom should survive extraction: %v", opts)
	}
}

func TestExtractExportKwargs_BadValueType(t *testing.T) {
	opts := map[string]any{"strict": "yes"}
	if _, err := schemafield.ExtractExportKwargs(opts); err == nil {
		t.Fatalf("expected error for non-bool strict")
	}
	opts = map[string]any{"mode": "xml"}
	if _, err := schemafield.ExtractExportKwargs(opts); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

type nsOwner struct {
	ns map[string]any
}

func (o *nsOwner) LocalNamespace() map[string]any { return o.ns }

type comment struct {
	Text string `json:"text"`
}

func TestAdapter_DeferredForwardRef(t *testing.T) {
	owner := &nsOwner{ns: map[string]any{}}
	a, err := schemafield.FromType("Comment", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	a.Bind(owner, "comment")

	// The name is not registered yet: resolution fails, but the failure is
	// not cached.
	_, err = a.ValidatePython(map[string]any{"text": "hi"})
	if err == nil {
		t.Fatalf("expected unresolved reference error")
	}
	var unresolved *namespace.UnresolvedRefError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedRefError, got %T: %v", err, err)
	}

	// Registering the name afterwards makes the same adapter usable.
	owner.ns["Comment"] = reflect.TypeOf(comment{})
	v, err := a.ValidatePython(map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("retry after registration: %v", err)
	}
	c, ok := v.(comment)
	if !ok || c.Text != "hi" {
		t.Fatalf("unexpected result: %v (%T)", v, v)
	}
}

func TestAdapter_RebindInvalidatesResolution(t *testing.T) {
	type v1 struct {
		Name string `json:"name"`
	}
	type v2 struct {
		Name string `json:"name"`
		Age  int64  `json:"age,omitempty"`
	}
	ownerA := &nsOwner{ns: map[string]any{"Payload": reflect.TypeOf(v1{})}}
	ownerB := &nsOwner{ns: map[string]any{"Payload": reflect.TypeOf(v2{})}}

	a, err := schemafield.FromType("Payload", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	a.Bind(ownerA, "payload")

	p1, err := a.Prepared()
	if err != nil {
		t.Fatalf("Prepared A: %v", err)
	}
	// Resolution is memoized: repeated calls return the same schema.
	p1b, err := a.Prepared()
	if err != nil || !schemaref.Equal(p1, p1b) {
		t.Fatalf("resolution not deterministic: %v vs %v (err=%v)", p1, p1b, err)
	}

	a.Bind(ownerB, "payload")
	p2, err := a.Prepared()
	if err != nil {
		t.Fatalf("Prepared B: %v", err)
	}
	if schemaref.Equal(p1, p2) {
		t.Fatalf("rebind should re-resolve against the new owner namespace")
	}
}

type annotatedOwner struct {
	Tags []string `json:"tags" schema:"list[string]"`
}

func TestAdapter_FromAnnotation(t *testing.T) {
	a, err := schemafield.FromAnnotation(annotatedOwner{}, "Tags", nil, nil)
	if err != nil {
		t.Fatalf("FromAnnotation: %v", err)
	}
	if !a.IsBound() || a.Attname() != "Tags" {
		t.Fatalf("binding state wrong: bound=%v attname=%q", a.IsBound(), a.Attname())
	}
	v, err := a.ValidateJSON([]byte(`["a", "b"]`))
	if err != nil {
		t.Fatalf("ValidateJSON: %v", err)
	}
	tags, ok := v.([]string)
	if !ok || len(tags) != 2 || tags[0] != "a" {
		t.Fatalf("unexpected result: %v (%T)", v, v)
	}
}

func TestAdapter_FromAnnotation_FallsBackToGoType(t *testing.T) {
	type owner struct {
		Count int64 `json:"count"`
	}
	a, err := schemafield.FromAnnotation(owner{}, "Count", nil, nil)
	if err != nil {
		t.Fatalf("FromAnnotation: %v", err)
	}
	v, err := a.ValidateJSON([]byte("7"))
	if err != nil {
		t.Fatalf("ValidateJSON: %v", err)
	}
	if v != int64(7) {
		t.Fatalf("expected int64(7), got %v (%T)", v, v)
	}
}

func TestAdapter_ValidateSchema_Unresolvable(t *testing.T) {
	a, err := schemafield.FromType(nil, nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	// No schema, unbound: configuration error, not a panic.
	err = a.ValidateSchema()
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	if _, ok := schemafield.AsImproperlyConfigured(err); !ok {
		t.Fatalf("expected ImproperlyConfiguredError, got %T: %v", err, err)
	}
}

func TestAdapter_Equal(t *testing.T) {
	a, _ := schemafield.FromType("list[int]", nil, nil)
	b, _ := schemafield.FromType("list[int]", nil, nil)
	if !a.Equal(b) {
		t.Fatalf("identical unbound declarations should compare equal")
	}

	c, _ := schemafield.FromType("list[string]", nil, nil)
	if a.Equal(c) {
		t.Fatalf("different schemas should not compare equal")
	}

	d, _ := schemafield.FromType("list[int]", nil, map[string]any{"by_alias": false})
	if a.Equal(d) {
		t.Fatalf("different export kwargs should not compare equal")
	}

	// Bound adapters compare by prepared schema; a type spelled as an
	// expression equals the same type spelled concretely.
	owner := struct{}{}
	e, _ := schemafield.FromType("list[int]", nil, nil)
	f, _ := schemafield.FromType(reflect.TypeOf([]int64(nil)), nil, nil)
	e.Bind(owner, "x")
	f.Bind(owner, "x")
	if !e.Equal(f) {
		t.Fatalf("equivalent prepared schemas should compare equal")
	}
}

func TestAdapter_Copy(t *testing.T) {
	owner := &nsOwner{ns: map[string]any{"T": reflect.TypeOf(comment{})}}
	a, _ := schemafield.FromType("T", nil, nil)
	a.Bind(owner, "t")
	if _, err := a.Prepared(); err != nil {
		t.Fatalf("Prepared: %v", err)
	}

	other := &nsOwner{ns: map[string]any{"T": reflect.TypeOf(annotatedOwner{})}}
	cp := a.Copy()
	cp.Bind(other, "t")

	pa, _ := a.Prepared()
	pc, err := cp.Prepared()
	if err != nil {
		t.Fatalf("copy Prepared: %v", err)
	}
	if schemaref.Equal(pa, pc) {
		t.Fatalf("copy should resolve independently of the original")
	}
}

func TestAdapter_DefaultValue(t *testing.T) {
	a, err := schemafield.FromType("Annotated[int, Meta(default=7)]", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	v, ok, err := a.DefaultValue()
	if err != nil {
		t.Fatalf("DefaultValue: %v", err)
	}
	if !ok || v != int64(7) {
		t.Fatalf("expected declared default 7, got %v ok=%v", v, ok)
	}

	b, _ := schemafield.FromType("int", nil, nil)
	if _, ok, _ := b.DefaultValue(); ok {
		t.Fatalf("plain int has no declared default")
	}

	// Nullability alone declares no default.
	c, _ := schemafield.FromType("int", nil, nil)
	c.WithAllowNull(true)
	if _, ok, _ := c.DefaultValue(); ok {
		t.Fatalf("allowNull must not manufacture a default")
	}

	// The null wrapper still passes an inner declared default through.
	d, err := schemafield.FromType("Annotated[int, Meta(default=7)]", nil, nil)
	if err != nil {
		t.Fatalf("FromType: %v", err)
	}
	d.WithAllowNull(true)
	if v, ok, _ := d.DefaultValue(); !ok || v != int64(7) {
		t.Fatalf("expected inner default 7 through the null wrapper, got %v ok=%v", v, ok)
	}
}
