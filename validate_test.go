package schemafield_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	schemafield "github.com/typeadapt/schemafield"
)

type article struct {
	Title   string   `json:"title"`
	Views   int64    `json:"views,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Summary *string  `json:"summary"`
}

func mustAdapter(t *testing.T, schema any, cfg *schemafield.Config, opts map[string]any) *schemafield.SchemaAdapter {
	t.Helper()
	a, err := schemafield.FromType(schema, cfg, opts)
	if err != nil {
		t.Fatalf("FromType(%v): %v", schema, err)
	}
	return a
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", code)
	}
	iss, ok := schemafield.AsIssues(err)
	if !ok {
		t.Fatalf("expected Issues, got %T: %v", err, err)
	}
	for _, it := range iss {
		if it.Code == code {
			return
		}
	}
	t.Fatalf("expected code %s among %v", code, iss)
}

func TestValidate_Struct_RequiredAndUnknown(t *testing.T) {
	a := mustAdapter(t, reflect.TypeOf(article{}), nil, nil)

	// Pointer and omitempty fields are optional; title is required.
	v, err := a.ValidatePython(map[string]any{"title": "hello"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	art, ok := v.(article)
	if !ok || art.Title != "hello" {
		t.Fatalf("unexpected result: %v (%T)", v, v)
	}

	_, err = a.ValidatePython(map[string]any{"views": 3})
	wantCode(t, err, schemafield.CodeRequired)

	// Unknown keys are rejected under the default strict policy.
	_, err = a.ValidatePython(map[string]any{"title": "x", "bogus": 1})
	wantCode(t, err, schemafield.CodeUnknownKey)

	// The strip policy drops them instead.
	cfg := &schemafield.Config{UnknownKeys: schemafield.UnknownStrip}
	b := mustAdapter(t, reflect.TypeOf(article{}), cfg, nil)
	if _, err := b.ValidatePython(map[string]any{"title": "x", "bogus": 1}); err != nil {
		t.Fatalf("strip policy should accept unknown keys: %v", err)
	}
}

func TestValidate_Struct_ExplicitNull(t *testing.T) {
	a := mustAdapter(t, reflect.TypeOf(article{}), nil, nil)

	// Null only fits fields with a nil representation.
	_, err := a.ValidateJSON([]byte(`{"title": null}`))
	wantCode(t, err, schemafield.CodeInvalidType)

	v, err := a.ValidateJSON([]byte(`{"title": "x", "tags": null, "summary": null}`))
	if err != nil {
		t.Fatalf("nullable fields should accept null: %v", err)
	}
	art := v.(article)
	if art.Tags != nil || art.Summary != nil {
		t.Fatalf("null should leave nil fields: %+v", art)
	}
}

func TestValidate_Struct_AliasAndGoName(t *testing.T) {
	a := mustAdapter(t, reflect.TypeOf(article{}), nil, nil)

	// Both the wire alias and the Go field name address a field.
	v, err := a.ValidatePython(map[string]any{"Title": "by name"})
	if err != nil {
		t.Fatalf("validate by Go name: %v", err)
	}
	if v.(article).Title != "by name" {
		t.Fatalf("unexpected result: %v", v)
	}
}

func TestValidate_Struct_FromAttributes(t *testing.T) {
	type row struct {
		Title string
		Views int64
	}
	a := mustAdapter(t, reflect.TypeOf(article{}), nil, nil)

	// A foreign struct only validates with from_attributes enabled.
	if _, err := a.ValidatePython(row{Title: "orm", Views: 5}); err == nil {
		t.Fatalf("expected rejection without from_attributes")
	}
	on := true
	v, err := a.ValidatePython(row{Title: "orm", Views: 5}, schemafield.ValidateOpt{FromAttributes: &on})
	if err != nil {
		t.Fatalf("from_attributes: %v", err)
	}
	art := v.(article)
	if art.Title != "orm" || art.Views != 5 {
		t.Fatalf("unexpected projection: %+v", art)
	}
}

func TestValidate_Struct_NestedPath(t *testing.T) {
	type outer struct {
		Items []int64 `json:"items"`
	}
	a := mustAdapter(t, reflect.TypeOf(outer{}), nil, nil)
	_, err := a.ValidateJSON([]byte(`{"items": [1, "two", 3]}`))
	iss, ok := schemafield.AsIssues(err)
	if !ok || len(iss) == 0 {
		t.Fatalf("expected issues, got %v", err)
	}
	if iss[0].Path != "/items/1" {
		t.Fatalf("expected pointer /items/1, got %q", iss[0].Path)
	}
}

func TestValidate_IntCoercion(t *testing.T) {
	a := mustAdapter(t, "int", nil, nil)

	// Lax mode accepts integral floats and numeric strings.
	for _, in := range []any{int64(5), 5, 5.0, "5"} {
		v, err := a.ValidatePython(in)
		if err != nil {
			t.Fatalf("lax %T: %v", in, err)
		}
		if v != int64(5) {
			t.Fatalf("expected int64(5) for %T, got %v (%T)", in, v, v)
		}
	}
	_, err := a.ValidatePython(5.5)
	wantCode(t, err, schemafield.CodeInvalidType)

	// Strict mode rejects the string spelling.
	_, err = a.ValidatePython("5", schemafield.Strictly())
	wantCode(t, err, schemafield.CodeInvalidType)
}

func TestValidate_IntOverflow(t *testing.T) {
	a := mustAdapter(t, reflect.TypeOf(int8(0)), nil, nil)
	_, err := a.ValidatePython(300)
	wantCode(t, err, schemafield.CodeOverflow)

	u := mustAdapter(t, reflect.TypeOf(uint8(0)), nil, nil)
	_, err = u.ValidatePython(-1)
	wantCode(t, err, schemafield.CodeTooSmall)
}

func TestValidate_FloatNaN(t *testing.T) {
	a := mustAdapter(t, "float", nil, nil)
	_, err := a.ValidatePython(math.NaN())
	wantCode(t, err, schemafield.CodeInvalidFormat)

	cfg := &schemafield.Config{AllowNaN: true}
	b := mustAdapter(t, "float", cfg, nil)
	if _, err := b.ValidatePython(math.NaN()); err != nil {
		t.Fatalf("AllowNaN should accept NaN: %v", err)
	}
}

func TestValidate_TimeAndDuration(t *testing.T) {
	ta := mustAdapter(t, "time", nil, nil)
	v, err := ta.ValidatePython("2024-03-01T12:00:00Z")
	if err != nil {
		t.Fatalf("time parse: %v", err)
	}
	ts := v.(time.Time)
	if ts.Year() != 2024 || ts.Month() != time.March {
		t.Fatalf("unexpected time: %v", ts)
	}
	_, err = ta.ValidatePython("not a time")
	wantCode(t, err, schemafield.CodeInvalidFormat)

	da := mustAdapter(t, "duration", nil, nil)
	v, err = da.ValidatePython("1h30m")
	if err != nil {
		t.Fatalf("duration parse: %v", err)
	}
	if v.(time.Duration) != 90*time.Minute {
		t.Fatalf("unexpected duration: %v", v)
	}
}

func TestValidate_Bytes(t *testing.T) {
	a := mustAdapter(t, "bytes", nil, nil)
	v, err := a.ValidatePython("aGVsbG8=") // "hello"
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	if string(v.([]byte)) != "hello" {
		t.Fatalf("unexpected bytes: %q", v)
	}
}

func TestValidate_Union(t *testing.T) {
	a := mustAdapter(t, "int | string", nil, nil)
	if v, err := a.ValidatePython("x"); err != nil || v != "x" {
		t.Fatalf("string branch: v=%v err=%v", v, err)
	}
	if v, err := a.ValidatePython(3); err != nil || v != int64(3) {
		t.Fatalf("int branch: v=%v err=%v", v, err)
	}
	_, err := a.ValidatePython(true)
	wantCode(t, err, schemafield.CodeUnionNoMatch)
}

func TestValidate_OptionalSpelling(t *testing.T) {
	// "X | None" folds into Optional.
	a := mustAdapter(t, "int | None", nil, nil)
	if v, err := a.ValidatePython(nil); err != nil || v != nil {
		t.Fatalf("null: v=%v err=%v", v, err)
	}
	if v, err := a.ValidatePython(9); err != nil || v != int64(9) {
		t.Fatalf("int: v=%v err=%v", v, err)
	}
}

func TestValidate_Literal(t *testing.T) {
	a := mustAdapter(t, `Literal["draft", "published"]`, nil, nil)
	if v, err := a.ValidatePython("draft"); err != nil || v != "draft" {
		t.Fatalf("literal: v=%v err=%v", v, err)
	}
	_, err := a.ValidatePython("deleted")
	wantCode(t, err, schemafield.CodeInvalidEnum)
}

func TestValidate_AnnotatedConstraints(t *testing.T) {
	a := mustAdapter(t, "Annotated[int, Meta(ge=1, le=10)]", nil, nil)
	if v, err := a.ValidatePython(5); err != nil || v != int64(5) {
		t.Fatalf("in range: v=%v err=%v", v, err)
	}
	_, err := a.ValidatePython(11)
	wantCode(t, err, schemafield.CodeTooBig)
	_, err = a.ValidatePython(0)
	wantCode(t, err, schemafield.CodeTooSmall)

	s := mustAdapter(t, `Annotated[string, Meta(min_len=2, pattern="^[a-z]+$")]`, nil, nil)
	_, err = s.ValidatePython("a")
	wantCode(t, err, schemafield.CodeTooShort)
	_, err = s.ValidatePython("ABC")
	wantCode(t, err, schemafield.CodePattern)
}

func TestValidate_MapSchema(t *testing.T) {
	a := mustAdapter(t, "map[string, int]", nil, nil)
	v, err := a.ValidateJSON([]byte(`{"a": 1, "b": 2}`))
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	m, ok := v.(map[string]int64)
	if !ok || m["a"] != 1 || m["b"] != 2 {
		t.Fatalf("unexpected map: %v (%T)", v, v)
	}
}
