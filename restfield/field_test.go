package restfield_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/typeadapt/schemafield/restfield"
)

type serializer struct{}

type event struct {
	Kind string `json:"kind"`
	Size int64  `json:"size,omitempty"`
}

func TestField_InternalValueAndRepresentation(t *testing.T) {
	f, err := restfield.New(reflect.TypeOf(event{}), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.Bind(serializer{}, "event")

	v, err := f.ToInternalValue(map[string]any{"kind": "push", "size": 3})
	if err != nil {
		t.Fatalf("ToInternalValue: %v", err)
	}
	ev := v.(event)
	if ev.Kind != "push" || ev.Size != 3 {
		t.Fatalf("unexpected value: %+v", ev)
	}

	rep, err := f.ToRepresentation(ev)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	m := rep.(map[string]any)
	if m["kind"] != "push" {
		t.Fatalf("unexpected representation: %v", m)
	}
}

func TestField_ValidationErrorDetail(t *testing.T) {
	f, err := restfield.New(reflect.TypeOf(event{}), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = f.ToInternalValue(map[string]any{"size": "big"})
	var ve *restfield.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Detail["/kind"]) == 0 {
		t.Fatalf("missing required detail: %v", ve.Detail)
	}
	if len(ve.Detail["/size"]) == 0 {
		t.Fatalf("bad type detail: %v", ve.Detail)
	}
}

func TestField_ParseRender(t *testing.T) {
	f, err := restfield.New(reflect.TypeOf(event{}), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := f.Parse([]byte(`{"kind": "tag"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	body, err := f.Render(v)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(body) == "" || string(body)[0] != '{' {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestField_OpenAPISchema(t *testing.T) {
	f, err := restfield.New(reflect.TypeOf(event{}), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := f.OpenAPISchema()
	if err != nil {
		t.Fatalf("OpenAPISchema: %v", err)
	}
	if s.Type != "object" {
		t.Fatalf("expected object schema, got %q", s.Type)
	}
	if _, ok := s.Properties["kind"]; !ok {
		t.Fatalf("missing kind property: %v", s.Properties)
	}
}
