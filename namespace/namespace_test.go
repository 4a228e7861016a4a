package namespace_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/typeadapt/schemafield/namespace"
	"github.com/typeadapt/schemafield/schemaref"
)

type ticket struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
}

type localOwner struct {
	bindings map[string]any
}

func (o *localOwner) LocalNamespace() map[string]any { return o.bindings }

func TestNamespace_RegisterAndLookup(t *testing.T) {
	ns := namespace.New()
	ns.Register("Ticket", reflect.TypeOf(ticket{}))

	v, ok := ns.Lookup("Ticket")
	if !ok {
		t.Fatalf("expected binding for Ticket")
	}
	if v != reflect.TypeOf(ticket{}) {
		t.Fatalf("unexpected binding: %v", v)
	}
	if _, ok := ns.Lookup("Missing"); ok {
		t.Fatalf("unexpected binding for Missing")
	}
}

func TestNamespace_RegisterValueBindsItsType(t *testing.T) {
	ns := namespace.New()
	ns.Register("Ticket", ticket{})

	v, _ := ns.Lookup("Ticket")
	if v != reflect.TypeOf(ticket{}) {
		t.Fatalf("registering a value should bind its dynamic type, got %v", v)
	}
}

func TestRegisterType_DefaultName(t *testing.T) {
	ns := namespace.New()
	namespace.RegisterType[ticket](ns, "")

	name := schemaref.TypeName(reflect.TypeOf(ticket{}))
	if _, ok := ns.Lookup(name); !ok {
		t.Fatalf("expected binding under %q, have %v", name, ns.Names())
	}
}

func TestGetNamespace_LocalShadowsGlobal(t *testing.T) {
	namespace.Global().Register("nsTestShadowed", reflect.TypeOf(ticket{}))
	owner := &localOwner{bindings: map[string]any{
		"nsTestShadowed": schemaref.IntType,
		"nsTestLocal":    schemaref.StringType,
	}}

	merged := namespace.GetNamespace(owner)
	if v, _ := merged.Lookup("nsTestShadowed"); v != schemaref.IntType {
		t.Fatalf("local binding should shadow global, got %v", v)
	}
	if v, _ := merged.Lookup("nsTestLocal"); v != schemaref.StringType {
		t.Fatalf("local-only binding missing, got %v", v)
	}

	// Without the owner only the global binding is visible.
	plain := namespace.GetNamespace(nil)
	if v, _ := plain.Lookup("nsTestShadowed"); v != reflect.TypeOf(ticket{}) {
		t.Fatalf("global binding lost: %v", v)
	}
}

func TestEvaluateForwardRef(t *testing.T) {
	ns := namespace.New()
	ns.Register("Ticket", reflect.TypeOf(ticket{}))

	// A bare name resolves to its binding.
	v, err := namespace.EvaluateForwardRef(schemaref.Named{Expr: "Ticket"}, ns)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v != reflect.TypeOf(ticket{}) {
		t.Fatalf("unexpected resolution: %v", v)
	}

	// A structured expression parses; inner names stay deferred.
	v, err = namespace.EvaluateForwardRef(schemaref.Named{Expr: "list[Ticket]"}, ns)
	if err != nil {
		t.Fatalf("evaluate structured: %v", err)
	}
	g, ok := v.(schemaref.Generic)
	if !ok || len(g.Args) != 1 {
		t.Fatalf("expected Generic with deferred arg, got %v (%T)", v, v)
	}
	if _, ok := g.Args[0].(schemaref.Named); !ok {
		t.Fatalf("inner name should stay deferred, got %T", g.Args[0])
	}

	// Missing names report an UnresolvedRefError.
	_, err = namespace.EvaluateForwardRef(schemaref.Named{Expr: "Nope"}, ns)
	var unresolved *namespace.UnresolvedRefError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedRefError, got %v", err)
	}
	if unresolved.Name != "Nope" {
		t.Fatalf("unexpected name: %q", unresolved.Name)
	}
}

func TestAnnotatedType(t *testing.T) {
	type model struct {
		Tags  []string `json:"tags" schema:"list[string]"`
		Count int64    `json:"count"`
	}

	// Tagged fields publish the deferred expression.
	v, ok := namespace.AnnotatedType(model{}, "Tags")
	if !ok || v != "list[string]" {
		t.Fatalf("expected schema tag, got %v ok=%v", v, ok)
	}

	// Untagged fields fall back to the Go type.
	v, ok = namespace.AnnotatedType(model{}, "Count")
	if !ok || v != reflect.TypeOf(int64(0)) {
		t.Fatalf("expected Go type fallback, got %v ok=%v", v, ok)
	}

	// Fields are also addressable by their wire key.
	v, ok = namespace.AnnotatedType(&model{}, "tags")
	if !ok || v != "list[string]" {
		t.Fatalf("wire key lookup failed: %v ok=%v", v, ok)
	}

	if _, ok := namespace.AnnotatedType(model{}, "Missing"); ok {
		t.Fatalf("missing field should report no annotation")
	}
}

type annotatorOwner struct{}

func (annotatorOwner) Annotations() map[string]any {
	return map[string]any{"payload": "map[string, int]"}
}

func TestAnnotatedType_AnnotatorInterface(t *testing.T) {
	v, ok := namespace.AnnotatedType(annotatorOwner{}, "payload")
	if !ok || v != "map[string, int]" {
		t.Fatalf("Annotator bindings should win: %v ok=%v", v, ok)
	}
}
