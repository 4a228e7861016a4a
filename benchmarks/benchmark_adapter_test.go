package schemafield_test

import (
	"reflect"
	"testing"

	schemafield "github.com/typeadapt/schemafield"
)

type benchPost struct {
	Title string  `json:"title"`
	Views int64   `json:"views,omitempty"`
	Tags  []int64 `json:"tags,omitempty"`
}

func smallPostJSON() []byte {
	return []byte(`{"title":"Hello","views":7,"tags":[1,2,3]}`)
}

func benchAdapter(tb testing.TB) *schemafield.SchemaAdapter {
	tb.Helper()
	a, err := schemafield.FromType(reflect.TypeOf(benchPost{}), nil, nil)
	if err != nil {
		tb.Fatalf("FromType: %v", err)
	}
	// Resolve up front so the loop measures validation, not compilation.
	if _, err := a.Prepared(); err != nil {
		tb.Fatalf("Prepared: %v", err)
	}
	return a
}

func Benchmark_ValidateJSON_Struct_Small(b *testing.B) {
	a := benchAdapter(b)
	data := smallPostJSON()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.ValidateJSON(data); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_ValidatePython_Struct_Small(b *testing.B) {
	a := benchAdapter(b)
	in := map[string]any{"title": "Hello", "views": int64(7), "tags": []any{1, 2, 3}}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.ValidatePython(in); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_DumpJSON_Struct_Small(b *testing.B) {
	a := benchAdapter(b)
	v := benchPost{Title: "Hello", Views: 7, Tags: []int64{1, 2, 3}}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.DumpJSON(v); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_ValidateJSON_ListInt(b *testing.B) {
	a, err := schemafield.FromType("list[int]", nil, nil)
	if err != nil {
		b.Fatalf("FromType: %v", err)
	}
	data := []byte(`[1,2,3,4,5,6,7,8]`)
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.ValidateJSON(data); err != nil {
			b.Fatal(err)
		}
	}
}
