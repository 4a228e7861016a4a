package artifact_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeadapt/schemafield/artifact"
	"github.com/typeadapt/schemafield/namespace"
	"github.com/typeadapt/schemafield/schemaref"
)

type blogPost struct {
	Title string `json:"title"`
}

func freshEnv() *artifact.Env {
	return artifact.NewEnv(namespace.New())
}

func TestSerialize_EvalRoundTrip(t *testing.T) {
	ge := 1.0
	le := 10.0
	cases := []struct {
		name string
		ref  any
	}{
		{"concrete int", schemaref.Concrete{Type: schemaref.IntType}},
		{"concrete time", schemaref.Concrete{Type: schemaref.TimeType}},
		{"reflect type", reflect.TypeOf([]int64(nil))},
		{"origin", schemaref.OriginSlice},
		{"named", schemaref.Named{Expr: "blog.Comment"}},
		{"generic slice", schemaref.Generic{
			Origin: schemaref.OriginSlice,
			Args:   []schemaref.Ref{schemaref.Concrete{Type: schemaref.IntType}},
		}},
		{"generic map", schemaref.Generic{
			Origin: schemaref.OriginMap,
			Args: []schemaref.Ref{
				schemaref.Concrete{Type: schemaref.StringType},
				schemaref.Concrete{Type: schemaref.FloatType},
			},
		}},
		{"optional", schemaref.Optional{Inner: schemaref.Concrete{Type: schemaref.IntType}}},
		{"union", schemaref.Union{Branches: []schemaref.Ref{
			schemaref.Concrete{Type: schemaref.IntType},
			schemaref.Concrete{Type: schemaref.StringType},
		}}},
		{"literal", schemaref.Literal{Values: []any{"a", int64(1), true}}},
		{"annotated", schemaref.Annotated{
			Origin: schemaref.Concrete{Type: schemaref.IntType},
			Meta:   &schemaref.FieldMeta{Ge: &ge, Le: &le, Title: "count"},
		}},
	}
	r := artifact.DefaultRegistry()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expr, imports, err := r.Serialize(tc.ref)
			require.NoError(t, err)
			require.NotEmpty(t, expr)
			assert.Contains(t, imports.Sorted(), "github.com/typeadapt/schemafield/schemaref")

			back, err := artifact.Eval(expr, freshEnv())
			require.NoError(t, err, "expr: %s", expr)
			assert.True(t, schemaref.Equal(tc.ref, back),
				"round trip changed the ref: %v -> %v (expr %s)", tc.ref, back, expr)
		})
	}
}

func TestSerialize_NamedTypeUsesTypeFor(t *testing.T) {
	r := artifact.DefaultRegistry()
	expr, imports, err := r.Serialize(reflect.TypeOf(blogPost{}))
	require.NoError(t, err)
	assert.Contains(t, expr, "schemaref.TypeFor[artifact_test.blogPost]()")
	assert.Contains(t, imports.Sorted(), "github.com/typeadapt/schemafield/artifact_test")

	// The package selector resolves through the environment.
	env := freshEnv()
	env.Bind("artifact_test.blogPost", reflect.TypeOf(blogPost{}))
	back, err := artifact.Eval(expr, env)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(blogPost{}), back)
}

func TestSerialize_TimeTypesImportTime(t *testing.T) {
	r := artifact.DefaultRegistry()
	expr, imports, err := r.Serialize(schemaref.TimeType)
	require.NoError(t, err)
	assert.Equal(t, "schemaref.TypeFor[time.Time]()", expr)
	assert.Contains(t, imports.Sorted(), "time")

	back, err := artifact.Eval(expr, freshEnv())
	require.NoError(t, err)
	assert.Equal(t, schemaref.TimeType, back)
}

func TestSerialize_StructSnapshotBeforeGeneric(t *testing.T) {
	type limits struct {
		Min int64
		Max int64
	}
	snap := schemaref.Wrap(limits{Min: 1, Max: 5})
	require.IsType(t, schemaref.StructSnapshot{}, snap)

	r := artifact.DefaultRegistry()
	expr, _, err := r.Serialize(snap)
	require.NoError(t, err)
	// Snapshot serializers win over the container fallback: the instance
	// renders as a composite literal of its own type.
	assert.Contains(t, expr, "limits{")
	assert.Contains(t, expr, "Min: 1")

	env := freshEnv()
	env.Bind("artifact_test.limits", reflect.TypeOf(limits{}))
	back, err := artifact.Eval(expr, env)
	require.NoError(t, err)
	restored, ok := back.(limits)
	require.True(t, ok, "got %T", back)
	assert.Equal(t, limits{Min: 1, Max: 5}, restored)
}

func TestSerialize_MetaUsesConstructor(t *testing.T) {
	ge := 2.0
	meta := &schemaref.FieldMeta{Ge: &ge, Pattern: "^x"}
	r := artifact.DefaultRegistry()
	expr, _, err := r.Serialize(meta)
	require.NoError(t, err)
	assert.Contains(t, expr, "schemaref.Meta(map[string]any{")

	back, err := artifact.Eval(expr, freshEnv())
	require.NoError(t, err)
	restored, ok := back.(*schemaref.FieldMeta)
	require.True(t, ok, "got %T", back)
	assert.True(t, meta.Equal(restored))
}

type customRange struct {
	Lo, Hi int64
}

func (c customRange) ReprArgs() []artifact.ReprArg {
	return []artifact.ReprArg{{Name: "lo", Value: c.Lo}, {Name: "hi", Value: c.Hi}}
}

func TestSerialize_ReprFallback(t *testing.T) {
	r := artifact.DefaultRegistry()
	expr, _, err := r.Serialize(customRange{Lo: 1, Hi: 9})
	require.NoError(t, err)
	assert.Equal(t, "artifact_test.customRange(1, 9)", expr)

	env := freshEnv()
	env.BindFunc("artifact_test.customRange", func(lo, hi int64) customRange {
		return customRange{Lo: lo, Hi: hi}
	})
	back, err := artifact.Eval(expr, env)
	require.NoError(t, err)
	assert.Equal(t, customRange{Lo: 1, Hi: 9}, back)
}

func TestSerialize_NotSerializable(t *testing.T) {
	r := artifact.DefaultRegistry()
	_, _, err := r.Serialize(make(chan int))
	var nse *artifact.NotSerializableError
	require.ErrorAs(t, err, &nse)
}

func TestEval_UnresolvedName(t *testing.T) {
	_, err := artifact.Eval("blog.Comment{}", freshEnv())
	var unresolved *namespace.UnresolvedRefError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "blog.Comment", unresolved.Name)
}

func TestRegistry_RegistrationOrder(t *testing.T) {
	r := artifact.NewRegistry()
	r.Register(func(v any) bool { _, ok := v.(int64); return ok },
		artifact.SerializerFunc(func(v any, _ *artifact.Registry) (string, artifact.Imports, error) {
			return "first", artifact.Imports{}, nil
		}))
	r.Register(func(v any) bool { return true },
		artifact.SerializerFunc(func(v any, _ *artifact.Registry) (string, artifact.Imports, error) {
			return "second", artifact.Imports{}, nil
		}))

	expr, _, err := r.Serialize(int64(1))
	require.NoError(t, err)
	assert.Equal(t, "first", expr)

	expr, _, err = r.Serialize("anything")
	require.NoError(t, err)
	assert.Equal(t, "second", expr)
}
