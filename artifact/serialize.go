// Package artifact turns wrapped schema references into re-evaluable Go
// source expressions plus the imports needed to reconstruct them, for
// persistence into generated declarative files. The registry maps runtime
// types to serializers; more specific container serializers are consulted
// before the generic fallback.
package artifact

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/typeadapt/schemafield/schemaref"
)

const schemarefImport = "github.com/typeadapt/schemafield/schemaref"

// Imports is a set of package paths a serialized expression depends on.
type Imports map[string]struct{}

// NewImports builds a set from the given paths.
func NewImports(paths ...string) Imports {
	im := Imports{}
	for _, p := range paths {
		im.Add(p)
	}
	return im
}

// Add inserts a path; empty paths are ignored.
func (im Imports) Add(path string) {
	if path != "" {
		im[path] = struct{}{}
	}
}

// Merge unions the other set into this one.
func (im Imports) Merge(other Imports) {
	for p := range other {
		im[p] = struct{}{}
	}
}

// Sorted returns the paths in deterministic order.
func (im Imports) Sorted() []string {
	out := make([]string, 0, len(im))
	for p := range im {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Serializer renders a value into a Go source expression that reconstructs
// an equal value when evaluated with the returned imports resolved.
// Serializers compose recursively through the registry.
type Serializer interface {
	Serialize(v any, r *Registry) (string, Imports, error)
}

// SerializerFunc adapts a function to the Serializer interface.
type SerializerFunc func(v any, r *Registry) (string, Imports, error)

func (f SerializerFunc) Serialize(v any, r *Registry) (string, Imports, error) {
	return f(v, r)
}

// NotSerializableError reports a value with no registered serializer and no
// applicable fallback. It surfaces immediately at artifact-generation time.
type NotSerializableError struct {
	Value any
}

func (e *NotSerializableError) Error() string {
	return fmt.Sprintf("artifact: no serializer registered for %T", e.Value)
}

type entry struct {
	match func(any) bool
	s     Serializer
}

// Registry maps runtime shapes to serializers. Entries are consulted in
// registration order, then the fallback.
type Registry struct {
	entries  []entry
	fallback Serializer
}

// NewRegistry returns an empty registry with no fallback.
func NewRegistry() *Registry { return &Registry{} }

// Register appends a serializer for values matched by match. Registration
// order is consultation order, so register specific shapes before broad ones.
func (r *Registry) Register(match func(any) bool, s Serializer) {
	r.entries = append(r.entries, entry{match: match, s: s})
}

// SetFallback installs the serializer tried after every registered entry.
func (r *Registry) SetFallback(s Serializer) { r.fallback = s }

// Serialize renders v through the first matching serializer.
func (r *Registry) Serialize(v any) (string, Imports, error) {
	for _, e := range r.entries {
		if e.match(v) {
			return e.s.Serialize(v, r)
		}
	}
	if r.fallback != nil {
		return r.fallback.Serialize(v, r)
	}
	return "", nil, &NotSerializableError{Value: v}
}

// ReprArg is one constructor argument of a representable object.
type ReprArg struct {
	Name  string
	Value any
}

// Representable is the structured-repr protocol: objects expose the
// constructor arguments that rebuild them. The fallback serializer renders
// them as a call to the qualified type name; the evaluation environment must
// bind a constructor under that name.
type Representable interface {
	ReprArgs() []ReprArg
}

// DefaultRegistry returns a registry populated with the serializers for
// every reference variant, with struct and metadata snapshots registered
// ahead of the generic container so instance containers are not mistaken
// for opaque values. The representation fallback closes the set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(matchType[schemaref.StructSnapshot](), SerializerFunc(serializeStructSnapshot))
	r.Register(matchType[schemaref.MetaSnapshot](), SerializerFunc(serializeMetaSnapshot))
	r.Register(matchType[schemaref.Annotated](), SerializerFunc(serializeAnnotated))
	r.Register(matchType[schemaref.Generic](), SerializerFunc(serializeGeneric))
	r.Register(matchType[schemaref.Union](), SerializerFunc(serializeUnion))
	r.Register(matchType[schemaref.Optional](), SerializerFunc(serializeOptional))
	r.Register(matchType[schemaref.Literal](), SerializerFunc(serializeLiteral))
	r.Register(matchType[schemaref.Named](), SerializerFunc(serializeNamed))
	r.Register(matchType[schemaref.Origin](), SerializerFunc(serializeOrigin))
	r.Register(matchType[schemaref.Concrete](), SerializerFunc(serializeConcrete))
	r.Register(func(v any) bool { _, ok := v.(reflect.Type); return ok }, SerializerFunc(serializeReflectType))
	r.Register(func(v any) bool { _, ok := v.(*schemaref.FieldMeta); return ok }, SerializerFunc(serializeFieldMeta))
	r.Register(isScalar, SerializerFunc(serializeScalar))
	r.SetFallback(SerializerFunc(serializeRepr))
	return r
}

func matchType[T any]() func(any) bool {
	return func(v any) bool { _, ok := v.(T); return ok }
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func serializeScalar(v any, _ *Registry) (string, Imports, error) {
	switch t := v.(type) {
	case nil:
		return "nil", Imports{}, nil
	case string:
		return strconv.Quote(t), Imports{}, nil
	case bool:
		return strconv.FormatBool(t), Imports{}, nil
	case float64:
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, Imports{}, nil
	case float32:
		return serializeScalar(float64(t), nil)
	}
	return fmt.Sprintf("%d", v), Imports{}, nil
}

func serializeOrigin(v any, _ *Registry) (string, Imports, error) {
	o := v.(schemaref.Origin)
	var name string
	switch o {
	case schemaref.OriginSlice:
		name = "OriginSlice"
	case schemaref.OriginMap:
		name = "OriginMap"
	case schemaref.OriginPtr:
		name = "OriginPtr"
	default:
		return "", nil, fmt.Errorf("artifact: cannot serialize origin %v", o)
	}
	return "schemaref." + name, NewImports(schemarefImport), nil
}

func serializeNamed(v any, _ *Registry) (string, Imports, error) {
	n := v.(schemaref.Named)
	return fmt.Sprintf("schemaref.Named{Expr: %s}", strconv.Quote(n.Expr)),
		NewImports(schemarefImport), nil
}

func serializeConcrete(v any, r *Registry) (string, Imports, error) {
	return serializeReflectType(v.(schemaref.Concrete).Type, r)
}

// serializeReflectType renders a live type as schemaref.TypeFor[...](), so
// the emitted expression both compiles in a generated file and re-evaluates
// to the same reflect.Type.
func serializeReflectType(v any, _ *Registry) (string, Imports, error) {
	t := v.(reflect.Type)
	im := NewImports(schemarefImport)
	src, err := goTypeExpr(t, im)
	if err != nil {
		return "", nil, err
	}
	return "schemaref.TypeFor[" + src + "]()", im, nil
}

// goTypeExpr renders t in Go type syntax, collecting package imports for
// named types.
func goTypeExpr(t reflect.Type, im Imports) (string, error) {
	switch t {
	case schemaref.TimeType:
		im.Add("time")
		return "time.Time", nil
	case schemaref.DurationType:
		im.Add("time")
		return "time.Duration", nil
	case schemaref.AnyType:
		return "any", nil
	}
	if t.Name() != "" {
		if pkg := t.PkgPath(); pkg != "" {
			im.Add(pkg)
			short := pkg
			if i := strings.LastIndexByte(pkg, '/'); i >= 0 {
				short = pkg[i+1:]
			}
			return short + "." + t.Name(), nil
		}
		return t.Name(), nil
	}
	switch t.Kind() {
	case reflect.Slice:
		elem, err := goTypeExpr(t.Elem(), im)
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case reflect.Map:
		key, err := goTypeExpr(t.Key(), im)
		if err != nil {
			return "", err
		}
		elem, err := goTypeExpr(t.Elem(), im)
		if err != nil {
			return "", err
		}
		return "map[" + key + "]" + elem, nil
	case reflect.Pointer:
		elem, err := goTypeExpr(t.Elem(), im)
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case reflect.Interface:
		return "any", nil
	default:
		return "", fmt.Errorf("artifact: cannot render type %s as a source expression", t)
	}
}

func serializeGeneric(v any, r *Registry) (string, Imports, error) {
	g := v.(schemaref.Generic)
	im := NewImports(schemarefImport)
	origin, oim, err := serializeRefField(g.Origin, r)
	if err != nil {
		return "", nil, err
	}
	im.Merge(oim)
	if len(g.Args) == 0 {
		return fmt.Sprintf("schemaref.Generic{Origin: %s}", origin), im, nil
	}
	args := make([]string, len(g.Args))
	for i, a := range g.Args {
		expr, aim, err := serializeRefField(a, r)
		if err != nil {
			return "", nil, err
		}
		im.Merge(aim)
		args[i] = expr
	}
	return fmt.Sprintf("schemaref.Generic{Origin: %s, Args: []schemaref.Ref{%s}}",
		origin, strings.Join(args, ", ")), im, nil
}

func serializeUnion(v any, r *Registry) (string, Imports, error) {
	u := v.(schemaref.Union)
	im := NewImports(schemarefImport)
	branches := make([]string, len(u.Branches))
	for i, b := range u.Branches {
		expr, bim, err := serializeRefField(b, r)
		if err != nil {
			return "", nil, err
		}
		im.Merge(bim)
		branches[i] = expr
	}
	return fmt.Sprintf("schemaref.Union{Branches: []schemaref.Ref{%s}}",
		strings.Join(branches, ", ")), im, nil
}

func serializeOptional(v any, r *Registry) (string, Imports, error) {
	o := v.(schemaref.Optional)
	inner, im, err := serializeRefField(o.Inner, r)
	if err != nil {
		return "", nil, err
	}
	im.Add(schemarefImport)
	return fmt.Sprintf("schemaref.Optional{Inner: %s}", inner), im, nil
}

func serializeLiteral(v any, r *Registry) (string, Imports, error) {
	l := v.(schemaref.Literal)
	im := NewImports(schemarefImport)
	values := make([]string, len(l.Values))
	for i, lv := range l.Values {
		expr, vim, err := r.Serialize(lv)
		if err != nil {
			return "", nil, err
		}
		im.Merge(vim)
		values[i] = expr
	}
	return fmt.Sprintf("schemaref.Literal{Values: []any{%s}}",
		strings.Join(values, ", ")), im, nil
}

func serializeAnnotated(v any, r *Registry) (string, Imports, error) {
	a := v.(schemaref.Annotated)
	origin, im, err := serializeRefField(a.Origin, r)
	if err != nil {
		return "", nil, err
	}
	im.Add(schemarefImport)
	meta, mim, err := serializeFieldMeta(a.Meta, r)
	if err != nil {
		return "", nil, err
	}
	im.Merge(mim)
	return fmt.Sprintf("schemaref.Annotated{Origin: %s, Meta: %s}", origin, meta), im, nil
}

// serializeFieldMeta renders constraint metadata through the Meta constructor
// so only non-default attributes travel, attribute by attribute.
func serializeFieldMeta(v any, r *Registry) (string, Imports, error) {
	m, _ := v.(*schemaref.FieldMeta)
	if m == nil {
		return "nil", Imports{}, nil
	}
	snap := m.Snapshot(nil)
	attrs, im, err := serializeAttrMap(snap.Attrs, r)
	if err != nil {
		return "", nil, err
	}
	im.Add(schemarefImport)
	return "schemaref.Meta(" + attrs + ")", im, nil
}

func serializeMetaSnapshot(v any, r *Registry) (string, Imports, error) {
	m := v.(schemaref.MetaSnapshot)
	im := NewImports(schemarefImport)
	origin := "nil"
	if m.Origin != nil {
		expr, oim, err := serializeRefField(m.Origin, r)
		if err != nil {
			return "", nil, err
		}
		im.Merge(oim)
		origin = expr
	}
	attrs, aim, err := serializeAttrMap(m.Attrs, r)
	if err != nil {
		return "", nil, err
	}
	im.Merge(aim)
	return fmt.Sprintf("schemaref.MetaSnapshot{Origin: %s, Attrs: %s}", origin, attrs), im, nil
}

func serializeAttrMap(attrs map[string]any, r *Registry) (string, Imports, error) {
	im := Imports{}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		expr, vim, err := r.Serialize(attrs[k])
		if err != nil {
			return "", nil, err
		}
		im.Merge(vim)
		parts[i] = strconv.Quote(k) + ": " + expr
	}
	return "map[string]any{" + strings.Join(parts, ", ") + "}", im, nil
}

// serializeStructSnapshot renders a frozen struct instance as a composite
// literal of its type, field by field in stable order.
func serializeStructSnapshot(v any, r *Registry) (string, Imports, error) {
	s := v.(schemaref.StructSnapshot)
	im := Imports{}
	typeExpr, err := goTypeExpr(s.Type, im)
	if err != nil {
		return "", nil, err
	}
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		fv := schemaref.Unwrap(s.Fields[k])
		if fv == nil {
			continue
		}
		if rv := reflect.ValueOf(fv); rv.IsValid() && rv.IsZero() {
			continue
		}
		expr, fim, err := r.Serialize(fv)
		if err != nil {
			return "", nil, err
		}
		im.Merge(fim)
		parts = append(parts, k+": "+expr)
	}
	return typeExpr + "{" + strings.Join(parts, ", ") + "}", im, nil
}

// serializeRepr is the representation fallback: any object exposing the
// ReprArgs protocol renders as a call to its qualified type name. The
// evaluation environment must bind a constructor under that name.
func serializeRepr(v any, r *Registry) (string, Imports, error) {
	rep, ok := v.(Representable)
	if !ok {
		return "", nil, &NotSerializableError{Value: v}
	}
	im := Imports{}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name, err := goTypeExpr(t, im)
	if err != nil {
		return "", nil, err
	}
	args := rep.ReprArgs()
	parts := make([]string, len(args))
	for i, a := range args {
		expr, aim, err := r.Serialize(a.Value)
		if err != nil {
			return "", nil, err
		}
		im.Merge(aim)
		parts[i] = expr
	}
	return name + "(" + strings.Join(parts, ", ") + ")", im, nil
}

// serializeRefField renders a Ref-typed field value, tolerating nil.
func serializeRefField(ref schemaref.Ref, r *Registry) (string, Imports, error) {
	if ref == nil {
		return "nil", Imports{}, nil
	}
	return r.Serialize(ref)
}
