// Package schemaref provides a value-level encoding of schema type
// references: concrete Go types, deferred name expressions, parameterized
// containers, unions, literals, and metadata-bearing annotated types.
//
// A Ref is plain data. It can be built from a live type with Wrap, turned
// back into one with Unwrap, rendered as a canonical type expression with
// String, and re-parsed with ParseExpr. This makes schema declarations
// serializable into generated artifacts and comparable in tests without
// touching the validation machinery.
package schemaref

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Ref is the closed set of schema reference variants. Implementations are
// plain data; resolution and validation live elsewhere.
type Ref interface {
	// String renders the canonical type expression for the reference,
	// parseable back via ParseExpr for every variant.
	String() string

	isRef()
}

// Origin identifies a builtin parameterized-container origin.
type Origin int

const (
	OriginInvalid Origin = iota

	OriginSlice
	OriginMap
	OriginPtr
)

func (Origin) isRef() {}

// Concrete wraps a live reflect.Type. This is the fully resolved leaf form.
type Concrete struct {
	Type reflect.Type
}

func (Concrete) isRef() {}

// Named is an unresolved forward reference: a type expression that has not
// been evaluated against a namespace yet. Expr may be a bare or qualified
// name ("Comment", "blog.Comment") or a full expression ("list[Comment]").
type Named struct {
	Expr string
}

func (Named) isRef() {}

// Generic encodes a parameterized type as origin plus arguments. Origin is
// usually one of the builtin Origin values; it may itself be any Ref so that
// forward references inside either position resolve independently.
type Generic struct {
	Origin Ref
	Args   []Ref
}

func (Generic) isRef() {}

// Union encodes the "X | Y" alternative spelling.
type Union struct {
	Branches []Ref
}

func (Union) isRef() {}

// Optional marks the inner reference as nullable. Validation accepts null in
// addition to whatever the inner reference accepts.
type Optional struct {
	Inner Ref
}

func (Optional) isRef() {}

// Literal restricts a value to an enumerated set of scalars. Values hold
// strings, int64s, float64s or bools.
type Literal struct {
	Values []any
}

func (Literal) isRef() {}

// Annotated attaches constraint metadata to an origin reference. The
// metadata is of arbitrary shape, not a type, which is why it needs its own
// variant instead of riding on Generic.
type Annotated struct {
	Origin Ref
	Meta   *FieldMeta
}

func (Annotated) isRef() {}

// StructSnapshot is a frozen encoding of a plain struct value used as
// annotation metadata. Fields map exported field names to wrapped values.
type StructSnapshot struct {
	Type   reflect.Type
	Fields map[string]any
}

func (StructSnapshot) isRef() {}

// MetaSnapshot is a frozen encoding of a FieldMeta object keeping only the
// attributes that differ from their defaults.
type MetaSnapshot struct {
	Origin Ref
	Attrs  map[string]any
}

func (MetaSnapshot) isRef() {}

func (o Origin) String() string {
	switch o {
	case OriginSlice:
		return "list"
	case OriginMap:
		return "map"
	case OriginPtr:
		return "ptr"
	default:
		return "Origin(" + strconv.Itoa(int(o)) + ")"
	}
}

func (c Concrete) String() string { return TypeName(c.Type) }

func (n Named) String() string { return n.Expr }

func (g Generic) String() string {
	if len(g.Args) == 0 {
		return refString(g.Origin)
	}
	parts := make([]string, len(g.Args))
	for i, a := range g.Args {
		parts[i] = refString(a)
	}
	return refString(g.Origin) + "[" + strings.Join(parts, ", ") + "]"
}

func (u Union) String() string {
	parts := make([]string, len(u.Branches))
	for i, b := range u.Branches {
		parts[i] = refString(b)
	}
	return strings.Join(parts, " | ")
}

func (o Optional) String() string { return "Optional[" + refString(o.Inner) + "]" }

func (l Literal) String() string {
	parts := make([]string, len(l.Values))
	for i, v := range l.Values {
		parts[i] = literalString(v)
	}
	return "Literal[" + strings.Join(parts, ", ") + "]"
}

func (a Annotated) String() string {
	if a.Meta == nil {
		return refString(a.Origin)
	}
	return "Annotated[" + refString(a.Origin) + ", " + a.Meta.String() + "]"
}

func (s StructSnapshot) String() string {
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + literalString(s.Fields[k])
	}
	return TypeName(s.Type) + "(" + strings.Join(parts, ", ") + ")"
}

func (m MetaSnapshot) String() string {
	keys := make([]string, 0, len(m.Attrs))
	for k := range m.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + literalString(m.Attrs[k])
	}
	origin := "any"
	if m.Origin != nil {
		origin = refString(m.Origin)
	}
	return "Annotated[" + origin + ", Meta(" + strings.Join(parts, ", ") + ")]"
}

func refString(r Ref) string {
	if r == nil {
		return "any"
	}
	// Parenthesize nested unions so the rendered expression re-parses with
	// the same shape.
	if u, ok := r.(Union); ok {
		return "(" + u.String() + ")"
	}
	return r.String()
}

func literalString(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case Ref:
		return refString(t)
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Builtin primitive reflect types used by both TypeName and the expression
// parser. Integers normalize to int64 and floats to float64 so that values
// decoded from JSON compare cleanly.
var (
	IntType      = reflect.TypeOf(int64(0))
	FloatType    = reflect.TypeOf(float64(0))
	StringType   = reflect.TypeOf("")
	BoolType     = reflect.TypeOf(false)
	BytesType    = reflect.TypeOf([]byte(nil))
	TimeType     = reflect.TypeOf(time.Time{})
	DurationType = reflect.TypeOf(time.Duration(0))
	AnyType      = reflect.TypeOf((*any)(nil)).Elem()
)

// TypeName renders a reflect.Type as it appears in type expressions:
// primitives by their builtin names, named types as "pkg.Name", and
// unnamed composites through the container syntax.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "any"
	}
	switch t {
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case StringType:
		return "string"
	case BoolType:
		return "bool"
	case BytesType:
		return "bytes"
	case TimeType:
		return "time"
	case DurationType:
		return "duration"
	case AnyType:
		return "any"
	}
	if t.Name() != "" {
		if pkg := t.PkgPath(); pkg != "" {
			short := pkg
			if i := strings.LastIndexByte(pkg, '/'); i >= 0 {
				short = pkg[i+1:]
			}
			return short + "." + t.Name()
		}
		return t.Name()
	}
	switch t.Kind() {
	case reflect.Slice:
		return "list[" + TypeName(t.Elem()) + "]"
	case reflect.Map:
		return "map[" + TypeName(t.Key()) + ", " + TypeName(t.Elem()) + "]"
	case reflect.Pointer:
		return "ptr[" + TypeName(t.Elem()) + "]"
	default:
		return t.String()
	}
}
