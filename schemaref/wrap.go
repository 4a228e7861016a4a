package schemaref

import (
	"reflect"
)

// TypeFor returns the reflect.Type for T. Generated artifacts spell concrete
// named types through this so the expression stays evaluable.
func TypeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Wrap converts a value into its data-only reference encoding:
//
//   - parameterized reflect types (slice/map/pointer) become Generic with
//     recursively wrapped arguments;
//   - plain struct values become StructSnapshot holding the class and its
//     exported field values (recursively wrapped);
//   - *FieldMeta becomes MetaSnapshot keeping non-default attributes only;
//   - Refs and everything else pass through unchanged.
func Wrap(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Ref:
		return t
	case *FieldMeta:
		return t.Snapshot(nil)
	case reflect.Type:
		return wrapType(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Struct && isSnapshotable(rv.Type()) {
		return snapshotStruct(rv)
	}
	return v
}

func wrapType(t reflect.Type) Ref {
	switch t.Kind() {
	case reflect.Slice:
		if t == BytesType {
			return Concrete{Type: t}
		}
		return Generic{Origin: OriginSlice, Args: []Ref{wrapType(t.Elem())}}
	case reflect.Map:
		return Generic{Origin: OriginMap, Args: []Ref{wrapType(t.Key()), wrapType(t.Elem())}}
	case reflect.Pointer:
		return Generic{Origin: OriginPtr, Args: []Ref{wrapType(t.Elem())}}
	default:
		return Concrete{Type: t}
	}
}

// isSnapshotable reports whether struct values of t are treated as frozen
// metadata snapshots. Types with unexported fields (time.Time and friends)
// cannot be reconstructed field-by-field and stay opaque.
func isSnapshotable(t reflect.Type) bool {
	if t == TimeType || t.PkgPath() == "reflect" {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			return false
		}
	}
	return true
}

func snapshotStruct(rv reflect.Value) StructSnapshot {
	t := rv.Type()
	fields := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		fields[t.Field(i).Name] = Wrap(rv.Field(i).Interface())
	}
	return StructSnapshot{Type: t, Fields: fields}
}

// Unwrap is the inverse of Wrap. Generic references with builtin origins and
// reflect-representable arguments reconstruct the concrete parameterized
// type through reflection; references that have no reflect form (unions,
// literals, annotated refs, zero-argument generics over non-builtin origins)
// normalize their components and remain Refs. Snapshots reconstruct the
// original instance. Non-container inputs pass through unchanged.
func Unwrap(v any) any {
	switch t := v.(type) {
	case Concrete:
		return t.Type
	case Generic:
		return unwrapGeneric(t)
	case Optional:
		return Optional{Inner: normalize(t.Inner)}
	case Union:
		return Union{Branches: normalizeAll(t.Branches)}
	case Annotated:
		return Annotated{Origin: normalize(t.Origin), Meta: t.Meta}
	case StructSnapshot:
		return restoreStruct(t)
	case MetaSnapshot:
		return t.Restore()
	default:
		return v
	}
}

func unwrapGeneric(g Generic) any {
	if len(g.Args) == 0 {
		return Unwrap(g.Origin)
	}
	args := make([]any, len(g.Args))
	types := make([]reflect.Type, len(g.Args))
	allTypes := true
	for i, a := range g.Args {
		args[i] = Unwrap(a)
		if t, ok := args[i].(reflect.Type); ok {
			types[i] = t
		} else {
			allTypes = false
		}
	}
	if origin, ok := g.Origin.(Origin); ok && allTypes {
		switch {
		case origin == OriginSlice && len(types) == 1:
			return reflect.SliceOf(types[0])
		case origin == OriginMap && len(types) == 2:
			return reflect.MapOf(types[0], types[1])
		case origin == OriginPtr && len(types) == 1:
			return reflect.PointerTo(types[0])
		}
	}
	// No native construction available: keep the container shape with
	// normalized components.
	norm := make([]Ref, len(args))
	for i, a := range args {
		norm[i] = asRef(a)
	}
	return Generic{Origin: asRef(Unwrap(g.Origin)), Args: norm}
}

func restoreStruct(s StructSnapshot) any {
	out := reflect.New(s.Type).Elem()
	for name, v := range s.Fields {
		fv := out.FieldByName(name)
		if !fv.IsValid() || !fv.CanSet() {
			continue
		}
		uv := Unwrap(v)
		if uv == nil {
			continue
		}
		rv := reflect.ValueOf(uv)
		if rv.Type().AssignableTo(fv.Type()) {
			fv.Set(rv)
		} else if rv.Type().ConvertibleTo(fv.Type()) {
			fv.Set(rv.Convert(fv.Type()))
		}
	}
	return out.Interface()
}

// normalize unwraps a Ref and re-wraps the result, collapsing e.g.
// Generic(slice, [Concrete int]) into Concrete []int where possible.
func normalize(r Ref) Ref {
	return asRef(Unwrap(r))
}

func normalizeAll(rs []Ref) []Ref {
	out := make([]Ref, len(rs))
	for i, r := range rs {
		out[i] = normalize(r)
	}
	return out
}

// asRef coerces an Unwrap result back into Ref form.
func asRef(v any) Ref {
	switch t := v.(type) {
	case nil:
		return nil
	case Ref:
		return t
	case reflect.Type:
		return Concrete{Type: t}
	case *FieldMeta:
		return t.Snapshot(nil)
	default:
		w := Wrap(v)
		if r, ok := w.(Ref); ok {
			return r
		}
		return Concrete{Type: reflect.TypeOf(v)}
	}
}

// Equal compares two reference encodings structurally. Either side may be a
// live type or plain value; it is wrapped before comparison, so a Generic
// container compares equal to the parameterized type it encodes.
func Equal(a, b any) bool {
	return refEqual(Wrap(a), Wrap(b))
}

func refEqual(a, b any) bool {
	switch at := a.(type) {
	case nil:
		return b == nil
	case Concrete:
		bt, ok := b.(Concrete)
		if !ok {
			// A concrete parameterized type equals the container encoding it.
			if _, isGeneric := b.(Generic); isGeneric {
				return refEqual(wrapType(at.Type), b)
			}
			return false
		}
		return at.Type == bt.Type
	case Named:
		bt, ok := b.(Named)
		return ok && at.Expr == bt.Expr
	case Origin:
		bt, ok := b.(Origin)
		return ok && at == bt
	case Generic:
		if c, ok := b.(Concrete); ok {
			return refEqual(a, wrapType(c.Type))
		}
		bt, ok := b.(Generic)
		if !ok || !refEqual(at.Origin, bt.Origin) || len(at.Args) != len(bt.Args) {
			return false
		}
		for i := range at.Args {
			if !refEqual(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	case Union:
		bt, ok := b.(Union)
		if !ok || len(at.Branches) != len(bt.Branches) {
			return false
		}
		for i := range at.Branches {
			if !refEqual(at.Branches[i], bt.Branches[i]) {
				return false
			}
		}
		return true
	case Optional:
		bt, ok := b.(Optional)
		return ok && refEqual(at.Inner, bt.Inner)
	case Literal:
		bt, ok := b.(Literal)
		if !ok || len(at.Values) != len(bt.Values) {
			return false
		}
		for i := range at.Values {
			if !looseEqual(at.Values[i], bt.Values[i]) {
				return false
			}
		}
		return true
	case Annotated:
		bt, ok := b.(Annotated)
		return ok && refEqual(at.Origin, bt.Origin) && at.Meta.Equal(bt.Meta)
	case StructSnapshot:
		if rb := reflect.ValueOf(b); b != nil && rb.Kind() == reflect.Struct {
			if _, isRef := b.(Ref); !isRef {
				return refEqual(a, Wrap(b))
			}
		}
		bt, ok := b.(StructSnapshot)
		if !ok || at.Type != bt.Type || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for k, v := range at.Fields {
			if !refEqual(Wrap(v), Wrap(bt.Fields[k])) {
				return false
			}
		}
		return true
	case MetaSnapshot:
		if fm, ok := b.(*FieldMeta); ok {
			return refEqual(a, fm.Snapshot(nil))
		}
		bt, ok := b.(MetaSnapshot)
		if !ok || !refEqual(at.Origin, bt.Origin) || len(at.Attrs) != len(bt.Attrs) {
			return false
		}
		for k, v := range at.Attrs {
			if !refEqual(Wrap(v), Wrap(bt.Attrs[k])) {
				return false
			}
		}
		return true
	default:
		return looseEqual(a, b)
	}
}

// looseEqual compares scalar values, tolerating int/int64/float64 mixes that
// arise from literal parsing and JSON decoding.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
