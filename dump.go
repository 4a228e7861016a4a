package schemafield

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/typeadapt/schemafield/schemaref"
)

func notSerializable(path string, v any) Issues {
	return Issues{Issue{
		Path:    path,
		Code:    CodeNotSerializable,
		Message: "value is not serializable",
		Params:  map[string]any{"got": fmt.Sprintf("%T", v)},
	}}
}

// fallbackRepr stringifies a value that has no serializer when warnings are
// enabled, instead of failing the whole dump.
func fallbackRepr(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

func (anyValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	return dumpLoose(dc, path, v)
}

// dumpLoose serializes an untyped value by shape.
func dumpLoose(dc *dumpctx, path string, v any) (any, Issues) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case bool, string, int64, float64, int, json.Number:
		return t, nil
	case time.Time:
		if dc.mode == ModePython {
			return t, nil
		}
		return t.Format(time.RFC3339Nano), nil
	case time.Duration:
		if dc.mode == ModePython {
			return t, nil
		}
		return t.String(), nil
	case []byte:
		if dc.mode == ModePython {
			return t, nil
		}
		return base64.StdEncoding.EncodeToString(t), nil
	case []any:
		out := make([]any, 0, len(t))
		var iss Issues
		for i, item := range t {
			dv, diss := dumpLoose(dc, childPath(path, fmt.Sprint(i)), item)
			if len(diss) > 0 {
				iss = append(iss, diss...)
				continue
			}
			out = append(out, dv)
		}
		if len(iss) > 0 {
			return nil, iss
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		var iss Issues
		for k, item := range t {
			dv, diss := dumpLoose(dc, childPath(path, k), item)
			if len(diss) > 0 {
				iss = append(iss, diss...)
				continue
			}
			out[k] = dv
		}
		if len(iss) > 0 {
			return nil, iss
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return dumpLoose(dc, path, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items, _ := sliceItems(v)
		return dumpLoose(dc, path, items)
	case reflect.Map:
		if entries, ok := mapEntries(v); ok {
			return dumpLoose(dc, path, entries)
		}
	case reflect.Struct:
		if attrs, ok := attributesOf(v); ok {
			// attributesOf doubles keys (name and wire key); keep wire keys only.
			out := make(map[string]any, len(attrs))
			t := rv.Type()
			var iss Issues
			for i := 0; i < t.NumField(); i++ {
				sf := t.Field(i)
				if !sf.IsExported() {
					continue
				}
				key := schemaref.StructKey(sf)
				if key == "-" {
					continue
				}
				dv, diss := dumpLoose(dc, childPath(path, key), rv.Field(i).Interface())
				if len(diss) > 0 {
					iss = append(iss, diss...)
					continue
				}
				out[key] = dv
			}
			if len(iss) > 0 {
				return nil, iss
			}
			return out, nil
		}
	}
	if dc.warnings {
		return fallbackRepr(v), nil
	}
	return nil, notSerializable(path, v)
}

func (b boolValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Bool {
		return dumpMismatch(dc, path, v, "bool")
	}
	return rv.Bool(), nil
}

func (iv intValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	n, ok, _ := intFromValue(v, true)
	if !ok {
		return dumpMismatch(dc, path, v, "int")
	}
	return n, nil
}

func (fv floatValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	f, ok := floatFromValue(v, true)
	if !ok {
		return dumpMismatch(dc, path, v, "float")
	}
	return f, nil
}

func (sv stringValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.String {
		return dumpMismatch(dc, path, v, "string")
	}
	return rv.String(), nil
}

func (bv bytesValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	b, ok := v.([]byte)
	if !ok {
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			b = rv.Bytes()
			ok = true
		}
	}
	if !ok {
		return dumpMismatch(dc, path, v, "bytes")
	}
	if dc.mode == ModePython {
		return b, nil
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (timeValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	t, ok := v.(time.Time)
	if !ok {
		return dumpMismatch(dc, path, v, "time")
	}
	if dc.mode == ModePython {
		return t, nil
	}
	return t.Format(time.RFC3339Nano), nil
}

func (durationValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	d, ok := v.(time.Duration)
	if !ok {
		return dumpMismatch(dc, path, v, "duration")
	}
	if dc.mode == ModePython {
		return d, nil
	}
	return d.String(), nil
}

func (jsonNumberValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	n, ok := v.(json.Number)
	if !ok {
		return dumpMismatch(dc, path, v, "number")
	}
	if dc.mode == ModePython {
		return n, nil
	}
	// JSON mode re-emits the literal untouched; json.Number marshals raw.
	return n, nil
}

func (s *sliceValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	items, ok := sliceItems(v)
	if !ok {
		if isNil(v) {
			return []any{}, nil
		}
		return dumpMismatch(dc, path, v, "array")
	}
	out := make([]any, 0, len(items))
	var iss Issues
	for i, item := range items {
		dv, diss := s.elem.dump(dc, childPath(path, fmt.Sprint(i)), item)
		if len(diss) > 0 {
			iss = append(iss, diss...)
			continue
		}
		out = append(out, dv)
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

func (m *mapValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	include, exclude := dc.takeFilters()
	entries, ok := mapEntries(v)
	if !ok {
		if isNil(v) {
			return map[string]any{}, nil
		}
		return dumpMismatch(dc, path, v, "object")
	}
	out := make(map[string]any, len(entries))
	var iss Issues
	for k, item := range entries {
		if include != nil {
			if _, keep := include[k]; !keep {
				continue
			}
		}
		if _, drop := exclude[k]; drop {
			continue
		}
		dv, diss := m.elem.dump(dc, childPath(path, k), item)
		if len(diss) > 0 {
			iss = append(iss, diss...)
			continue
		}
		out[k] = dv
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

func (p *ptrValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	if isNil(v) {
		return nil, nil
	}
	return p.elem.dump(dc, path, deref(v))
}

func (s *structValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	include, exclude := dc.takeFilters()
	v = deref(v)
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() != s.rt {
		// Dumping an untyped object dict is allowed for round-tripped data.
		if entries, ok := mapEntries(v); ok {
			return s.dumpEntries(dc, path, entries, include, exclude)
		}
		return dumpMismatch(dc, path, v, schemaref.TypeName(s.rt))
	}
	out := make(map[string]any, len(s.fields))
	var iss Issues
	for _, f := range s.fields {
		key := f.name
		if dc.byAlias {
			key = f.alias
		}
		if !fieldSelected(f, include, exclude) {
			continue
		}
		fv := rv.Field(f.index)
		if dc.excludeUnset && fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}
		if dc.excludeNone && fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}
		if dc.excludeDefaults {
			if def, has := f.v.defaultValue(); has && looseValueEqual(fv.Interface(), def) {
				continue
			}
			if fv.IsZero() && !f.required {
				continue
			}
		}
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			out[key] = nil
			continue
		}
		dv, diss := f.v.dump(dc, childPath(path, key), fv.Interface())
		if len(diss) > 0 {
			iss = append(iss, diss...)
			continue
		}
		out[key] = dv
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

func (s *structValidator) dumpEntries(dc *dumpctx, path string, entries map[string]any, include, exclude map[string]struct{}) (any, Issues) {
	out := make(map[string]any, len(s.fields))
	var iss Issues
	for _, f := range s.fields {
		if !fieldSelected(f, include, exclude) {
			continue
		}
		raw, found := entries[f.alias]
		if !found {
			raw, found = entries[f.name]
		}
		if !found {
			if dc.excludeUnset {
				continue
			}
			raw = nil
		}
		key := f.name
		if dc.byAlias {
			key = f.alias
		}
		if raw == nil {
			if dc.excludeNone {
				continue
			}
			out[key] = nil
			continue
		}
		dv, diss := f.v.dump(dc, childPath(path, key), raw)
		if len(diss) > 0 {
			iss = append(iss, diss...)
			continue
		}
		out[key] = dv
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

// fieldSelected applies top-level include/exclude sets; both the wire alias
// and the Go name select a field.
func fieldSelected(f structField, include, exclude map[string]struct{}) bool {
	if include != nil {
		_, byAlias := include[f.alias]
		_, byName := include[f.name]
		if !byAlias && !byName {
			return false
		}
	}
	if _, drop := exclude[f.alias]; drop {
		return false
	}
	if _, drop := exclude[f.name]; drop {
		return false
	}
	return true
}

func (o *optionalValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	if isNil(v) {
		return nil, nil
	}
	return o.inner.dump(dc, path, v)
}

func (u *unionValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	var first Issues
	for _, b := range u.branches {
		out, iss := b.dump(dc, path, v)
		if len(iss) == 0 {
			return out, nil
		}
		if first == nil {
			first = iss
		}
	}
	if dc.warnings {
		return fallbackRepr(v), nil
	}
	return nil, first
}

func (l *literalValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	return dumpLoose(dc, path, normalizeLiteral(v))
}

func (a *annotatedValidator) dump(dc *dumpctx, path string, v any) (any, Issues) {
	out, iss := a.inner.dump(dc, path, v)
	if len(iss) > 0 {
		return nil, iss
	}
	if dc.roundTrip {
		// Round-trip asks for output that re-validates; constraints must hold.
		if ciss := a.check(path, v); len(ciss) > 0 {
			return nil, ciss
		}
	}
	return out, nil
}

// dumpMismatch reports a value whose runtime shape does not fit the node.
// With warnings enabled the value is stringified instead.
func dumpMismatch(dc *dumpctx, path string, v any, want string) (any, Issues) {
	if dc.warnings {
		return fallbackRepr(v), nil
	}
	iss := notSerializable(path, v)
	iss[0].Params["expected"] = want
	return nil, iss
}

// looseValueEqual compares a field value to a schema default across the
// int/int64/float64 spellings that defaults travel in.
func looseValueEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	af, aok := numericValue(a)
	bf, bok := numericValue(b)
	return aok && bok && af == bf
}
