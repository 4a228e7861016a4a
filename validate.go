package schemafield

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/typeadapt/schemafield/i18n"
	"github.com/typeadapt/schemafield/schemaref"
)

func base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func issueAt(path, code string, params map[string]any) Issue {
	return Issue{Path: path, Code: code, Message: i18n.T(code, nil), Params: params}
}

func typeIssue(path string, want string, got any) Issues {
	return Issues{Issue{
		Path:    path,
		Code:    CodeInvalidType,
		Message: i18n.T(CodeInvalidType, nil),
		Params:  map[string]any{"expected": want, "got": fmt.Sprintf("%T", got)},
	}}
}

func (anyValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	return v, nil
}

func (b boolValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	switch t := v.(type) {
	case bool:
		return convertScalar(t, b.rt), nil
	case string:
		if !vc.strict {
			if p, err := strconv.ParseBool(t); err == nil {
				return convertScalar(p, b.rt), nil
			}
		}
	}
	if !vc.strict {
		if rv := reflect.ValueOf(v); rv.IsValid() && rv.Kind() == reflect.Bool {
			return convertScalar(rv.Bool(), b.rt), nil
		}
	}
	return nil, typeIssue(path, "bool", v)
}

func (iv intValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	n, ok, overflow := intFromValue(v, vc.strict)
	if overflow {
		return nil, Issues{issueAt(path, CodeOverflow, map[string]any{"got": fmt.Sprintf("%v", v)})}
	}
	if !ok {
		return nil, typeIssue(path, "int", v)
	}
	out := reflect.New(iv.rt).Elem()
	switch iv.rt.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n < 0 {
			return nil, Issues{issueAt(path, CodeTooSmall, map[string]any{"min": 0, "got": n})}
		}
		out.SetUint(uint64(n))
		if out.Uint() != uint64(n) {
			return nil, Issues{issueAt(path, CodeOverflow, map[string]any{"got": n})}
		}
	default:
		out.SetInt(n)
		if out.Int() != n {
			return nil, Issues{issueAt(path, CodeOverflow, map[string]any{"got": n})}
		}
	}
	return out.Interface(), nil
}

// intFromValue extracts an int64 from the JSON and native spellings of an
// integer. Lax mode additionally accepts integral floats and numeric strings.
func intFromValue(v any, strict bool) (n int64, ok bool, overflow bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true, false
	case int8:
		return int64(t), true, false
	case int16:
		return int64(t), true, false
	case int32:
		return int64(t), true, false
	case int64:
		return t, true, false
	case uint:
		return int64(t), true, false
	case uint8:
		return int64(t), true, false
	case uint16:
		return int64(t), true, false
	case uint32:
		return int64(t), true, false
	case uint64:
		if t > math.MaxInt64 {
			return 0, false, true
		}
		return int64(t), true, false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true, false
		}
		if f, err := t.Float64(); err == nil && f == math.Trunc(f) {
			return int64(f), true, false
		}
		return 0, false, false
	case float64:
		if t == math.Trunc(t) {
			return int64(t), true, false
		}
		return 0, false, false
	case float32:
		f := float64(t)
		if f == math.Trunc(f) {
			return int64(f), true, false
		}
		return 0, false, false
	case string:
		if strict {
			return 0, false, false
		}
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return i, true, false
		}
		return 0, false, false
	default:
		if rv := reflect.ValueOf(v); rv.IsValid() {
			switch rv.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				return rv.Int(), true, false
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				u := rv.Uint()
				if u > math.MaxInt64 {
					return 0, false, true
				}
				return int64(u), true, false
			}
		}
		return 0, false, false
	}
}

func (fv floatValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	f, ok := floatFromValue(v, vc.strict)
	if !ok {
		return nil, typeIssue(path, "float", v)
	}
	if !vc.cfg.AllowNaN && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil, Issues{issueAt(path, CodeInvalidFormat, map[string]any{"got": f})}
	}
	return convertScalar(f, fv.rt), nil
}

func floatFromValue(v any, strict bool) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		if strict {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		if rv := reflect.ValueOf(v); rv.IsValid() {
			switch rv.Kind() {
			case reflect.Float32, reflect.Float64:
				return rv.Float(), true
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				return float64(rv.Int()), true
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				return float64(rv.Uint()), true
			}
		}
		return 0, false
	}
}

func (sv stringValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	switch t := v.(type) {
	case string:
		return convertScalar(t, sv.rt), nil
	case []byte:
		if !vc.strict {
			return convertScalar(string(t), sv.rt), nil
		}
	}
	if rv := reflect.ValueOf(v); rv.IsValid() && rv.Kind() == reflect.String {
		return convertScalar(rv.String(), sv.rt), nil
	}
	return nil, typeIssue(path, "string", v)
}

func (bv bytesValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	switch t := v.(type) {
	case []byte:
		return convertScalar(t, bv.rt), nil
	case string:
		// Wire form is base64, matching encoding/json's []byte convention.
		if decoded, err := base64Decode(t); err == nil {
			return convertScalar(decoded, bv.rt), nil
		}
		if !vc.strict {
			return convertScalar([]byte(t), bv.rt), nil
		}
	}
	return nil, typeIssue(path, "bytes", v)
}

func (timeValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, Issues{{Path: path, Code: CodeInvalidFormat, Message: "invalid RFC3339 time", Cause: err}}
		}
		return ts, nil
	}
	return nil, typeIssue(path, "time", v)
}

func (durationValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, Issues{{Path: path, Code: CodeInvalidFormat, Message: "invalid duration", Cause: err}}
		}
		return d, nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.Duration(n), nil
		}
	case int64:
		return time.Duration(t), nil
	case float64:
		return time.Duration(int64(t)), nil
	}
	return nil, typeIssue(path, "duration", v)
}

func (jsonNumberValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	switch t := v.(type) {
	case json.Number:
		return t, nil
	case float64:
		return json.Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case int:
		return json.Number(strconv.Itoa(t)), nil
	case string:
		if !vc.strict {
			if _, err := strconv.ParseFloat(t, 64); err == nil {
				return json.Number(t), nil
			}
		}
	}
	return nil, typeIssue(path, "number", v)
}

func (s *sliceValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	items, ok := sliceItems(v)
	if !ok {
		return nil, typeIssue(path, "array", v)
	}
	out := reflect.MakeSlice(s.rt, 0, len(items))
	var iss Issues
	for i, item := range items {
		ev, eiss := s.elem.validate(vc, childPath(path, strconv.Itoa(i)), item)
		if len(eiss) > 0 {
			iss = append(iss, eiss...)
			continue
		}
		out = reflect.Append(out, coerceTo(ev, s.rt.Elem()))
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out.Interface(), nil
}

func sliceItems(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type() == schemaref.BytesType {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func (m *mapValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	entries, ok := mapEntries(v)
	if !ok {
		return nil, typeIssue(path, "object", v)
	}
	out := reflect.MakeMapWithSize(m.rt, len(entries))
	var iss Issues
	for k, item := range entries {
		ev, eiss := m.elem.validate(vc, childPath(path, k), item)
		if len(eiss) > 0 {
			iss = append(iss, eiss...)
			continue
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(m.rt.Key()), coerceTo(ev, m.rt.Elem()))
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out.Interface(), nil
}

func mapEntries(v any) (map[string]any, bool) {
	if entries, ok := v.(map[string]any); ok {
		return entries, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	entries := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries[iter.Key().String()] = iter.Value().Interface()
	}
	return entries, true
}

func (p *ptrValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	if v == nil {
		return reflect.Zero(p.rt).Interface(), nil
	}
	ev, iss := p.elem.validate(vc, path, deref(v))
	if len(iss) > 0 {
		return nil, iss
	}
	out := reflect.New(p.rt.Elem())
	out.Elem().Set(coerceTo(ev, p.rt.Elem()))
	return out.Interface(), nil
}

func (s *structValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	v = deref(v)
	if v != nil && reflect.TypeOf(v) == s.rt {
		// Already the typed value; run field rule checks without rebuilding.
		return v, s.checkTyped(vc, path, reflect.ValueOf(v))
	}
	entries, ok := mapEntries(v)
	if !ok {
		if vc.fromAttributes {
			if attrs, aok := attributesOf(v); aok {
				entries, ok = attrs, true
			}
		}
		if !ok {
			return nil, typeIssue(path, schemaref.TypeName(s.rt), v)
		}
	}
	out := reflect.New(s.rt).Elem()
	seen := map[string]struct{}{}
	var iss Issues
	for _, f := range s.fields {
		raw, found := entries[f.alias]
		if !found {
			raw, found = entries[f.name]
			if found {
				seen[f.name] = struct{}{}
			}
		} else {
			seen[f.alias] = struct{}{}
		}
		if !found {
			if def, has := f.v.defaultValue(); has {
				out.Field(f.index).Set(coerceTo(def, out.Field(f.index).Type()))
				continue
			}
			if f.required {
				iss = append(iss, issueAt(childPath(path, f.alias), CodeRequired, map[string]any{"key": f.alias}))
			}
			continue
		}
		if raw == nil {
			// Null assigns the zero value for fields that can hold it;
			// anywhere else an explicit null is a type error.
			ft := out.Field(f.index).Type()
			if _, opt := f.v.(*optionalValidator); !opt && !nillableKind(ft) {
				iss = append(iss, typeIssue(childPath(path, f.alias), schemaref.TypeName(ft), nil)...)
			}
			continue
		}
		fv, fiss := f.v.validate(vc, childPath(path, f.alias), raw)
		if len(fiss) > 0 {
			iss = append(iss, fiss...)
			continue
		}
		out.Field(f.index).Set(coerceTo(fv, out.Field(f.index).Type()))
	}
	if vc.cfg.UnknownKeys == UnknownStrict {
		for k := range entries {
			if _, ok := seen[k]; !ok && !s.knownKey(k) {
				iss = append(iss, issueAt(childPath(path, k), CodeUnknownKey, map[string]any{"key": k}))
			}
		}
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return out.Interface(), nil
}

func (s *structValidator) knownKey(k string) bool {
	for _, f := range s.fields {
		if f.alias == k || f.name == k {
			return true
		}
	}
	return false
}

// checkTyped re-validates the fields of an already typed struct value so
// that constraint annotations still apply.
func (s *structValidator) checkTyped(vc *valctx, path string, rv reflect.Value) Issues {
	var iss Issues
	for _, f := range s.fields {
		fv := rv.Field(f.index)
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}
		if _, fiss := f.v.validate(vc, childPath(path, f.alias), fv.Interface()); len(fiss) > 0 {
			iss = append(iss, fiss...)
		}
	}
	return iss
}

// attributesOf projects an arbitrary struct value into a name->value map so
// that validation can populate a schema type from a foreign object.
func attributesOf(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, false
	}
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		out[schemaref.StructKey(sf)] = rv.Field(i).Interface()
		out[sf.Name] = rv.Field(i).Interface()
	}
	return out, true
}

func (o *optionalValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	if isNil(v) {
		return nil, nil
	}
	return o.inner.validate(vc, path, v)
}

func (u *unionValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	var first Issues
	for _, b := range u.branches {
		out, iss := b.validate(vc, path, v)
		if len(iss) == 0 {
			return out, nil
		}
		if first == nil {
			first = iss
		}
	}
	iss := Issues{issueAt(path, CodeUnionNoMatch, map[string]any{"branches": len(u.branches)})}
	return nil, append(iss, first...)
}

func (l *literalValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	for _, allowed := range l.values {
		if literalMatches(allowed, v) {
			return normalizeLiteral(v), nil
		}
	}
	return nil, Issues{issueAt(path, CodeInvalidEnum, map[string]any{"got": fmt.Sprintf("%v", v)})}
}

func literalMatches(allowed, v any) bool {
	if s, ok := allowed.(string); ok {
		vs, ok := v.(string)
		return ok && s == vs
	}
	if b, ok := allowed.(bool); ok {
		vb, ok := v.(bool)
		return ok && b == vb
	}
	af, aok := numericValue(allowed)
	vf, vok := numericValue(v)
	return aok && vok && af == vf
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func normalizeLiteral(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	if i, ok := v.(int); ok {
		return int64(i)
	}
	return v
}

func (a *annotatedValidator) validate(vc *valctx, path string, v any) (any, Issues) {
	if isNil(v) {
		if a.meta != nil && a.meta.HasDefault {
			return a.inner.validate(vc, path, a.meta.Default)
		}
	}
	out, iss := a.inner.validate(vc, path, v)
	if len(iss) > 0 {
		return nil, iss
	}
	return out, a.check(path, out)
}

func (a *annotatedValidator) check(path string, v any) Issues {
	if a.meta == nil {
		return nil
	}
	var iss Issues
	if f, ok := numericValue(v); ok {
		if a.meta.Ge != nil && f < *a.meta.Ge {
			iss = append(iss, issueAt(path, CodeTooSmall, map[string]any{"min": *a.meta.Ge, "got": f}))
		}
		if a.meta.Le != nil && f > *a.meta.Le {
			iss = append(iss, issueAt(path, CodeTooBig, map[string]any{"max": *a.meta.Le, "got": f}))
		}
	}
	if n, ok := lengthOf(v); ok {
		if a.meta.MinLen != nil && n < *a.meta.MinLen {
			iss = append(iss, issueAt(path, CodeTooShort, map[string]any{"min": *a.meta.MinLen, "got": n}))
		}
		if a.meta.MaxLen != nil && n > *a.meta.MaxLen {
			iss = append(iss, issueAt(path, CodeTooLong, map[string]any{"max": *a.meta.MaxLen, "got": n}))
		}
	}
	if a.pattern != nil {
		if s, ok := v.(string); ok && !a.pattern.MatchString(s) {
			iss = append(iss, issueAt(path, CodePattern, map[string]any{"pattern": a.meta.Pattern}))
		}
	}
	return iss
}

func lengthOf(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len(t), true
	case []byte:
		return len(t), true
	}
	rv := reflect.ValueOf(v)
	if rv.IsValid() {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return rv.Len(), true
		}
	}
	return 0, false
}

// ---- shared reflection helpers ----

func convertScalar[T any](v T, rt reflect.Type) any {
	rv := reflect.ValueOf(v)
	if rt == nil || rv.Type() == rt {
		return v
	}
	return rv.Convert(rt).Interface()
}

func coerceTo(v any, rt reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(rt)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == rt {
		return rv
	}
	if rv.Type().AssignableTo(rt) {
		return rv
	}
	if rv.Type().ConvertibleTo(rt) {
		return rv.Convert(rt)
	}
	return reflect.Zero(rt)
}

// nillableKind reports whether the type has a nil representation of its own.
func nillableKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func childPath(path, segment string) string {
	if path == "/" {
		return "/" + segment
	}
	return path + "/" + segment
}
