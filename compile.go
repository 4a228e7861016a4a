package schemafield

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/typeadapt/schemafield/schemaref"
)

// validator is the compiled form of a resolved schema reference. Nodes are
// immutable after compilation and safe for concurrent use.
type validator interface {
	// validate coerces and checks v, returning the typed value.
	validate(vc *valctx, path string, v any) (any, Issues)
	// dump serializes a typed value according to the dump context.
	dump(dc *dumpctx, path string, v any) (any, Issues)
	// jsonSchema projects the node into a JSON Schema fragment.
	jsonSchema(byAlias bool) *jsSchema
	// defaultValue reports the schema-declared default, when one exists.
	defaultValue() (any, bool)
}

// valctx carries per-call validation options.
type valctx struct {
	strict         bool
	fromAttributes bool
	cfg            Config
}

// dumpctx carries per-call dump options. include/exclude apply to the
// top-level object only and are consumed by the first struct or map node.
type dumpctx struct {
	mode            DumpMode
	byAlias         bool
	excludeUnset    bool
	excludeDefaults bool
	excludeNone     bool
	roundTrip       bool
	warnings        bool
	include         map[string]struct{}
	exclude         map[string]struct{}
}

// takeFilters consumes the top-level include/exclude sets.
func (dc *dumpctx) takeFilters() (map[string]struct{}, map[string]struct{}) {
	inc, exc := dc.include, dc.exclude
	dc.include, dc.exclude = nil, nil
	return inc, exc
}

var jsonNumberType = reflect.TypeOf(json.Number(""))

// compiler builds validator trees from resolved references, memoizing struct
// nodes so that recursive types terminate.
type compiler struct {
	cfg     Config
	structs map[reflect.Type]*structValidator
}

// compile builds a validator for a fully resolved reference. Deferred names
// and snapshot variants must not reach this point.
func compile(prepared any, cfg Config) (validator, error) {
	c := &compiler{cfg: cfg, structs: map[reflect.Type]*structValidator{}}
	return c.compileAny(prepared)
}

func (c *compiler) compileAny(v any) (validator, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("schemafield: cannot compile a nil schema")
	case reflect.Type:
		return c.compileType(t)
	case schemaref.Concrete:
		return c.compileType(t.Type)
	case schemaref.Optional:
		inner, err := c.compileRef(t.Inner)
		if err != nil {
			return nil, err
		}
		return &optionalValidator{inner: inner}, nil
	case schemaref.Union:
		branches := make([]validator, len(t.Branches))
		for i, b := range t.Branches {
			bv, err := c.compileRef(b)
			if err != nil {
				return nil, err
			}
			branches[i] = bv
		}
		return &unionValidator{branches: branches}, nil
	case schemaref.Literal:
		return &literalValidator{values: t.Values}, nil
	case schemaref.Annotated:
		inner, err := c.compileRef(t.Origin)
		if err != nil {
			return nil, err
		}
		return c.compileAnnotated(inner, t.Meta)
	case schemaref.Generic:
		return c.compileGeneric(t)
	case schemaref.Named:
		return nil, fmt.Errorf("schemafield: unresolved reference %q reached compilation", t.Expr)
	case schemaref.Ref:
		return nil, fmt.Errorf("schemafield: cannot compile reference %s", t)
	default:
		return nil, fmt.Errorf("schemafield: cannot compile schema of type %T", v)
	}
}

func (c *compiler) compileRef(r schemaref.Ref) (validator, error) {
	return c.compileAny(schemaref.Unwrap(r))
}

func (c *compiler) compileAnnotated(inner validator, meta *schemaref.FieldMeta) (validator, error) {
	av := &annotatedValidator{inner: inner, meta: meta}
	if meta != nil && meta.Pattern != "" {
		re, err := regexp.Compile(meta.Pattern)
		if err != nil {
			return nil, fmt.Errorf("schemafield: invalid constraint pattern %q: %w", meta.Pattern, err)
		}
		av.pattern = re
	}
	return av, nil
}

// compileGeneric handles container references whose arguments did not
// collapse into a single reflect type (e.g. list[Optional[int]]). The
// container validates against the generic Go container type.
func (c *compiler) compileGeneric(g schemaref.Generic) (validator, error) {
	origin, ok := g.Origin.(schemaref.Origin)
	if !ok {
		return nil, fmt.Errorf("schemafield: cannot compile parameterized reference %s", g)
	}
	switch {
	case origin == schemaref.OriginSlice && len(g.Args) <= 1:
		elem := validator(anyValidator{})
		if len(g.Args) == 1 {
			ev, err := c.compileRef(g.Args[0])
			if err != nil {
				return nil, err
			}
			elem = ev
		}
		return &sliceValidator{rt: reflect.TypeOf([]any(nil)), elem: elem}, nil
	case origin == schemaref.OriginMap && len(g.Args) == 2:
		ev, err := c.compileRef(g.Args[1])
		if err != nil {
			return nil, err
		}
		return &mapValidator{rt: reflect.TypeOf(map[string]any(nil)), elem: ev}, nil
	case origin == schemaref.OriginMap && len(g.Args) == 0:
		return &mapValidator{rt: reflect.TypeOf(map[string]any(nil)), elem: anyValidator{}}, nil
	case origin == schemaref.OriginPtr && len(g.Args) == 1:
		ev, err := c.compileRef(g.Args[0])
		if err != nil {
			return nil, err
		}
		return &optionalValidator{inner: ev}, nil
	}
	return nil, fmt.Errorf("schemafield: cannot compile parameterized reference %s", g)
}

func (c *compiler) compileType(t reflect.Type) (validator, error) {
	if t == nil {
		return nil, fmt.Errorf("schemafield: cannot compile a nil type")
	}
	switch t {
	case schemaref.TimeType:
		return timeValidator{}, nil
	case schemaref.DurationType:
		return durationValidator{}, nil
	case jsonNumberType:
		return jsonNumberValidator{}, nil
	}
	switch t.Kind() {
	case reflect.Interface:
		return anyValidator{}, nil
	case reflect.Bool:
		return boolValidator{rt: t}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return intValidator{rt: t}, nil
	case reflect.Float32, reflect.Float64:
		return floatValidator{rt: t}, nil
	case reflect.String:
		return stringValidator{rt: t}, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return bytesValidator{rt: t}, nil
		}
		elem, err := c.compileType(t.Elem())
		if err != nil {
			return nil, err
		}
		return &sliceValidator{rt: t, elem: elem}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("schemafield: unsupported map key type %s (JSON object keys are strings)", t.Key())
		}
		elem, err := c.compileType(t.Elem())
		if err != nil {
			return nil, err
		}
		return &mapValidator{rt: t, elem: elem}, nil
	case reflect.Pointer:
		elem, err := c.compileType(t.Elem())
		if err != nil {
			return nil, err
		}
		return &ptrValidator{rt: t, elem: elem}, nil
	case reflect.Struct:
		return c.compileStruct(t)
	default:
		return nil, fmt.Errorf("schemafield: unsupported schema type %s", t)
	}
}

func (c *compiler) compileStruct(t reflect.Type) (*structValidator, error) {
	if sv, ok := c.structs[t]; ok {
		return sv, nil
	}
	sv := &structValidator{rt: t}
	// Register before compiling fields so self-referential types terminate.
	c.structs[t] = sv
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		alias := schemaref.StructKey(sf)
		if alias == "-" || alias == "" {
			continue
		}
		fv, err := c.compileType(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", schemaref.TypeName(t), sf.Name, err)
		}
		optional := sf.Type.Kind() == reflect.Pointer || hasOmitEmpty(sf)
		sv.fields = append(sv.fields, structField{
			name:     sf.Name,
			alias:    alias,
			index:    i,
			v:        fv,
			required: !optional,
		})
	}
	return sv, nil
}

func hasOmitEmpty(sf reflect.StructField) bool {
	jt := sf.Tag.Get("json")
	for i := 0; i < len(jt); i++ {
		if jt[i] == ',' {
			rest := jt[i+1:]
			for len(rest) > 0 {
				j := len(rest)
				for k := 0; k < len(rest); k++ {
					if rest[k] == ',' {
						j = k
						break
					}
				}
				if rest[:j] == "omitempty" {
					return true
				}
				if j == len(rest) {
					break
				}
				rest = rest[j+1:]
			}
			break
		}
	}
	return false
}

// ---- node definitions ----

type anyValidator struct{}

type boolValidator struct{ rt reflect.Type }

type intValidator struct{ rt reflect.Type }

type floatValidator struct{ rt reflect.Type }

type stringValidator struct{ rt reflect.Type }

type bytesValidator struct{ rt reflect.Type }

type timeValidator struct{}

type durationValidator struct{}

type jsonNumberValidator struct{}

type sliceValidator struct {
	rt   reflect.Type
	elem validator
}

type mapValidator struct {
	rt   reflect.Type
	elem validator
}

type ptrValidator struct {
	rt   reflect.Type
	elem validator
}

type structField struct {
	name     string
	alias    string
	index    int
	v        validator
	required bool
}

type structValidator struct {
	rt     reflect.Type
	fields []structField
}

type optionalValidator struct{ inner validator }

type unionValidator struct{ branches []validator }

type literalValidator struct{ values []any }

type annotatedValidator struct {
	inner   validator
	meta    *schemaref.FieldMeta
	pattern *regexp.Regexp
}
