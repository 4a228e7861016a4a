package schemafield

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/typeadapt/schemafield/namespace"
	"github.com/typeadapt/schemafield/schemaref"
)

// ValidateOpt carries per-call validation overrides. Unset fields fall back
// to the adapter's stored export kwargs, not to a library default, so the
// field-level configuration stays authoritative.
type ValidateOpt struct {
	Strict         *bool
	FromAttributes *bool
}

// Strictly is a shorthand ValidateOpt enabling strict validation.
func Strictly() ValidateOpt { s := true; return ValidateOpt{Strict: &s} }

// SchemaAdapter resolves a raw schema spec into a concrete schema and
// validates/serializes values against it. It moves along two axes:
// bound/unbound (owner and attribute known) and resolved/unresolved (prepared
// schema computed). Resolution is lazy, memoized, and invalidated only by
// Bind; binding itself never fails on resolution problems.
type SchemaAdapter struct {
	schema    any // reflect.Type | schemaref.Ref | string | nil
	config    Config
	owner     any
	attname   string
	allowNull bool
	kwargs    ExportKwargs

	mu       sync.Mutex
	prepared any
	val      validator
	resolved bool
}

// FromType builds an unbound adapter over an explicit schema spec. Recognized
// export options are popped out of opts in place; unknown keys stay behind
// for the caller to handle or reject.
func FromType(schema any, cfg *Config, opts map[string]any) (*SchemaAdapter, error) {
	kw, err := ExtractExportKwargs(opts)
	if err != nil {
		return nil, err
	}
	a := &SchemaAdapter{schema: schema, kwargs: kw}
	if cfg != nil {
		a.config = *cfg
	}
	return a, nil
}

// FromAnnotation builds a bound adapter with no explicit schema; resolution
// always falls through to the owner's declared annotation for attname.
func FromAnnotation(owner any, attname string, cfg *Config, opts map[string]any) (*SchemaAdapter, error) {
	a, err := FromType(nil, cfg, opts)
	if err != nil {
		return nil, err
	}
	return a.Bind(owner, attname), nil
}

// WithAllowNull sets the null policy and invalidates the resolved state so
// the prepared schema picks up the nullable wrapping.
func (a *SchemaAdapter) WithAllowNull(allow bool) *SchemaAdapter {
	a.mu.Lock()
	a.allowNull = allow
	a.invalidateLocked()
	a.mu.Unlock()
	return a
}

// Bind attaches the adapter to its owning type and attribute name, dropping
// every cache derived from the previous binding. Bind always succeeds
// structurally; resolution errors surface from the first call that needs the
// prepared schema.
func (a *SchemaAdapter) Bind(owner any, attname string) *SchemaAdapter {
	a.mu.Lock()
	a.owner = owner
	a.attname = attname
	a.invalidateLocked()
	a.mu.Unlock()
	return a
}

func (a *SchemaAdapter) invalidateLocked() {
	a.prepared = nil
	a.val = nil
	a.resolved = false
}

// IsBound reports whether both owner and attribute name are set.
func (a *SchemaAdapter) IsBound() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner != nil && a.attname != ""
}

// Attname returns the bound attribute name, empty when unbound.
func (a *SchemaAdapter) Attname() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attname
}

// ExportKwargs returns a copy of the adapter's stored export options.
func (a *SchemaAdapter) ExportKwargs() ExportKwargs { return a.kwargs }

// Copy returns an adapter with the same declaration but independent caches,
// so the original and the copy can be rebound and resolved separately.
func (a *SchemaAdapter) Copy() *SchemaAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &SchemaAdapter{
		schema:    a.schema,
		config:    a.config,
		owner:     a.owner,
		attname:   a.attname,
		allowNull: a.allowNull,
		kwargs:    a.kwargs,
	}
}

// Prepared forces resolution and returns the prepared schema: the fully
// concrete reflect.Type or normalized Ref after forward-reference evaluation,
// container unwrapping, and null wrapping.
func (a *SchemaAdapter) Prepared() (any, error) {
	_, prepared, err := a.resolve()
	return prepared, err
}

// ValidateSchema forces resolution and reports failures as a configuration
// error naming the underlying cause.
func (a *SchemaAdapter) ValidateSchema() error {
	if _, _, err := a.resolve(); err != nil {
		if _, ok := AsImproperlyConfigured(err); ok {
			return err
		}
		return &ImproperlyConfiguredError{Reason: a.declSite(), Cause: err}
	}
	return nil
}

// resolve memoizes the prepared schema and its compiled validator. Failed
// resolutions are not cached: a deferred forward reference may become
// resolvable once the namespace fills in.
func (a *SchemaAdapter) resolve() (validator, any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolved {
		return a.val, a.prepared, nil
	}
	prepared, err := a.prepareLocked()
	if err != nil {
		return nil, nil, err
	}
	val, err := compile(prepared, a.config)
	if err != nil {
		return nil, nil, &ImproperlyConfiguredError{Reason: a.declSite(), Cause: err}
	}
	a.prepared = prepared
	a.val = val
	a.resolved = true
	return val, prepared, nil
}

func (a *SchemaAdapter) declSite() string {
	if a.owner != nil && a.attname != "" {
		return fmt.Sprintf("%s.%s", namespace.OwnerName(a.owner), a.attname)
	}
	return "unbound adapter"
}

func (a *SchemaAdapter) prepareLocked() (any, error) {
	spec := a.schema
	if spec == nil {
		if a.owner == nil || a.attname == "" {
			return nil, &ImproperlyConfiguredError{
				Reason: "adapter has no schema and was used before binding",
			}
		}
		ann, ok := namespace.AnnotatedType(a.owner, a.attname)
		if !ok {
			return nil, &ImproperlyConfiguredError{
				Reason: fmt.Sprintf("no schema declared for %s", a.declSite()),
			}
		}
		spec = ann
	}
	ns := namespace.GetNamespace(a.owner)
	resolved, err := resolveSpec(spec, ns, 0)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, &ImproperlyConfiguredError{
			Reason: fmt.Sprintf("schema for %s resolved to nothing", a.declSite()),
		}
	}
	if a.allowNull {
		resolved = schemaref.Optional{Inner: toRef(resolved)}
	}
	return resolved, nil
}

const maxResolveDepth = 32

// resolveSpec evaluates a raw schema spec to a concrete type or normalized
// Ref, resolving forward references inside generic arguments independently.
func resolveSpec(spec any, ns *namespace.Namespace, depth int) (any, error) {
	if depth > maxResolveDepth {
		return nil, &ImproperlyConfiguredError{Reason: "schema reference cycle detected"}
	}
	switch t := spec.(type) {
	case nil:
		return nil, nil
	case reflect.Type:
		return t, nil
	case string:
		return resolveSpec(schemaref.Named{Expr: t}, ns, depth+1)
	case schemaref.Named:
		out, err := namespace.EvaluateForwardRef(t, ns)
		if err != nil {
			return nil, err
		}
		return resolveSpec(out, ns, depth+1)
	case schemaref.Concrete:
		return t.Type, nil
	case schemaref.Origin:
		return resolveSpec(schemaref.Generic{Origin: t}, ns, depth+1)
	case schemaref.Generic:
		origin := t.Origin
		if _, builtin := origin.(schemaref.Origin); !builtin {
			ro, err := resolveSpec(origin, ns, depth+1)
			if err != nil {
				return nil, err
			}
			origin = toRef(ro)
		}
		args := make([]schemaref.Ref, len(t.Args))
		for i, arg := range t.Args {
			ra, err := resolveSpec(arg, ns, depth+1)
			if err != nil {
				return nil, err
			}
			args[i] = toRef(ra)
		}
		return schemaref.Unwrap(schemaref.Generic{Origin: origin, Args: args}), nil
	case schemaref.Optional:
		inner, err := resolveSpec(t.Inner, ns, depth+1)
		if err != nil {
			return nil, err
		}
		return schemaref.Optional{Inner: toRef(inner)}, nil
	case schemaref.Union:
		branches := make([]schemaref.Ref, len(t.Branches))
		for i, b := range t.Branches {
			rb, err := resolveSpec(b, ns, depth+1)
			if err != nil {
				return nil, err
			}
			branches[i] = toRef(rb)
		}
		return schemaref.Union{Branches: branches}, nil
	case schemaref.Annotated:
		origin, err := resolveSpec(t.Origin, ns, depth+1)
		if err != nil {
			return nil, err
		}
		return schemaref.Annotated{Origin: toRef(origin), Meta: t.Meta}, nil
	case schemaref.Literal:
		return t, nil
	case schemaref.StructSnapshot, schemaref.MetaSnapshot:
		return schemaref.Unwrap(t), nil
	default:
		return nil, &ImproperlyConfiguredError{
			Reason: fmt.Sprintf("unsupported schema spec of type %T", spec),
		}
	}
}

func toRef(v any) schemaref.Ref {
	switch t := v.(type) {
	case schemaref.Ref:
		return t
	case reflect.Type:
		return schemaref.Concrete{Type: t}
	}
	if r, ok := schemaref.Wrap(v).(schemaref.Ref); ok {
		return r
	}
	return schemaref.Concrete{Type: reflect.TypeOf(v)}
}

// ValidatePython validates a native value against the resolved schema and
// returns the typed result. Unset strict/from_attributes fall back to the
// stored export kwargs, then to the validation config.
func (a *SchemaAdapter) ValidatePython(v any, opts ...ValidateOpt) (any, error) {
	val, _, err := a.resolve()
	if err != nil {
		return nil, err
	}
	vc := &valctx{
		strict:         boolVal(a.kwargs.Strict, a.config.Strict),
		fromAttributes: boolVal(a.kwargs.FromAttributes, false),
		cfg:            a.config,
	}
	for _, o := range opts {
		if o.Strict != nil {
			vc.strict = *o.Strict
		}
		if o.FromAttributes != nil {
			vc.fromAttributes = *o.FromAttributes
		}
	}
	out, iss := val.validate(vc, "/", v)
	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

// ValidateJSON decodes JSON text and validates the result. Numbers decode as
// json.Number so integer schemas never lose precision through float64.
// String input is a []byte([...]) conversion away; the host field wrappers
// handle that before calling in.
func (a *SchemaAdapter) ValidateJSON(data []byte, opts ...ValidateOpt) (any, error) {
	decoded, err := decodeJSON(data)
	if err != nil {
		return nil, Issues{{Path: "/", Code: CodeParseError, Message: "invalid JSON input", Cause: err}}
	}
	return a.ValidatePython(decoded, opts...)
}

// dumpContext builds the dump context from stored kwargs merged with call
// overrides. strict/from_attributes are validation-only and ignored here.
func (a *SchemaAdapter) dumpContext(overrides []ExportKwargs) *dumpctx {
	kw := a.kwargs
	for _, o := range overrides {
		kw = kw.merged(o)
	}
	mode := kw.Mode
	if mode == ModeUnspecified {
		mode = ModeJSON
	}
	return &dumpctx{
		mode:            mode,
		byAlias:         boolVal(kw.ByAlias, true),
		excludeUnset:    boolVal(kw.ExcludeUnset, false),
		excludeDefaults: boolVal(kw.ExcludeDefaults, false),
		excludeNone:     boolVal(kw.ExcludeNone, false),
		roundTrip:       boolVal(kw.RoundTrip, false),
		warnings:        boolVal(kw.Warnings, true),
		include:         kw.Include,
		exclude:         kw.Exclude,
	}
}

// DumpPython serializes a typed value into plain data. Call overrides win
// over stored kwargs; the default mode is JSON-compatible leaves.
func (a *SchemaAdapter) DumpPython(v any, overrides ...ExportKwargs) (any, error) {
	val, _, err := a.resolve()
	if err != nil {
		return nil, err
	}
	out, iss := val.dump(a.dumpContext(overrides), "/", v)
	if len(iss) > 0 {
		return nil, iss
	}
	return out, nil
}

// DumpJSON serializes a typed value to JSON bytes. The mode is forced to
// JSON regardless of stored kwargs.
func (a *SchemaAdapter) DumpJSON(v any, overrides ...ExportKwargs) ([]byte, error) {
	val, _, err := a.resolve()
	if err != nil {
		return nil, err
	}
	dc := a.dumpContext(overrides)
	dc.mode = ModeJSON
	out, iss := val.dump(dc, "/", v)
	if len(iss) > 0 {
		return nil, iss
	}
	return encodeJSON(out)
}

// JSONSchema returns the introspection schema for the resolved type,
// honoring the by_alias export option (default true).
func (a *SchemaAdapter) JSONSchema() (*jsSchema, error) {
	val, _, err := a.resolve()
	if err != nil {
		return nil, err
	}
	return val.jsonSchema(boolVal(a.kwargs.ByAlias, true)), nil
}

// DefaultValue reports the schema-declared default when the validator's
// introspection has one; ok distinguishes a declared nil default from
// absence.
func (a *SchemaAdapter) DefaultValue() (v any, ok bool, err error) {
	val, _, rerr := a.resolve()
	if rerr != nil {
		return nil, false, rerr
	}
	v, ok = val.defaultValue()
	return v, ok, nil
}

// Equal reports whether two adapters describe the same field declaration:
// attribute name, export kwargs and prepared schemas all match. When both
// are bound and either fails to resolve they are unequal; when either is
// unbound the raw declaration is compared instead.
func (a *SchemaAdapter) Equal(other *SchemaAdapter) bool {
	if other == nil {
		return a == nil
	}
	if a.Attname() != other.Attname() {
		return false
	}
	if !a.kwargs.Equal(other.kwargs) {
		return false
	}
	if a.IsBound() && other.IsBound() {
		pa, ea := a.Prepared()
		pb, eb := other.Prepared()
		if ea != nil || eb != nil {
			return false
		}
		return schemaref.Equal(pa, pb)
	}
	return a.config == other.config &&
		a.allowNull == other.allowNull &&
		rawSchemaEqual(a.schema, other.schema)
}

func rawSchemaEqual(x, y any) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if sx, ok := x.(string); ok {
		sy, ok := y.(string)
		return ok && sx == sy
	}
	return schemaref.Equal(x, y)
}
