package schemafield

import (
	"fmt"
	"sort"
)

// UnknownPolicy controls how unknown object keys are handled.
type UnknownPolicy int

const (
	UnknownStrict      UnknownPolicy = iota // Reject unknown keys with an error.
	UnknownStrip                            // Drop unknown keys.
	UnknownPassthrough                      // Ignore unknown keys without reporting.
)

// Config is the validation configuration override carried by an adapter. The
// zero value is the library default: lax coercion and strict unknown keys.
type Config struct {
	Strict      bool // Validate without type coercion unless overridden per call.
	UnknownKeys UnknownPolicy
	AllowNaN    bool // Allow NaN/±Inf float values.
}

// DumpMode dictates the leaf encoding used when dumping values.
//
//go:generate go tool stringer -type=DumpMode -output=dumpmode_string.go
type DumpMode int

const (
	ModeUnspecified DumpMode = iota
	ModeJSON                 // JSON-compatible leaves (times as RFC3339 strings, bytes base64).
	ModePython               // Native leaves (time.Time, []byte, json.Number preserved).
)

// ExportKwargs is the closed set of recognized serialization-control options.
// Tri-state flags are pointers so that "not specified" is distinguishable
// from an explicit false; merging and per-call overrides rely on that.
type ExportKwargs struct {
	Strict          *bool
	FromAttributes  *bool
	Mode            DumpMode
	Include         map[string]struct{}
	Exclude         map[string]struct{}
	ByAlias         *bool
	ExcludeUnset    *bool
	ExcludeDefaults *bool
	ExcludeNone     *bool
	RoundTrip       *bool
	Warnings        *bool
}

// exportKeys enumerates the option names recognized by extraction, in the
// documented order.
var exportKeys = []string{
	"strict", "from_attributes", "mode", "include", "exclude", "by_alias",
	"exclude_unset", "exclude_defaults", "exclude_none", "round_trip", "warnings",
}

// ExtractExportKwargs pops every recognized export option out of opts in
// place and returns them typed. Unrecognized keys are left untouched for the
// caller to handle or reject; a recognized key holding a value of the wrong
// type is a configuration error.
func ExtractExportKwargs(opts map[string]any) (ExportKwargs, error) {
	var kw ExportKwargs
	for _, key := range exportKeys {
		raw, ok := opts[key]
		if !ok {
			continue
		}
		delete(opts, key)
		if err := kw.set(key, raw); err != nil {
			return kw, err
		}
	}
	return kw, nil
}

func (kw *ExportKwargs) set(key string, raw any) error {
	switch key {
	case "mode":
		s, ok := raw.(string)
		if !ok {
			return optTypeError(key, raw, "string")
		}
		switch s {
		case "json":
			kw.Mode = ModeJSON
		case "python":
			kw.Mode = ModePython
		default:
			return fmt.Errorf("schemafield: option %q must be \"json\" or \"python\", got %q", key, s)
		}
		return nil
	case "include", "exclude":
		set, err := toStringSet(raw)
		if err != nil {
			return optTypeError(key, raw, "set of strings")
		}
		if key == "include" {
			kw.Include = set
		} else {
			kw.Exclude = set
		}
		return nil
	}
	b, ok := raw.(bool)
	if !ok {
		return optTypeError(key, raw, "bool")
	}
	switch key {
	case "strict":
		kw.Strict = &b
	case "from_attributes":
		kw.FromAttributes = &b
	case "by_alias":
		kw.ByAlias = &b
	case "exclude_unset":
		kw.ExcludeUnset = &b
	case "exclude_defaults":
		kw.ExcludeDefaults = &b
	case "exclude_none":
		kw.ExcludeNone = &b
	case "round_trip":
		kw.RoundTrip = &b
	case "warnings":
		kw.Warnings = &b
	}
	return nil
}

func optTypeError(key string, raw any, want string) error {
	return fmt.Errorf("schemafield: export option %q requires a %s, got %T", key, want, raw)
}

func toStringSet(raw any) (map[string]struct{}, error) {
	switch t := raw.(type) {
	case map[string]struct{}:
		return t, nil
	case []string:
		out := make(map[string]struct{}, len(t))
		for _, s := range t {
			out[s] = struct{}{}
		}
		return out, nil
	case []any:
		out := make(map[string]struct{}, len(t))
		for _, v := range t {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("non-string element %T", v)
			}
			out[s] = struct{}{}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %T", raw)
}

// merged returns a copy of kw with every option that is set on override
// taking precedence. Strict and FromAttributes are validation-only and are
// excluded from dump merging by the callers that need that.
func (kw ExportKwargs) merged(override ExportKwargs) ExportKwargs {
	out := kw
	if override.Strict != nil {
		out.Strict = override.Strict
	}
	if override.FromAttributes != nil {
		out.FromAttributes = override.FromAttributes
	}
	if override.Mode != ModeUnspecified {
		out.Mode = override.Mode
	}
	if override.Include != nil {
		out.Include = override.Include
	}
	if override.Exclude != nil {
		out.Exclude = override.Exclude
	}
	if override.ByAlias != nil {
		out.ByAlias = override.ByAlias
	}
	if override.ExcludeUnset != nil {
		out.ExcludeUnset = override.ExcludeUnset
	}
	if override.ExcludeDefaults != nil {
		out.ExcludeDefaults = override.ExcludeDefaults
	}
	if override.ExcludeNone != nil {
		out.ExcludeNone = override.ExcludeNone
	}
	if override.RoundTrip != nil {
		out.RoundTrip = override.RoundTrip
	}
	if override.Warnings != nil {
		out.Warnings = override.Warnings
	}
	return out
}

// Equal compares two option sets field by field.
func (kw ExportKwargs) Equal(other ExportKwargs) bool {
	return boolPtrEq(kw.Strict, other.Strict) &&
		boolPtrEq(kw.FromAttributes, other.FromAttributes) &&
		kw.Mode == other.Mode &&
		setEq(kw.Include, other.Include) &&
		setEq(kw.Exclude, other.Exclude) &&
		boolPtrEq(kw.ByAlias, other.ByAlias) &&
		boolPtrEq(kw.ExcludeUnset, other.ExcludeUnset) &&
		boolPtrEq(kw.ExcludeDefaults, other.ExcludeDefaults) &&
		boolPtrEq(kw.ExcludeNone, other.ExcludeNone) &&
		boolPtrEq(kw.RoundTrip, other.RoundTrip) &&
		boolPtrEq(kw.Warnings, other.Warnings)
}

func boolPtrEq(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func setEq(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// sortedKeys renders a set deterministically for messages and artifacts.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// boolVal reads a tri-state flag with a fallback default.
func boolVal(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
