// Package namespace maintains the name bindings used to evaluate deferred
// schema references. Go has no runtime module globals, so the namespace is
// an explicit registry: a process-global table populated at startup plus an
// optional per-owner local table, merged with local bindings taking
// precedence.
package namespace

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/typeadapt/schemafield/schemaref"
)

// Namespace maps names to type bindings. A binding may be a reflect.Type, a
// schemaref.Ref, or a plain value whose type should be used.
type Namespace struct {
	mu    sync.RWMutex
	names map[string]any
}

// New returns an empty namespace.
func New() *Namespace {
	return &Namespace{names: map[string]any{}}
}

// Register binds name to the given type, reference or value. Registering a
// value binds its dynamic type.
func (ns *Namespace) Register(name string, v any) {
	bound := v
	switch v.(type) {
	case reflect.Type, schemaref.Ref, string:
	default:
		bound = reflect.TypeOf(v)
	}
	ns.mu.Lock()
	ns.names[name] = bound
	ns.mu.Unlock()
}

// Lookup returns the binding for name.
func (ns *Namespace) Lookup(name string) (any, bool) {
	ns.mu.RLock()
	v, ok := ns.names[name]
	ns.mu.RUnlock()
	return v, ok
}

// Names returns a snapshot of all bound names.
func (ns *Namespace) Names() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]string, 0, len(ns.names))
	for k := range ns.names {
		out = append(out, k)
	}
	return out
}

// RegisterType binds T under the given name, defaulting to the type's
// rendered name when name is empty.
func RegisterType[T any](ns *Namespace, name string) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if name == "" {
		name = schemaref.TypeName(t)
	}
	ns.Register(name, t)
}

var global = New()

// Global returns the process-wide namespace. It starts empty; callers
// register their schema types explicitly during startup.
func Global() *Namespace { return global }

// LocalNamespacer is implemented by owner types that carry their own local
// name bindings. Local bindings shadow global ones during resolution, so
// owner-scoped schema types resolve before falling back to the shared table.
type LocalNamespacer interface {
	LocalNamespace() map[string]any
}

// GetNamespace merges the global namespace with the owner's local namespace
// into a fresh lookup table. Local bindings take precedence.
func GetNamespace(owner any) *Namespace {
	merged := New()
	global.mu.RLock()
	for k, v := range global.names {
		merged.names[k] = v
	}
	global.mu.RUnlock()
	if ln, ok := owner.(LocalNamespacer); ok && ln != nil {
		for k, v := range ln.LocalNamespace() {
			merged.Register(k, v)
		}
	}
	return merged
}

// UnresolvedRefError reports a name lookup failure during forward-reference
// evaluation. It is a recoverable condition: binding sites whose namespace
// may not be fully populated yet should defer resolution to first use.
type UnresolvedRefError struct {
	Name string
	Expr string
}

func (e *UnresolvedRefError) Error() string {
	if e.Expr != "" && e.Expr != e.Name {
		return fmt.Sprintf("namespace: name %q is not defined (while evaluating %q)", e.Name, e.Expr)
	}
	return fmt.Sprintf("namespace: name %q is not defined", e.Name)
}

// EvaluateForwardRef evaluates a deferred reference against the namespace.
// Structured expressions return their parsed Ref form with inner names still
// deferred; bare names resolve to their binding. Missing names yield
// *UnresolvedRefError.
func EvaluateForwardRef(ref schemaref.Named, ns *Namespace) (any, error) {
	parsed, err := schemaref.ParseExpr(ref.Expr)
	if err != nil {
		return nil, err
	}
	inner, ok := parsed.(schemaref.Named)
	if !ok {
		return parsed, nil
	}
	if ns != nil {
		if v, ok := ns.Lookup(inner.Expr); ok {
			return v, nil
		}
	}
	return nil, &UnresolvedRefError{Name: inner.Expr, Expr: ref.Expr}
}
