package artifact

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"

	"github.com/typeadapt/schemafield/namespace"
	"github.com/typeadapt/schemafield/schemaref"
)

// Env resolves the names an emitted expression refers to, playing the role
// of the imports listed alongside it. Qualified type names resolve through
// the namespace; constructor calls resolve through explicitly bound
// functions.
type Env struct {
	ns    *namespace.Namespace
	funcs map[string]reflect.Value
}

// NewEnv builds an environment over the given namespace; nil means the
// process-global one.
func NewEnv(ns *namespace.Namespace) *Env {
	if ns == nil {
		ns = namespace.Global()
	}
	return &Env{ns: ns, funcs: map[string]reflect.Value{}}
}

// Bind registers a qualified name (e.g. "blog.Comment") as a type or value.
func (e *Env) Bind(name string, v any) { e.ns.Register(name, v) }

// BindFunc registers a constructor for representation-fallback calls.
func (e *Env) BindFunc(name string, fn any) {
	e.funcs[name] = reflect.ValueOf(fn)
}

func (e *Env) lookup(name string) (any, bool) {
	if fn, ok := e.funcs[name]; ok {
		return fn, true
	}
	return e.ns.Lookup(name)
}

// Eval re-evaluates an expression emitted by the registry, reconstructing a
// value equal to the one serialized. This closes the artifact round-trip:
// Serialize then Eval must yield an equal schema reference.
func Eval(expr string, env *Env) (any, error) {
	if env == nil {
		env = NewEnv(nil)
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, fmt.Errorf("artifact: cannot parse expression: %w", err)
	}
	return evalNode(node, env)
}

var builtinTypes = map[string]reflect.Type{
	"int":     schemaref.IntType,
	"int64":   schemaref.IntType,
	"float64": schemaref.FloatType,
	"string":  schemaref.StringType,
	"bool":    schemaref.BoolType,
	"byte":    reflect.TypeOf(byte(0)),
	"any":     schemaref.AnyType,
}

func evalNode(node ast.Expr, env *Env) (any, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return evalNode(n.X, env)
	case *ast.BasicLit:
		return evalBasicLit(n)
	case *ast.Ident:
		return evalIdent(n, env)
	case *ast.SelectorExpr:
		return evalSelector(n, env)
	case *ast.UnaryExpr:
		return evalUnary(n, env)
	case *ast.CompositeLit:
		return evalComposite(n, env)
	case *ast.CallExpr:
		return evalCall(n, env)
	case *ast.ArrayType, *ast.MapType, *ast.StarExpr:
		return evalTypeExpr(node, env)
	default:
		return nil, fmt.Errorf("artifact: unsupported expression node %T", node)
	}
}

func evalBasicLit(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.INT:
		return strconv.ParseInt(lit.Value, 0, 64)
	case token.FLOAT:
		return strconv.ParseFloat(lit.Value, 64)
	case token.STRING:
		return strconv.Unquote(lit.Value)
	default:
		return nil, fmt.Errorf("artifact: unsupported literal %s", lit.Value)
	}
}

func evalIdent(id *ast.Ident, env *Env) (any, error) {
	switch id.Name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil":
		return nil, nil
	}
	if t, ok := builtinTypes[id.Name]; ok {
		return t, nil
	}
	if v, ok := env.lookup(id.Name); ok {
		return v, nil
	}
	return nil, &namespace.UnresolvedRefError{Name: id.Name}
}

func evalSelector(sel *ast.SelectorExpr, env *Env) (any, error) {
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("artifact: unsupported selector base %T", sel.X)
	}
	name := pkg.Name + "." + sel.Sel.Name
	switch name {
	case "time.Time":
		return schemaref.TimeType, nil
	case "time.Duration":
		return schemaref.DurationType, nil
	}
	if pkg.Name == "schemaref" {
		if v, ok := schemarefSymbol(sel.Sel.Name); ok {
			return v, nil
		}
	}
	if v, ok := env.lookup(name); ok {
		return v, nil
	}
	return nil, &namespace.UnresolvedRefError{Name: name}
}

func schemarefSymbol(name string) (any, bool) {
	switch name {
	case "OriginSlice":
		return schemaref.OriginSlice, true
	case "OriginMap":
		return schemaref.OriginMap, true
	case "OriginPtr":
		return schemaref.OriginPtr, true
	case "IntType":
		return schemaref.IntType, true
	case "FloatType":
		return schemaref.FloatType, true
	case "StringType":
		return schemaref.StringType, true
	case "BoolType":
		return schemaref.BoolType, true
	case "BytesType":
		return schemaref.BytesType, true
	case "TimeType":
		return schemaref.TimeType, true
	case "DurationType":
		return schemaref.DurationType, true
	case "AnyType":
		return schemaref.AnyType, true
	}
	return nil, false
}

func evalUnary(n *ast.UnaryExpr, env *Env) (any, error) {
	v, err := evalNode(n.X, env)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.SUB:
		switch t := v.(type) {
		case int64:
			return -t, nil
		case float64:
			return -t, nil
		}
		return nil, fmt.Errorf("artifact: cannot negate %T", v)
	case token.AND:
		rv := reflect.ValueOf(v)
		out := reflect.New(rv.Type())
		out.Elem().Set(rv)
		return out.Interface(), nil
	default:
		return nil, fmt.Errorf("artifact: unsupported operator %s", n.Op)
	}
}

func evalCall(call *ast.CallExpr, env *Env) (any, error) {
	// schemaref.TypeFor[T]() resolves the type argument directly.
	if idx, ok := call.Fun.(*ast.IndexExpr); ok {
		if isSchemarefSel(idx.X, "TypeFor") {
			return evalTypeExpr(idx.Index, env)
		}
	}
	// schemaref.Meta(attrs) rebuilds constraint metadata.
	if isSchemarefSel(call.Fun, "Meta") {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("artifact: Meta takes one argument")
		}
		arg, err := evalNode(call.Args[0], env)
		if err != nil {
			return nil, err
		}
		attrs, ok := arg.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("artifact: Meta argument must be a map, got %T", arg)
		}
		return schemaref.Meta(attrs), nil
	}
	fn, err := evalNode(call.Fun, env)
	if err != nil {
		return nil, err
	}
	fv, ok := fn.(reflect.Value)
	if !ok {
		fv = reflect.ValueOf(fn)
	}
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("artifact: %s is not callable", exprText(call.Fun))
	}
	ft := fv.Type()
	args := make([]reflect.Value, len(call.Args))
	for i, a := range call.Args {
		av, err := evalNode(a, env)
		if err != nil {
			return nil, err
		}
		want := schemaref.AnyType
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			want = ft.In(ft.NumIn() - 1).Elem()
		} else if i < ft.NumIn() {
			want = ft.In(i)
		}
		args[i] = coerceArg(av, want)
	}
	out := fv.Call(args)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func isSchemarefSel(e ast.Expr, name string) bool {
	sel, ok := e.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "schemaref" && sel.Sel.Name == name
}

func evalComposite(lit *ast.CompositeLit, env *Env) (any, error) {
	switch t := lit.Type.(type) {
	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if ok && pkg.Name == "schemaref" {
			return evalRefComposite(t.Sel.Name, lit, env)
		}
		typ, err := evalTypeExpr(t, env)
		if err != nil {
			return nil, err
		}
		rt, ok := typ.(reflect.Type)
		if !ok || rt.Kind() != reflect.Struct {
			return nil, fmt.Errorf("artifact: %s is not a struct type", exprText(t))
		}
		return evalStructComposite(rt, lit, env)
	case *ast.ArrayType:
		return evalSliceComposite(t, lit, env)
	case *ast.MapType:
		return evalMapComposite(lit, env)
	default:
		return nil, fmt.Errorf("artifact: unsupported composite type %T", lit.Type)
	}
}

func evalRefComposite(name string, lit *ast.CompositeLit, env *Env) (any, error) {
	fields, err := compositeFields(lit, env)
	if err != nil {
		return nil, err
	}
	switch name {
	case "Named":
		expr, _ := fields["Expr"].(string)
		return schemaref.Named{Expr: expr}, nil
	case "Concrete":
		rt, _ := fields["Type"].(reflect.Type)
		return schemaref.Concrete{Type: rt}, nil
	case "Generic":
		origin, err := asRefValue(fields["Origin"])
		if err != nil {
			return nil, err
		}
		args, err := asRefSlice(fields["Args"])
		if err != nil {
			return nil, err
		}
		return schemaref.Generic{Origin: origin, Args: args}, nil
	case "Union":
		branches, err := asRefSlice(fields["Branches"])
		if err != nil {
			return nil, err
		}
		return schemaref.Union{Branches: branches}, nil
	case "Optional":
		inner, err := asRefValue(fields["Inner"])
		if err != nil {
			return nil, err
		}
		return schemaref.Optional{Inner: inner}, nil
	case "Literal":
		values, _ := fields["Values"].([]any)
		return schemaref.Literal{Values: values}, nil
	case "Annotated":
		origin, err := asRefValue(fields["Origin"])
		if err != nil {
			return nil, err
		}
		meta, _ := fields["Meta"].(*schemaref.FieldMeta)
		return schemaref.Annotated{Origin: origin, Meta: meta}, nil
	case "MetaSnapshot":
		var origin schemaref.Ref
		if fields["Origin"] != nil {
			r, err := asRefValue(fields["Origin"])
			if err != nil {
				return nil, err
			}
			origin = r
		}
		attrs, _ := fields["Attrs"].(map[string]any)
		return schemaref.MetaSnapshot{Origin: origin, Attrs: attrs}, nil
	default:
		return nil, fmt.Errorf("artifact: unknown schemaref literal %q", name)
	}
}

func compositeFields(lit *ast.CompositeLit, env *Env) (map[string]any, error) {
	out := map[string]any{}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return nil, fmt.Errorf("artifact: composite literals require keyed fields")
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("artifact: unsupported composite key %T", kv.Key)
		}
		v, err := evalNode(kv.Value, env)
		if err != nil {
			return nil, err
		}
		out[key.Name] = v
	}
	return out, nil
}

func evalStructComposite(rt reflect.Type, lit *ast.CompositeLit, env *Env) (any, error) {
	fields, err := compositeFields(lit, env)
	if err != nil {
		return nil, err
	}
	out := reflect.New(rt).Elem()
	for name, v := range fields {
		fv := out.FieldByName(name)
		if !fv.IsValid() || !fv.CanSet() {
			return nil, fmt.Errorf("artifact: %s has no settable field %q", rt, name)
		}
		fv.Set(coerceArg(v, fv.Type()))
	}
	return out.Interface(), nil
}

func evalSliceComposite(t *ast.ArrayType, lit *ast.CompositeLit, env *Env) (any, error) {
	isRefSlice := isSchemarefSel(t.Elt, "Ref")
	if isRefSlice {
		out := make([]schemaref.Ref, 0, len(lit.Elts))
		for _, elt := range lit.Elts {
			v, err := evalNode(elt, env)
			if err != nil {
				return nil, err
			}
			r, err := asRefValue(v)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	}
	out := make([]any, 0, len(lit.Elts))
	for _, elt := range lit.Elts {
		v, err := evalNode(elt, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func evalMapComposite(lit *ast.CompositeLit, env *Env) (any, error) {
	out := make(map[string]any, len(lit.Elts))
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return nil, fmt.Errorf("artifact: map literals require keyed entries")
		}
		k, err := evalNode(kv.Key, env)
		if err != nil {
			return nil, err
		}
		ks, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("artifact: map keys must be strings, got %T", k)
		}
		v, err := evalNode(kv.Value, env)
		if err != nil {
			return nil, err
		}
		out[ks] = v
	}
	return out, nil
}

// evalTypeExpr evaluates an expression in type position to a reflect.Type.
func evalTypeExpr(node ast.Expr, env *Env) (any, error) {
	switch n := node.(type) {
	case *ast.Ident:
		if t, ok := builtinTypes[n.Name]; ok {
			return t, nil
		}
		v, err := evalIdent(n, env)
		if err != nil {
			return nil, err
		}
		return asType(v)
	case *ast.SelectorExpr:
		v, err := evalSelector(n, env)
		if err != nil {
			return nil, err
		}
		return asType(v)
	case *ast.ArrayType:
		elem, err := evalTypeExpr(n.Elt, env)
		if err != nil {
			return nil, err
		}
		et, err := asType(elem)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(et), nil
	case *ast.MapType:
		key, err := evalTypeExpr(n.Key, env)
		if err != nil {
			return nil, err
		}
		kt, err := asType(key)
		if err != nil {
			return nil, err
		}
		elem, err := evalTypeExpr(n.Value, env)
		if err != nil {
			return nil, err
		}
		et, err := asType(elem)
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(kt, et), nil
	case *ast.StarExpr:
		elem, err := evalTypeExpr(n.X, env)
		if err != nil {
			return nil, err
		}
		et, err := asType(elem)
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(et), nil
	case *ast.InterfaceType:
		return schemaref.AnyType, nil
	default:
		return nil, fmt.Errorf("artifact: unsupported type expression %T", node)
	}
}

func asType(v any) (reflect.Type, error) {
	switch t := v.(type) {
	case reflect.Type:
		return t, nil
	case schemaref.Ref:
		if rt, ok := schemaref.Unwrap(t).(reflect.Type); ok {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("artifact: %v does not resolve to a type", v)
}

func asRefValue(v any) (schemaref.Ref, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case schemaref.Ref:
		return t, nil
	case reflect.Type:
		return schemaref.Concrete{Type: t}, nil
	}
	return nil, fmt.Errorf("artifact: %T is not a schema reference", v)
}

func asRefSlice(v any) ([]schemaref.Ref, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []schemaref.Ref:
		return t, nil
	case []any:
		out := make([]schemaref.Ref, len(t))
		for i, e := range t {
			r, err := asRefValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return nil, fmt.Errorf("artifact: %T is not a reference list", v)
}

func coerceArg(v any, rt reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(rt)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(rt) {
		return rv
	}
	if rv.Type().ConvertibleTo(rt) {
		return rv.Convert(rt)
	}
	return reflect.Zero(rt)
}

func exprText(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.SelectorExpr:
		return exprText(n.X) + "." + n.Sel.Name
	default:
		return fmt.Sprintf("%T", e)
	}
}
