package schemaref

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// ParseExpr parses a canonical type expression into its Ref encoding without
// resolving any names. Recognized forms:
//
//	int, float, string, bool, bytes, time, duration, any
//	list[X]  map[K, V]  ptr[X]
//	Optional[X]  X | Y  X | None
//	Literal["a", 1, true]
//	Annotated[X, Meta(ge=1, le=10)]
//	Name  pkg.Name            (deferred, resolved against a namespace later)
//
// The output of Ref.String parses back to an equal Ref for every variant.
func ParseExpr(expr string) (Ref, error) {
	p := &exprParser{src: expr}
	r, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("schemaref: unexpected %q at offset %d in %q", p.src[p.pos:], p.pos, expr)
	}
	return r, nil
}

// noneRef is the "None" spelling inside unions; it never survives parsing on
// its own, union folding converts it into Optional.
type noneRef struct{}

func (noneRef) isRef()         {}
func (noneRef) String() string { return "None" }

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) parseUnion() (Ref, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	branches := []Ref{first}
	for {
		p.skipSpace()
		if !p.eat('|') {
			break
		}
		next, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		branches = append(branches, next)
	}
	return foldUnion(branches), nil
}

// foldUnion collapses "X | None" spellings into Optional and single-branch
// unions into the branch itself.
func foldUnion(branches []Ref) Ref {
	kept := branches[:0]
	sawNone := false
	for _, b := range branches {
		if _, ok := b.(noneRef); ok {
			sawNone = true
			continue
		}
		kept = append(kept, b)
	}
	var out Ref
	switch len(kept) {
	case 0:
		out = nil
	case 1:
		out = kept[0]
	default:
		out = Union{Branches: kept}
	}
	if sawNone {
		return Optional{Inner: out}
	}
	return out
}

func (p *exprParser) parsePrimary() (Ref, error) {
	p.skipSpace()
	if p.eat('(') {
		inner, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		if !p.eat(')') {
			return nil, p.errorf("expected ')'")
		}
		return inner, nil
	}
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	switch name {
	case "None", "nil":
		return noneRef{}, nil
	case "list", "slice":
		return p.parseGeneric(OriginSlice, 1)
	case "map", "dict":
		return p.parseGeneric(OriginMap, 2)
	case "ptr":
		return p.parseGeneric(OriginPtr, 1)
	case "Optional":
		args, err := p.parseSubscript(1)
		if err != nil {
			return nil, err
		}
		return Optional{Inner: args[0]}, nil
	case "Literal":
		return p.parseLiteral()
	case "Annotated":
		return p.parseAnnotated()
	}
	if t, ok := builtinType(name); ok {
		return Concrete{Type: t}, nil
	}
	// Deferred name; a subscript keeps the name as the generic origin so that
	// each part can resolve independently later.
	p.skipSpace()
	if p.peek() == '[' {
		args, err := p.parseSubscript(-1)
		if err != nil {
			return nil, err
		}
		return Generic{Origin: Named{Expr: name}, Args: args}, nil
	}
	return Named{Expr: name}, nil
}

func (p *exprParser) parseGeneric(origin Origin, arity int) (Ref, error) {
	p.skipSpace()
	if p.peek() != '[' {
		// Bare origin, e.g. a plain "list".
		return Generic{Origin: origin}, nil
	}
	args, err := p.parseSubscript(arity)
	if err != nil {
		return nil, err
	}
	return Generic{Origin: origin, Args: args}, nil
}

func (p *exprParser) parseSubscript(arity int) ([]Ref, error) {
	p.skipSpace()
	if !p.eat('[') {
		return nil, p.errorf("expected '['")
	}
	var args []Ref
	for {
		a, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		p.skipSpace()
		if p.eat(',') {
			continue
		}
		if p.eat(']') {
			break
		}
		return nil, p.errorf("expected ',' or ']'")
	}
	if arity >= 0 && len(args) != arity {
		return nil, p.errorf("expected %d type argument(s), got %d", arity, len(args))
	}
	return args, nil
}

func (p *exprParser) parseLiteral() (Ref, error) {
	p.skipSpace()
	if !p.eat('[') {
		return nil, p.errorf("expected '[' after Literal")
	}
	var values []any
	for {
		v, err := p.parseScalar()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		p.skipSpace()
		if p.eat(',') {
			continue
		}
		if p.eat(']') {
			break
		}
		return nil, p.errorf("expected ',' or ']'")
	}
	return Literal{Values: values}, nil
}

func (p *exprParser) parseAnnotated() (Ref, error) {
	p.skipSpace()
	if !p.eat('[') {
		return nil, p.errorf("expected '[' after Annotated")
	}
	origin, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eat(',') {
		return nil, p.errorf("Annotated requires metadata after the origin")
	}
	meta, err := p.parseMetaCall()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eat(']') {
		return nil, p.errorf("expected ']'")
	}
	return Annotated{Origin: origin, Meta: meta}, nil
}

func (p *exprParser) parseMetaCall() (*FieldMeta, error) {
	p.skipSpace()
	name, err := p.parseName()
	if err != nil || name != "Meta" {
		return nil, p.errorf("expected Meta(...) metadata")
	}
	p.skipSpace()
	if !p.eat('(') {
		return nil, p.errorf("expected '(' after Meta")
	}
	attrs := map[string]any{}
	p.skipSpace()
	if !p.eat(')') {
		for {
			key, err := p.parseName()
			if err != nil {
				return nil, err
			}
			p.skipSpace()
			if !p.eat('=') {
				return nil, p.errorf("expected '=' after %q", key)
			}
			val, err := p.parseScalar()
			if err != nil {
				return nil, err
			}
			attrs[key] = val
			p.skipSpace()
			if p.eat(',') {
				continue
			}
			if p.eat(')') {
				break
			}
			return nil, p.errorf("expected ',' or ')'")
		}
	}
	return MetaSnapshot{Attrs: attrs}.Restore(), nil
}

func (p *exprParser) parseScalar() (any, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '"' || c == '\'':
		return p.parseString(c)
	case c == '-' || unicode.IsDigit(rune(c)):
		return p.parseNumber()
	default:
		name, err := p.parseName()
		if err != nil {
			return nil, err
		}
		switch name {
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		case "nil", "None":
			return nil, nil
		}
		return nil, p.errorf("unexpected scalar %q", name)
	}
}

func (p *exprParser) parseString(quote byte) (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		if c == quote {
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

func (p *exprParser) parseNumber() (any, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if unicode.IsDigit(rune(c)) {
			p.pos++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			if c == '.' || c == 'e' || c == 'E' {
				isFloat = true
			}
			p.pos++
			continue
		}
		break
	}
	text := p.src[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", text)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errorf("bad number %q", text)
	}
	return n, nil
}

func (p *exprParser) parseName() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", p.errorf("expected a name")
	}
	return p.src[start:p.pos], nil
}

func builtinType(name string) (reflect.Type, bool) {
	switch name {
	case "int", "int64":
		return IntType, true
	case "float", "float64":
		return FloatType, true
	case "string", "str":
		return StringType, true
	case "bool":
		return BoolType, true
	case "bytes":
		return BytesType, true
	case "time", "datetime":
		return TimeType, true
	case "duration":
		return DurationType, true
	case "any":
		return AnyType, true
	}
	return nil, false
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) eat(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("schemaref: "+format+" at offset %d in %q", append(args, p.pos, p.src)...)
}
