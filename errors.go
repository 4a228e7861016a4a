package schemafield

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType     = "invalid_type"
	CodeRequired        = "required"
	CodeUnknownKey      = "unknown_key"
	CodeTooSmall        = "too_small"
	CodeTooBig          = "too_big"
	CodeTooShort        = "too_short"
	CodeTooLong         = "too_long"
	CodePattern         = "pattern"
	CodeInvalidEnum     = "invalid_enum"
	CodeInvalidFormat   = "invalid_format"
	CodeUnionNoMatch    = "union_no_match"
	CodeParseError      = "parse_error"
	CodeOverflow        = "overflow"
	CodeNotSerializable = "not_serializable"
)

// Issue represents a single validation entry.
type Issue struct {
	Path    string // JSON Pointer (for example: /items/2/price).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints, format names, etc.
	Cause   error  // Optional: underlying error.
	// Params carries structured parameters (e.g., {"min":1, "max":10, "got":42})
	// for i18n and observability.
	Params map[string]any
}

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. invalid_type at /path
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// prefixIssues rebases every issue path under the given JSON Pointer segment.
func prefixIssues(iss Issues, segment string) Issues {
	out := make(Issues, len(iss))
	for i, it := range iss {
		p := it.Path
		if p == "/" {
			p = ""
		}
		it.Path = "/" + segment + p
		out[i] = it
	}
	return out
}

// ImproperlyConfiguredError reports that a schema declaration cannot be
// resolved at all: an unbound adapter with no explicit schema, a missing
// annotation, or a reference that stays unresolvable after every deferral.
// It wraps the underlying cause when there is one.
type ImproperlyConfiguredError struct {
	Reason string
	Cause  error
}

func (e *ImproperlyConfiguredError) Error() string {
	if e.Cause != nil {
		return "schemafield: improperly configured schema: " + e.Reason + ": " + e.Cause.Error()
	}
	return "schemafield: improperly configured schema: " + e.Reason
}

func (e *ImproperlyConfiguredError) Unwrap() error { return e.Cause }

// AsImproperlyConfigured extracts an ImproperlyConfiguredError from err.
func AsImproperlyConfigured(err error) (*ImproperlyConfiguredError, bool) {
	var ice *ImproperlyConfiguredError
	if errors.As(err, &ice) {
		return ice, true
	}
	return nil, false
}
