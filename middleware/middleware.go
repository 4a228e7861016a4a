// Package middleware provides HTTP glue for validating JSON request bodies
// through a schema adapter and carrying the typed result in the request
// context.
package middleware

import (
	"context"
	"io"
	"net/http"

	j "github.com/goccy/go-json"

	schemafield "github.com/typeadapt/schemafield"
)

// ctxKeyValidated is a typed context key for storing a validated value.
// Using a generic struct type ensures uniqueness per T.
type ctxKeyValidated[T any] struct{}

// ContextWithValidated attaches a validated value to the context.
func ContextWithValidated[T any](ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, ctxKeyValidated[T]{}, v)
}

// ValidatedFromContext retrieves a validated value from the context.
func ValidatedFromContext[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(ctxKeyValidated[T]{}).(T)
	return v, ok
}

// ErrorPayload shapes Issues for JSON error responses.
func ErrorPayload(issues schemafield.Issues) map[string]any {
	return map[string]any{"issues": issues}
}

// MaxBodyBytes caps request bodies read by ValidateBody.
const MaxBodyBytes = 1 << 20

// ValidateBody wraps next with request-body validation: the JSON body must
// validate against the adapter and the typed result is stored in the request
// context under T. Validation failures answer 422 with the issue list;
// unreadable or unresolvable schemas answer 500.
func ValidateBody[T any](adapter *schemafield.SchemaAdapter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		if err != nil {
			http.Error(w, "cannot read request body", http.StatusBadRequest)
			return
		}
		v, err := adapter.ValidateJSON(body)
		if err != nil {
			if iss, ok := schemafield.AsIssues(err); ok {
				writeIssues(w, iss)
				return
			}
			http.Error(w, "schema configuration error", http.StatusInternalServerError)
			return
		}
		typed, ok := v.(T)
		if !ok {
			http.Error(w, "schema configuration error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithValidated(r.Context(), typed)))
	})
}

func writeIssues(w http.ResponseWriter, iss schemafield.Issues) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = j.NewEncoder(w).Encode(ErrorPayload(iss))
}
