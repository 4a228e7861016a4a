package schemafield

import (
	"bytes"
	"errors"
	"io"

	j "github.com/goccy/go-json"
)

// decodeJSON decodes the wire form into untyped data. UseNumber keeps
// integers exact until the validator decides their Go shape. Exactly one
// JSON value is accepted; trailing data is an error.
func decodeJSON(data []byte) (any, error) {
	dec := j.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// encodeJSON marshals dumped plain data back to the wire form.
func encodeJSON(v any) ([]byte, error) {
	return j.Marshal(v)
}
