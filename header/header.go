// Package header provides an ordered HTTP header field collection.
//
// [net/http.Header] is a map and forgets the order fields were added
// in. Requests built through the connection facade carry an ordered
// [Fields] slice instead, so fields reach the wire in the order the
// caller supplied them and duplicate names survive intact.
package header

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"
)

var (
	// ErrFieldName indicates a field name that is not a valid token.
	ErrFieldName = errors.New("invalid header field name")

	// ErrFieldValue indicates a field value carrying illegal bytes.
	ErrFieldValue = errors.New("invalid header field value")
)

// Error reports the field that failed grammar validation.
type Error struct {
	Field Field
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Field.Name)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Field is a single HTTP header field.
type Field struct {
	Name  string
	Value string
}

// Valid checks f against the HTTP field grammar: the name must be a
// token, the value must be free of control bytes other than tab.
func Valid(f Field) error {
	if !httpguts.ValidHeaderFieldName(f.Name) {
		return &Error{Field: f, Err: ErrFieldName}
	}
	if !httpguts.ValidHeaderFieldValue(f.Value) {
		return &Error{Field: f, Err: ErrFieldValue}
	}

	return nil
}

// Fields is an ordered header field collection. Duplicate names are
// permitted and kept in insertion order. Name lookups are
// case-insensitive.
type Fields []Field

// Add appends a field, keeping any existing fields with the same name.
func (fs *Fields) Add(name, value string) {
	*fs = append(*fs, Field{Name: name, Value: value})
}

// Set replaces every field named name with a single field carrying
// value, at the position of the first occurrence. Absent names are
// appended.
func (fs *Fields) Set(name, value string) {
	out := (*fs)[:0]

	var replaced bool
	for _, f := range *fs {
		if strings.EqualFold(f.Name, name) {
			if !replaced {
				out = append(out, Field{Name: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Field{Name: name, Value: value})
	}

	*fs = out
}

// Get returns the value of the first field matching name, reporting
// whether one was found.
func (fs Fields) Get(name string) (string, bool) {
	for _, f := range fs {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}

	return "", false
}

// Values returns every value held under name, in insertion order.
func (fs Fields) Values(name string) []string {
	var vals []string
	for _, f := range fs {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}

	return vals
}

// Clone returns a copy that can be mutated independently of fs.
func (fs Fields) Clone() Fields {
	return slices.Clone(fs)
}

// Len returns the number of fields.
func (fs Fields) Len() int {
	return len(fs)
}

// All iterates over the fields as name/value pairs, in order.
func (fs Fields) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, f := range fs {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// FromHTTP flattens h into an ordered collection. Map iteration order
// is randomized, so names are sorted to keep the result deterministic.
// Values of a repeated field keep the order they arrived in.
func FromHTTP(h http.Header) Fields {
	fs := make(Fields, 0, len(h))
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[name] {
			fs = append(fs, Field{Name: name, Value: v})
		}
	}

	return fs
}

// Carrier adapts a Fields pointer to the text-map carrier shape used
// by OpenTelemetry propagators, letting trace context be injected into
// outbound request fields without this package importing otel.
type Carrier struct {
	Fields *Fields
}

// Get returns the first value associated with key, or "".
func (c Carrier) Get(key string) string {
	v, _ := c.Fields.Get(key)
	return v
}

// Set stores a single value under key, replacing any previous ones.
func (c Carrier) Set(key, value string) {
	c.Fields.Set(key, value)
}

// Keys lists the stored field names in order.
func (c Carrier) Keys() []string {
	keys := make([]string, 0, len(*c.Fields))
	for _, f := range *c.Fields {
		keys = append(keys, f.Name)
	}

	return keys
}
