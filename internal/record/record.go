// Package record defines the structured payload that flows through a flow
// once it leaves the parser: a JSON-shaped, path-addressable mapping that
// filters inspect, formats render, and outputs never see directly.
package record

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
)

// Record is an opaque mapping produced by a Parser and carried through
// filters and an OutputFormat to an Output. Paths use gabs's dotted
// notation ("user.ip", "meta.trace_id") so filters can address nested
// fields without the core knowing anything about their shape.
type Record struct {
	data *gabs.Container
}

// New returns an empty Record.
func New() *Record {
	return &Record{data: gabs.New()}
}

// FromMap wraps an existing map as a Record without copying leaf values.
func FromMap(m map[string]any) *Record {
	r := New()
	for k, v := range m {
		_, _ = r.data.SetP(v, k)
	}
	return r
}

// FromJSON parses a JSON document into a Record.
func FromJSON(raw []byte) (*Record, error) {
	c, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("record: parse json: %w", err)
	}
	return &Record{data: c}, nil
}

// Get returns the value addressed by a dotted path and whether it existed.
func (r *Record) Get(path string) (any, bool) {
	if r == nil || r.data == nil {
		return nil, false
	}
	c := r.data.Path(path)
	if c == nil || c.Data() == nil {
		return nil, false
	}
	return c.Data(), true
}

// GetString is a convenience wrapper over Get for the common case of
// reading a field a filter expects to be textual; non-string values are
// rendered with fmt.Sprint rather than failing, matching the source
// filters' tolerant field access.
func (r *Record) GetString(path string) (string, bool) {
	v, ok := r.Get(path)
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Set writes a value at a dotted path, creating intermediate objects as
// needed.
func (r *Record) Set(path string, value any) {
	_, _ = r.data.SetP(value, path)
}

// Clone returns a deep copy so retried or requeued records never alias
// mutable state shared with another in-flight attempt.
func (r *Record) Clone() *Record {
	if r == nil || r.data == nil {
		return New()
	}
	cloned, err := gabs.ParseJSON(r.data.Bytes())
	if err != nil {
		// Only non-JSON-serializable leaves (which the built-in
		// components never produce) would land here.
		return New()
	}
	return &Record{data: cloned}
}

// Map returns the record as a plain map[string]any.
func (r *Record) Map() map[string]any {
	if r == nil || r.data == nil {
		return map[string]any{}
	}
	if m, ok := r.data.Data().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.data == nil {
		return []byte("null"), nil
	}
	return r.data.Bytes(), nil
}

// String returns the compact JSON rendering of the record.
func (r *Record) String() string {
	if r == nil || r.data == nil {
		return "{}"
	}
	return r.data.String()
}
