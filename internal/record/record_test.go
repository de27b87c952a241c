package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetNestedPath(t *testing.T) {
	r := New()
	r.Set("meta.trace_id", "abc123")

	v, ok := r.Get("meta.trace_id")
	require.True(t, ok)
	assert.Equal(t, "abc123", v)

	// The intermediate object exists as a real nesting level.
	_, ok = r.Get("meta")
	assert.True(t, ok)
}

func TestGetMissingPath(t *testing.T) {
	r := New()
	_, ok := r.Get("nope")
	assert.False(t, ok)

	s, ok := r.GetString("nope")
	assert.False(t, ok)
	assert.Empty(t, s)
}

func TestGetStringRendersNonStrings(t *testing.T) {
	r := FromMap(map[string]any{"status": float64(404)})
	s, ok := r.GetString("status")
	require.True(t, ok)
	assert.Equal(t, "404", s)
}

func TestFromJSONRoundTrip(t *testing.T) {
	r, err := FromJSON([]byte(`{"message":"a","level":"info"}`))
	require.NoError(t, err)

	v, ok := r.GetString("message")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	out, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"a","level":"info"}`, string(out))
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	r := FromMap(map[string]any{"message": "a"})
	c := r.Clone()
	c.Set("message", "mutated")

	v, _ := r.GetString("message")
	assert.Equal(t, "a", v)
	v, _ = c.GetString("message")
	assert.Equal(t, "mutated", v)
}
