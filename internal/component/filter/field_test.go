package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowstream/logflow/internal/record"
)

func testRecord(t *testing.T, fields map[string]any) *record.Record {
	t.Helper()
	return record.FromMap(fields)
}

func newField(t *testing.T, opts map[string]string) Filter {
	t.Helper()
	f, err := newFieldFromOptions(opts)
	require.NoError(t, err)
	return f
}

func TestFieldRequiresFieldOption(t *testing.T) {
	_, err := newFieldFromOptions(map[string]string{"op": "cmp", "value": "x"})
	assert.Error(t, err)
}

func TestFieldCmp(t *testing.T) {
	f := newField(t, map[string]string{"field": "level", "op": "cmp", "value": "info"})

	allow, err := f.Allow(testRecord(t, map[string]any{"level": "info"}))
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = f.Allow(testRecord(t, map[string]any{"level": "debug"}))
	require.NoError(t, err)
	assert.False(t, allow)

	// Missing field never matches.
	allow, err = f.Allow(testRecord(t, map[string]any{"message": "x"}))
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestFieldContains(t *testing.T) {
	f := newField(t, map[string]string{"field": "raw", "op": "contains", "value": "ERROR"})

	allow, err := f.Allow(testRecord(t, map[string]any{"raw": "ERROR: boom"}))
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = f.Allow(testRecord(t, map[string]any{"raw": "Info: hello"}))
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestFieldInRange(t *testing.T) {
	f := newField(t, map[string]string{"field": "status", "op": "in_range", "min": "400", "max": "499"})

	allow, err := f.Allow(testRecord(t, map[string]any{"status": float64(404)}))
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = f.Allow(testRecord(t, map[string]any{"status": float64(200)}))
	require.NoError(t, err)
	assert.False(t, allow)

	// Numeric strings coerce, matching the all-string values the INI
	// loader produces.
	allow, err = f.Allow(testRecord(t, map[string]any{"status": "418"}))
	require.NoError(t, err)
	assert.True(t, allow)

	// Non-numeric values never match.
	allow, err = f.Allow(testRecord(t, map[string]any{"status": "teapot"}))
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestFieldMatches(t *testing.T) {
	f := newField(t, map[string]string{"field": "host", "op": "matches", "value": `^web-\d+$`})

	allow, err := f.Allow(testRecord(t, map[string]any{"host": "web-12"}))
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = f.Allow(testRecord(t, map[string]any{"host": "db-1"}))
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestFieldMatchesRejectsBadPattern(t *testing.T) {
	_, err := newFieldFromOptions(map[string]string{"field": "host", "op": "matches", "value": "("})
	assert.Error(t, err)
}

func TestFieldTypeCheck(t *testing.T) {
	f := newField(t, map[string]string{"field": "count", "op": "type_check", "value": "number"})

	allow, err := f.Allow(testRecord(t, map[string]any{"count": float64(3)}))
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = f.Allow(testRecord(t, map[string]any{"count": "three"}))
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestFieldNegate(t *testing.T) {
	f := newField(t, map[string]string{"field": "level", "op": "cmp", "value": "debug", "negate": "true"})

	allow, err := f.Allow(testRecord(t, map[string]any{"level": "info"}))
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = f.Allow(testRecord(t, map[string]any{"level": "debug"}))
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestFieldNestedPath(t *testing.T) {
	f := newField(t, map[string]string{"field": "user.ip", "op": "cmp", "value": "10.0.0.1"})

	allow, err := f.Allow(testRecord(t, map[string]any{"user": map[string]any{"ip": "10.0.0.1"}}))
	require.NoError(t, err)
	assert.True(t, allow)
}
