package format

import (
	"context"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// JSON re-serializes the Record as compact JSON.
type JSON struct{}

func init() {
	Registry.Register("json", component.TypeSpec[Format]{
		Constructor: func(map[string]string) (Format, error) { return &JSON{}, nil },
		Summary:     "Re-serializes the record as compact JSON.",
	})
}

// Start is a no-op.
func (f *JSON) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (f *JSON) Stop(ctx context.Context) error { return nil }

// Format returns the record's JSON encoding.
func (f *JSON) Format(rec *record.Record) ([]byte, error) {
	return rec.MarshalJSON()
}
