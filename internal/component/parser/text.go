package parser

import (
	"context"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// Text wraps each raw line as Record{"message": raw}, always also
// keeping the unmodified line under "raw" so input-stage filters (which
// the ingest loop applies to the synthetic {raw: line} record before the
// parser even runs) and parser-stage filters can share field names.
type Text struct {
	MessageField string
}

func newTextFromOptions(opts map[string]string) (Parser, error) {
	field := opts["message_field"]
	if field == "" {
		field = "message"
	}
	return &Text{MessageField: field}, nil
}

func init() {
	Registry.Register("text", component.TypeSpec[Parser]{
		Constructor: newTextFromOptions,
		Summary:     `Wraps the raw line as Record{"message": raw}.`,
		Default:     Text{MessageField: "message"},
	})
}

// Start is a no-op.
func (p *Text) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (p *Text) Stop(ctx context.Context) error { return nil }

// Parse never drops a line; every raw input becomes a record.
func (p *Text) Parse(raw string) (*record.Record, bool, error) {
	rec := record.New()
	rec.Set(p.MessageField, raw)
	rec.Set("raw", raw)
	return rec, true, nil
}
