package format

import (
	"fmt"
	"strings"

	"context"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// Text renders a record against a `{field}`-style template: every
// `{dotted.path}` token is substituted with the record's field value
// (rendered with record.GetString, so nested paths work the same way
// Field filters address them); an unresolved token is replaced with an
// empty string rather than failing, so a flow never deadlocks because an
// input-stage filter forwarded a record missing one optional field.
type Text struct {
	Template string
}

// TextConfig is the typed option shape decoded at construction.
type TextConfig struct {
	Template string `mapstructure:"template"`
}

func newTextFromOptions(opts map[string]string) (Format, error) {
	tmpl, ok := opts["template"]
	if !ok || tmpl == "" {
		return nil, fmt.Errorf("text format: %q option is required", "template")
	}
	return &Text{Template: tmpl}, nil
}

func init() {
	Registry.Register("text", component.TypeSpec[Format]{
		Constructor: newTextFromOptions,
		Summary:     `Renders a record against a "{field}"-style template.`,
		Default:     TextConfig{},
	})
}

// Start is a no-op.
func (f *Text) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (f *Text) Stop(ctx context.Context) error { return nil }

// Format substitutes every {field} token in the template.
func (f *Text) Format(rec *record.Record) ([]byte, error) {
	var b strings.Builder
	tmpl := f.Template
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			break
		}
		close := strings.IndexByte(tmpl[open:], '}')
		if close < 0 {
			b.WriteString(tmpl)
			break
		}
		close += open
		b.WriteString(tmpl[:open])
		field := tmpl[open+1 : close]
		if v, ok := rec.GetString(field); ok {
			b.WriteString(v)
		}
		tmpl = tmpl[close+1:]
	}
	return []byte(b.String()), nil
}
