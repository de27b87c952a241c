package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/structs"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/component/filter"
	"github.com/arrowstream/logflow/internal/component/format"
	"github.com/arrowstream/logflow/internal/component/input"
	"github.com/arrowstream/logflow/internal/component/output"
	"github.com/arrowstream/logflow/internal/component/parser"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Print the registered component schema (input, parser, filter, output, format) as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		schema := map[string][]componentDoc{
			input.Registry.Kind():  kindDocs(input.Registry),
			parser.Registry.Kind(): kindDocs(parser.Registry),
			filter.Registry.Kind(): kindDocs(filter.Registry),
			output.Registry.Kind(): kindDocs(output.Registry),
			format.Registry.Kind(): kindDocs(format.Registry),
		}
		out, err := yaml.Marshal(schema)
		if err != nil {
			return fmt.Errorf("docs: render schema: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// componentDoc is the YAML shape of one registered component type.
type componentDoc struct {
	Name    string         `yaml:"name"`
	Summary string         `yaml:"summary,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// kindDocs renders every registration in one registry, sorted by type
// name so the output is stable across runs.
func kindDocs[T any](reg *component.Registry[T]) []componentDoc {
	specs := reg.Specs()
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]componentDoc, 0, len(names))
	for _, name := range names {
		spec := specs[name]
		docs = append(docs, componentDoc{
			Name:    name,
			Summary: spec.Summary,
			Options: defaultFields(spec.Default),
		})
	}
	return docs
}

// defaultFields renders a TypeSpec.Default value's fields via
// fatih/structs, so every built-in's zero-value option schema is
// discoverable without each component hand-writing a docs renderer.
// Non-struct defaults (e.g. a map[string]string) render as-is.
func defaultFields(def any) map[string]any {
	if def == nil {
		return nil
	}
	if !structs.IsStruct(def) {
		if m, ok := def.(map[string]string); ok {
			out := make(map[string]any, len(m))
			for k, v := range m {
				out[k] = v
			}
			return out
		}
		return nil
	}
	return structs.Map(def)
}
