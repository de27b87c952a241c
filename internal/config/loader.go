package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/component/filter"
)

// Load reads path and every file matched by an [use] include glob
// (resolved relative to path's directory, merged in sorted order) into a
// single RuntimeConfig.
func Load(path string) (*RuntimeConfig, error) {
	f, err := ini.LoadSources(ini.LoadOptions{}, path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := expandIncludes(f, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return build(f)
}

// LoadString parses an in-memory INI document with no include support;
// used by embedders (public/service) and tests that build configuration
// programmatically rather than from a file tree.
func LoadString(text string) (*RuntimeConfig, error) {
	f, err := ini.Load([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return build(f)
}

func expandIncludes(f *ini.File, dir string) error {
	if !f.HasSection("use") {
		return nil
	}
	sec := f.Section("use")
	if !sec.HasKey("include") {
		return nil
	}
	pattern := sec.Key("include").String()
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return errInvalidValue("use", "include", fmt.Sprintf("invalid glob: %s", err))
	}
	sort.Strings(matches)
	for _, m := range matches {
		if err := f.Append(m); err != nil {
			return fmt.Errorf("config: include %s: %w", m, err)
		}
	}
	return nil
}

func build(f *ini.File) (*RuntimeConfig, error) {
	rc := &RuntimeConfig{
		Channels: map[string]ChannelConfig{},
		Settings: map[string]string{},
	}
	for _, sec := range f.Sections() {
		name := sec.Name()
		switch {
		case name == ini.DefaultSection || name == "use":
			continue
		case name == "settings":
			for _, k := range sec.Keys() {
				rc.Settings[k.Name()] = k.String()
			}
		case strings.HasPrefix(name, "channel."):
			cc, err := buildChannel(strings.TrimPrefix(name, "channel."), sec)
			if err != nil {
				return nil, err
			}
			rc.Channels[cc.Name] = cc
		case strings.HasPrefix(name, "flow."):
			fc, err := buildFlow(strings.TrimPrefix(name, "flow."), sec)
			if err != nil {
				return nil, err
			}
			rc.Flows = append(rc.Flows, fc)
		default:
			// Unknown section: ignored for forward compatibility.
		}
	}
	if len(rc.Flows) == 0 {
		return nil, &Error{Section: "flow.*", Reason: "at least one [flow.<name>] section is required"}
	}
	sort.Slice(rc.Flows, func(i, j int) bool { return rc.Flows[i].Name < rc.Flows[j].Name })
	return rc, nil
}

func buildChannel(name string, sec *ini.Section) (ChannelConfig, error) {
	section := "channel." + name
	cc := ChannelConfig{Name: name, MaxSize: 1000, AckTimeout: 30 * time.Second, RetryLimit: 3}

	if sec.HasKey("maxsize") {
		v, err := sec.Key("maxsize").Int()
		if err != nil {
			return ChannelConfig{}, errInvalidValue(section, "maxsize", "must be an integer")
		}
		if v <= 0 {
			return ChannelConfig{}, errInvalidValue(section, "maxsize", "must be positive")
		}
		cc.MaxSize = v
	}
	if sec.HasKey("ack_timeout") {
		v, err := sec.Key("ack_timeout").Float64()
		if err != nil {
			return ChannelConfig{}, errInvalidValue(section, "ack_timeout", "must be a number of seconds")
		}
		if v <= 0 {
			return ChannelConfig{}, errInvalidValue(section, "ack_timeout", "must be positive")
		}
		cc.AckTimeout = time.Duration(v * float64(time.Second))
	}
	if sec.HasKey("retry_limit") {
		v, err := sec.Key("retry_limit").Int()
		if err != nil {
			return ChannelConfig{}, errInvalidValue(section, "retry_limit", "must be an integer")
		}
		if v < 0 {
			return ChannelConfig{}, errInvalidValue(section, "retry_limit", "must be non-negative")
		}
		cc.RetryLimit = v
	}
	return cc, nil
}

func buildFlow(name string, sec *ini.Section) (FlowConfig, error) {
	section := "flow." + name
	fc := FlowConfig{
		Name:          name,
		Input:         component.Config{Options: map[string]string{}},
		Parser:        component.Config{Options: map[string]string{}},
		Output:        component.Config{Options: map[string]string{}},
		FormatOptions: map[string]string{},
	}
	filterBlocks := map[string]*FilterConfig{}
	var filterOrder []string

	for _, k := range sec.Keys() {
		key := k.Name()
		val := k.String()
		switch {
		case key == "input.type":
			fc.Input.Type = val
		case strings.HasPrefix(key, "input."):
			fc.Input.Options[strings.TrimPrefix(key, "input.")] = val

		case key == "parser.type":
			fc.Parser.Type = val
		case strings.HasPrefix(key, "parser."):
			fc.Parser.Options[strings.TrimPrefix(key, "parser.")] = val

		case key == "output.type":
			fc.Output.Type = val
		case key == "output.format":
			fc.OutputFormat = val
		case strings.HasPrefix(key, "output."):
			fc.Output.Options[strings.TrimPrefix(key, "output.")] = val

		case strings.HasPrefix(key, "format."):
			fc.FormatOptions[strings.TrimPrefix(key, "format.")] = val

		case key == "channel" || key == "channel.name":
			fc.Channel = val

		case key == "filter" || strings.HasPrefix(key, "filter."):
			fname, opt, ok := splitFilterKey(key)
			if !ok {
				continue
			}
			fb, exists := filterBlocks[fname]
			if !exists {
				fb = &FilterConfig{
					Name:      fname,
					Component: component.Config{Options: map[string]string{}},
					Stage:     filter.StageParser,
				}
				filterBlocks[fname] = fb
				filterOrder = append(filterOrder, fname)
			}
			switch opt {
			case "type":
				fb.Component.Type = val
			case "stage":
				st := filter.Stage(val)
				if !st.Valid() {
					return FlowConfig{}, errInvalidValue(section, key, fmt.Sprintf("invalid stage %q", val))
				}
				fb.Stage = st
			default:
				fb.Component.Options[opt] = val
			}

		default:
			// Unknown option: ignored for forward compatibility.
		}
	}

	if fc.Input.Type == "" {
		return FlowConfig{}, errMissingOption(section, "input.type")
	}
	if fc.Parser.Type == "" {
		return FlowConfig{}, errMissingOption(section, "parser.type")
	}
	if fc.Output.Type == "" {
		return FlowConfig{}, errMissingOption(section, "output.type")
	}

	sort.Strings(filterOrder)
	for _, fname := range filterOrder {
		fb := filterBlocks[fname]
		if fb.Component.Type == "" {
			typeKey := "filter." + fname + ".type"
			if fname == "default" {
				typeKey = "filter.type"
			}
			return FlowConfig{}, errMissingOption(section, typeKey)
		}
		fc.Filters = append(fc.Filters, *fb)
	}
	return fc, nil
}

// splitFilterKey routes a "filter..." option name to its filter name and
// option: a bare "filter.<opt>" falls into the filter named "default";
// "filter.<name>.<opt>" routes to the named filter.
func splitFilterKey(key string) (name, opt string, ok bool) {
	rest := strings.TrimPrefix(key, "filter")
	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return "", "", false
	}
	if dot := strings.Index(rest, "."); dot >= 0 {
		return rest[:dot], rest[dot+1:], true
	}
	return "default", rest, true
}
