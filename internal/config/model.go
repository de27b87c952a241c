// Package config loads an operator's INI configuration into an immutable
// RuntimeConfig: one or more flows, named channels, and global settings.
package config

import (
	"time"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/component/filter"
)

// FilterConfig names one filter instance, its stage, and its component
// configuration. Filters are ordered within a stage by Name.
type FilterConfig struct {
	Name      string
	Component component.Config
	Stage     filter.Stage
}

// ChannelConfig describes one named (or anonymous/private) channel.
type ChannelConfig struct {
	Name       string
	MaxSize    int
	AckTimeout time.Duration
	RetryLimit int
}

// FlowConfig describes one flow's full composition.
type FlowConfig struct {
	Name           string
	Input          component.Config
	Parser         component.Config
	Output         component.Config
	OutputFormat   string
	FormatOptions  map[string]string
	Channel        string // empty means "private, owned by this flow"
	Filters        []FilterConfig
}

// RuntimeConfig is the fully validated, immutable description of a
// running process: produced once by the loader and never mutated
// thereafter.
type RuntimeConfig struct {
	Flows    []FlowConfig
	Channels map[string]ChannelConfig
	Settings map[string]string
}

// ChannelConfigFor resolves a channel name against r.Channels, falling
// back to the standard defaults for channels referenced but not
// declared (auto-creation with defaults).
func (r *RuntimeConfig) ChannelConfigFor(name string) ChannelConfig {
	if cc, ok := r.Channels[name]; ok {
		return cc
	}
	return ChannelConfig{
		Name:       name,
		MaxSize:    1000,
		AckTimeout: 30 * time.Second,
		RetryLimit: 3,
	}
}
