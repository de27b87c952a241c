package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/component/output"
	"github.com/arrowstream/logflow/internal/config"
	"github.com/arrowstream/logflow/internal/logx"
	"github.com/arrowstream/logflow/internal/metrics"
	"github.com/arrowstream/logflow/internal/supervisor"
)

func flowConfig(name, line, channel string) config.FlowConfig {
	return config.FlowConfig{
		Name:    name,
		Input:   component.Config{Type: "memory", Options: map[string]string{"lines": line}},
		Parser:  component.Config{Type: "json"},
		Output:  component.Config{Type: "memory"},
		Channel: channel,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not satisfied before timeout")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestSharedChannelSurvivesSiblingStop: two flows share one named
// channel; stopping one via StopFlow must not disturb the other, and
// the channel is only released once both have stopped.
func TestSharedChannelSurvivesSiblingStop(t *testing.T) {
	rc := &config.RuntimeConfig{
		Flows: []config.FlowConfig{
			flowConfig("a", `{"message":"from-a","level":"info"}`, "shared"),
			flowConfig("b", `{"message":"from-b","level":"info"}`, "shared"),
		},
		Channels: map[string]config.ChannelConfig{
			"shared": {Name: "shared", MaxSize: 100, AckTimeout: 10 * time.Second, RetryLimit: 3},
		},
	}

	m := metrics.New()
	sup := supervisor.New(supervisor.Options{Logger: logx.Nop(), Metrics: m})
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, rc))

	waitFor(t, 2*time.Second, func() bool {
		return len(flowOutput(t, sup, "a").(*output.Memory).Written()) >= 1 &&
			len(flowOutput(t, sup, "b").(*output.Memory).Written()) >= 1
	})

	require.NoError(t, sup.StopFlow(ctx, "a"))

	remaining := sup.Flows()
	require.Len(t, remaining, 1)
	assert.Equal(t, "b", remaining[0].Name())

	require.NoError(t, sup.StopFlow(ctx, "b"))
	assert.Empty(t, sup.Flows())
}

func flowOutput(t *testing.T, sup *supervisor.Supervisor, name string) output.Output {
	t.Helper()
	for _, fl := range sup.Flows() {
		if fl.Name() == name {
			return fl.Output()
		}
	}
	t.Fatalf("no flow named %q", name)
	return nil
}

// TestStartUnwindsOnFailure: if one flow fails to build, any flow
// already started (and any shared channel already created) is
// stopped/released before Start returns its error.
func TestStartUnwindsOnFailure(t *testing.T) {
	rc := &config.RuntimeConfig{
		Flows: []config.FlowConfig{
			flowConfig("ok", `{"message":"fine","level":"info"}`, ""),
			{
				Name:   "broken",
				Input:  component.Config{Type: "memory"},
				Parser: component.Config{Type: "json"},
				Output: component.Config{Type: "does-not-exist"},
			},
		},
	}
	sup := supervisor.New(supervisor.Options{Logger: logx.Nop()})
	err := sup.Start(context.Background(), rc)
	require.Error(t, err)
	assert.Empty(t, sup.Flows())
}
