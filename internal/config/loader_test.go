package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowstream/logflow/internal/component/filter"
)

func TestLoadStringMinimalFlow(t *testing.T) {
	rc, err := LoadString(`
[flow.main]
input.type = memory
input.lines = a
parser.type = json
output.type = memory
`)
	require.NoError(t, err)
	require.Len(t, rc.Flows, 1)
	fc := rc.Flows[0]
	assert.Equal(t, "main", fc.Name)
	assert.Equal(t, "memory", fc.Input.Type)
	assert.Equal(t, "json", fc.Parser.Type)
	assert.Equal(t, "memory", fc.Output.Type)
	assert.Empty(t, fc.Channel)
	assert.Empty(t, fc.Filters)
}

func TestLoadStringMissingInputType(t *testing.T) {
	_, err := LoadString(`
[flow.main]
parser.type = json
output.type = memory
`)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "input.type", cerr.Option)
}

func TestLoadStringZeroFlowsIsError(t *testing.T) {
	_, err := LoadString(`[settings]
log_level = debug
`)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
}

func TestLoadStringFilterRoutingAndOrdering(t *testing.T) {
	rc, err := LoadString(`
[flow.main]
input.type = memory
parser.type = json
output.type = memory
filter.zeta.type = field
filter.zeta.stage = output
filter.zeta.field = level
filter.alpha.type = field
filter.alpha.field = level
filter.alpha.op = cmp
filter.alpha.value = info
`)
	require.NoError(t, err)
	fc := rc.Flows[0]
	require.Len(t, fc.Filters, 2)
	// Ordered lexicographically by name within a flow, independent of
	// declaration order.
	assert.Equal(t, "alpha", fc.Filters[0].Name)
	assert.Equal(t, filter.StageParser, fc.Filters[0].Stage) // default stage
	assert.Equal(t, "zeta", fc.Filters[1].Name)
	assert.Equal(t, filter.StageOutput, fc.Filters[1].Stage)
}

func TestLoadStringBareFilterFallsIntoDefault(t *testing.T) {
	rc, err := LoadString(`
[flow.main]
input.type = memory
parser.type = json
output.type = memory
filter.type = field
filter.field = level
filter.op = cmp
filter.value = info
`)
	require.NoError(t, err)
	require.Len(t, rc.Flows[0].Filters, 1)
	assert.Equal(t, "default", rc.Flows[0].Filters[0].Name)
	assert.Equal(t, "info", rc.Flows[0].Filters[0].Component.Options["value"])
}

func TestLoadStringFilterMissingTypeIsError(t *testing.T) {
	_, err := LoadString(`
[flow.main]
input.type = memory
parser.type = json
output.type = memory
filter.broken.field = level
`)
	require.Error(t, err)
}

func TestLoadStringFilterInvalidStageIsError(t *testing.T) {
	_, err := LoadString(`
[flow.main]
input.type = memory
parser.type = json
output.type = memory
filter.broken.type = field
filter.broken.stage = nowhere
`)
	require.Error(t, err)
}

func TestLoadStringChannelDefaultsAndOverrides(t *testing.T) {
	rc, err := LoadString(`
[channel.shared]
maxsize = 50
ack_timeout = 2.5
retry_limit = 1

[flow.main]
input.type = memory
parser.type = json
output.type = memory
channel = shared
`)
	require.NoError(t, err)
	cc := rc.ChannelConfigFor("shared")
	assert.Equal(t, 50, cc.MaxSize)
	assert.Equal(t, 2500*time.Millisecond, cc.AckTimeout)
	assert.Equal(t, 1, cc.RetryLimit)

	def := rc.ChannelConfigFor("unreferenced")
	assert.Equal(t, 1000, def.MaxSize)
	assert.Equal(t, 30*time.Second, def.AckTimeout)
	assert.Equal(t, 3, def.RetryLimit)
}

func TestLoadStringChannelNonNumericIsError(t *testing.T) {
	_, err := LoadString(`
[channel.shared]
maxsize = not-a-number

[flow.main]
input.type = memory
parser.type = json
output.type = memory
`)
	require.Error(t, err)
}

func TestLoadWithIncludeGlob(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.ini")
	require.NoError(t, os.WriteFile(mainPath, []byte(`
[use]
include = conf.d/*.ini
`), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conf.d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf.d", "main.ini"), []byte(`
[flow.a]
input.type = memory
parser.type = json
output.type = memory
`), 0o644))

	rc, err := Load(mainPath)
	require.NoError(t, err)
	require.Len(t, rc.Flows, 1)
	assert.Equal(t, "a", rc.Flows[0].Name)
}

func TestLoadStringOutputFormatAndSettings(t *testing.T) {
	rc, err := LoadString(`
[settings]
log_level = debug
metrics_addr = 127.0.0.1:9090

[flow.main]
input.type = memory
parser.type = json
output.type = memory
output.format = text
format.template = {message}
`)
	require.NoError(t, err)
	assert.Equal(t, "debug", rc.Settings["log_level"])
	assert.Equal(t, "127.0.0.1:9090", rc.Settings["metrics_addr"])
	fc := rc.Flows[0]
	assert.Equal(t, "text", fc.OutputFormat)
	assert.Equal(t, "{message}", fc.FormatOptions["template"])
}
