package input

import (
	"context"
	"strings"
	"sync"

	"github.com/arrowstream/logflow/internal/component"
)

// MemoryConfig configures the built-in memory input: a fixed, in-process
// backlog of lines, consumed once. Since a flat option map has no
// natural list syntax, Lines is set via a single newline-joined "lines"
// option, which is how tests in this module configure it; Go callers
// can instead pass the lines to NewMemory directly.
type MemoryConfig struct {
	Lines []string
}

// Memory is an InputDriver that replays a preloaded slice of lines and
// then reports exhaustion. Safe for concurrent Read calls, though a flow
// only ever has one ingest loop calling it.
type Memory struct {
	mu     sync.Mutex
	lines  []string
	cursor int
	// Feed, if non-nil, is consulted after the initial backlog is
	// drained, allowing tests and embedders to push additional lines
	// without recreating the driver.
	Feed chan string
}

// NewMemory constructs a Memory driver over a fixed backlog.
func NewMemory(lines []string) *Memory {
	cp := make([]string, len(lines))
	copy(cp, lines)
	return &Memory{lines: cp}
}

func newMemoryFromOptions(opts map[string]string) (Driver, error) {
	conf := MemoryConfig{}
	if raw, ok := opts["lines"]; ok && raw != "" {
		conf.Lines = strings.Split(raw, "\n")
	}
	return NewMemory(conf.Lines), nil
}

func init() {
	Registry.Register("memory", component.TypeSpec[Driver]{
		Constructor: newMemoryFromOptions,
		Summary:     "Replays a fixed, in-process backlog of lines; for tests and embedders.",
		Default:     MemoryConfig{},
	})
}

// Push appends a line to the backlog at runtime. A line pushed after
// Read has reported exhaustion is never read, because the ingest loop
// stops at exhaustion; Feed is the way to stream lines into a running
// flow.
func (m *Memory) Push(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, line)
}

// Start is a no-op; the memory driver has no external resources to
// acquire.
func (m *Memory) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (m *Memory) Stop(ctx context.Context) error { return nil }

// Read returns the next preloaded line, then blocks on Feed (if set) or
// reports exhaustion.
func (m *Memory) Read(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	if m.cursor < len(m.lines) {
		line := m.lines[m.cursor]
		m.cursor++
		m.mu.Unlock()
		return line, true, nil
	}
	feed := m.Feed
	m.mu.Unlock()

	if feed == nil {
		return "", false, ErrExhausted
	}
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case line, ok := <-feed:
		if !ok {
			return "", false, ErrExhausted
		}
		return line, true, nil
	}
}
