package output

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/arrowstream/logflow/internal/component"
)

// Memory is an Output that appends every rendered payload to an
// in-process slice, observable by tests and embedders. fail_first_n
// lets tests exercise the channel's retry path by failing the first N
// write attempts before succeeding.
type Memory struct {
	mu          sync.Mutex
	written     [][]byte
	failFirstN  int
	failAlways  bool
	writeCalls  int
}

func newMemoryFromOptions(opts map[string]string) (Output, error) {
	m := &Memory{}
	if v, ok := opts["fail_first_n"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("memory output: parse fail_first_n: %w", err)
		}
		m.failFirstN = n
	}
	if opts["fail_always"] == "true" {
		m.failAlways = true
	}
	return m, nil
}

func init() {
	Registry.Register("memory", component.TypeSpec[Output]{
		Constructor: newMemoryFromOptions,
		Summary:     "Appends rendered payloads to an in-process slice.",
		Default:     map[string]string{"fail_first_n": "0", "fail_always": "false"},
	})
}

// Start is a no-op.
func (m *Memory) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (m *Memory) Stop(ctx context.Context) error { return nil }

// Write appends payload, unless configured to fail.
func (m *Memory) Write(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.failAlways || m.writeCalls <= m.failFirstN {
		return fmt.Errorf("memory output: simulated write failure (call %d)", m.writeCalls)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.written = append(m.written, cp)
	return nil
}

// Written returns every payload successfully written, in order.
func (m *Memory) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}
