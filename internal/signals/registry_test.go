package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	id     string
	signal *Signal
	calls  int
}

func (s *stubGenerator) ID() string { return s.id }

func (s *stubGenerator) Evaluate(_ *Context) *Signal {
	s.calls++
	return s.signal
}

func TestRegistryFirstMatchWins(t *testing.T) {
	first := &stubGenerator{id: "first", signal: &Signal{PatternID: "first"}}
	second := &stubGenerator{id: "second", signal: &Signal{PatternID: "second"}}

	r := NewRegistry()
	r.Register(first, true, Performance{})
	r.Register(second, true, Performance{})

	sig := r.Evaluate(&Context{})
	require.NotNil(t, sig)
	assert.Equal(t, "first", sig.PatternID)
	assert.Equal(t, 0, second.calls, "later generators must not be consulted after a match")
}

func TestRegistrySkipsDisabled(t *testing.T) {
	disabled := &stubGenerator{id: "disabled", signal: &Signal{PatternID: "disabled"}}
	enabled := &stubGenerator{id: "enabled", signal: &Signal{PatternID: "enabled"}}

	r := NewRegistry()
	r.Register(disabled, false, Performance{})
	r.Register(enabled, true, Performance{})

	sig := r.Evaluate(&Context{})
	require.NotNil(t, sig)
	assert.Equal(t, "enabled", sig.PatternID)
	assert.Equal(t, 0, disabled.calls)
}

func TestRegistryNoMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubGenerator{id: "a"}, true, Performance{})
	assert.Nil(t, r.Evaluate(&Context{}))
}

func TestRegistrySetEnabled(t *testing.T) {
	gen := &stubGenerator{id: "toggle", signal: &Signal{PatternID: "toggle"}}
	r := NewRegistry()
	r.Register(gen, false, Performance{})

	assert.Nil(t, r.Evaluate(&Context{}))
	assert.True(t, r.SetEnabled("toggle", true))
	require.NotNil(t, r.Evaluate(&Context{}))
	assert.False(t, r.SetEnabled("missing", true))
}

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry()
	entries := r.Entries()
	require.Len(t, entries, 5)

	assert.Equal(t, "liquidity_sweep", entries[0].Generator.ID())
	assert.True(t, entries[0].Enabled)
	assert.False(t, entries[4].Enabled, "inside bar breakout ships disabled")
	assert.Equal(t, "retired 2024-Q3", entries[4].Performance.Note)
}
