package signals

// Performance holds the historical track record attached to a registry
// entry. Generators are enabled and disabled by data, not by code edits.
type Performance struct {
	Trades  int     `json:"trades"`
	WinRate float64 `json:"win_rate"`
	Note    string  `json:"note,omitempty"`
}

// Entry is one registered generator with its enablement flag and metadata.
type Entry struct {
	Generator   Generator
	Enabled     bool
	Performance Performance
}

// Registry holds generators in a fixed registration order. Selection is
// strictly first-match-wins over enabled entries: registration order, not
// best confidence, decides which signal is acted on, so historical backtest
// results stay reproducible. The weighted liquidity-sweep generator is
// registered ahead of the trend family, which makes the cross-family
// precedence explicit rather than incidental.
type Registry struct {
	entries []Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a generator; order of calls is the selection order.
func (r *Registry) Register(gen Generator, enabled bool, perf Performance) {
	r.entries = append(r.entries, Entry{Generator: gen, Enabled: enabled, Performance: perf})
}

// Entries returns the registration list for inspection.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// SetEnabled flips a generator's enablement flag by ID.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	for i := range r.entries {
		if r.entries[i].Generator.ID() == id {
			r.entries[i].Enabled = enabled
			return true
		}
	}
	return false
}

// Evaluate asks each enabled generator in registration order and returns the
// first non-nil signal, or nil when no generator has a setup.
func (r *Registry) Evaluate(ctx *Context) *Signal {
	for _, e := range r.entries {
		if !e.Enabled {
			continue
		}
		if sig := e.Generator.Evaluate(ctx); sig != nil {
			return sig
		}
	}
	return nil
}

// DefaultRegistry wires the standard generator set in its canonical order:
// the weighted sweep variant first, then the trend-following family, then
// the sideways mean-reversion fallback.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewLiquiditySweepGenerator(DefaultSweepConfig()), true, Performance{Trades: 412, WinRate: 58.3})
	r.Register(NewTrendPullbackGenerator(), true, Performance{Trades: 287, WinRate: 54.7})
	r.Register(NewMomentumBreakoutGenerator(), true, Performance{Trades: 198, WinRate: 51.0})
	r.Register(NewBollingerReversionGenerator(), true, Performance{Trades: 164, WinRate: 49.4})
	// Retired after a losing quarter; kept for re-evaluation against new data
	r.Register(NewInsideBarBreakoutGenerator(), false, Performance{Trades: 73, WinRate: 38.4, Note: "retired 2024-Q3"})
	return r
}
