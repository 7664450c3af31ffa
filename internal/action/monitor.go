package action

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocarina/gocsv"
)

// Stats is a point-in-time view of one particle's action telemetry.
type Stats struct {
	Name           string  `csv:"name" json:"name"`
	Calls          int64   `csv:"calls" json:"calls"`
	Noise          int64   `csv:"noise" json:"noise"`
	InnerFallbacks int64   `csv:"inner_fallbacks" json:"inner_fallbacks"`
	OuterFallbacks int64   `csv:"outer_fallbacks" json:"outer_fallbacks"`
	SlowCalls      int64   `csv:"slow_calls" json:"slow_calls"`
	TotalMicros    int64   `csv:"total_us" json:"total_us"`
	MaxMicros      int64   `csv:"max_us" json:"max_us"`
	MeanMicros     float64 `csv:"mean_us" json:"mean_us"`
}

type counters struct {
	calls          atomic.Int64
	noise          atomic.Int64
	innerFallbacks atomic.Int64
	outerFallbacks atomic.Int64
	slowCalls      atomic.Int64
	totalNanos     atomic.Int64
	maxNanos       atomic.Int64
}

func (c *counters) record(d time.Duration) {
	n := int64(d)
	c.totalNanos.Add(n)
	for {
		cur := c.maxNanos.Load()
		if n <= cur || c.maxNanos.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Monitor aggregates per-particle telemetry. Counters are updated from the
// tick loop and may be read from any goroutine.
type Monitor struct {
	mu     sync.RWMutex
	byName map[string]*counters
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{byName: make(map[string]*counters)}
}

// counters returns the counters for name, creating them on first use.
// Re-wrapping a particle keeps its history.
func (m *Monitor) counters(name string) *counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byName[name]
	if !ok {
		c = &counters{}
		m.byName[name] = c
	}
	return c
}

// Stats returns the telemetry for one particle.
func (m *Monitor) Stats(name string) (Stats, bool) {
	m.mu.RLock()
	c, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return snapshot(name, c), true
}

// Snapshot returns the telemetry of every particle, sorted by name.
func (m *Monitor) Snapshot() []Stats {
	m.mu.RLock()
	out := make([]Stats, 0, len(m.byName))
	for name, c := range m.byName {
		out = append(out, snapshot(name, c))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// WriteCSV writes the snapshot as CSV with a header row.
func (m *Monitor) WriteCSV(w io.Writer) error {
	return gocsv.Marshal(m.Snapshot(), w)
}

func snapshot(name string, c *counters) Stats {
	s := Stats{
		Name:           name,
		Calls:          c.calls.Load(),
		Noise:          c.noise.Load(),
		InnerFallbacks: c.innerFallbacks.Load(),
		OuterFallbacks: c.outerFallbacks.Load(),
		SlowCalls:      c.slowCalls.Load(),
		TotalMicros:    time.Duration(c.totalNanos.Load()).Microseconds(),
		MaxMicros:      time.Duration(c.maxNanos.Load()).Microseconds(),
	}
	if s.Calls > 0 {
		s.MeanMicros = float64(c.totalNanos.Load()) / float64(s.Calls) / 1e3
	}
	return s
}
