// Package counters implements the shared, mutex-guarded result-counter
// bundle used by all three tools: every worker increments its own counters
// under a single lock held only for the increment.
package counters

import "sync"

// Bundle accumulates per-transcript rejection reasons and successes across
// an arbitrary number of concurrent workers. The zero value is ready to
// use.
type Bundle struct {
	mu     sync.Mutex
	counts map[string]int
}

// Inc increments the named counter by one.
func (b *Bundle) Inc(name string) {
	b.Add(name, 1)
}

// Add increments the named counter by n.
func (b *Bundle) Add(name string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counts == nil {
		b.counts = make(map[string]int)
	}
	b.counts[name] += n
}

// Get returns the current value of the named counter.
func (b *Bundle) Get(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[name]
}

// Snapshot returns a copy of all counters, for deterministic printing.
func (b *Bundle) Snapshot() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}

// Well-known counter names shared across the three tools, one per
// rferrors skip/compat reason plus succeeded/failed.
const (
	Succeeded    = "succeeded"
	LowCoverage  = "incov"
	SeqMismatch  = "seqmismatch"
	Missing      = "missing"
	NonNumeric   = "nonnumeric"
	Failed       = "failed"
	DiffTool     = "difftool"
	DiffSeq      = "diffseq"
	DiffScoring  = "diffscore"
	DiffNorm     = "diffnorm"
	DiffOffset   = "diffoffset"
	DiffWindow   = "diffwin"
)
