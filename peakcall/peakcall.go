// Package peakcall implements the sliding-window enrichment caller:
// per-window Fisher's exact test against a (possibly implicit) background,
// Benjamini-Hochberg adjustment, and adjacent-window merging into peak
// records.
package peakcall

import (
	"math"
	"sort"

	"github.com/grailbio/rf/mathx"
	"github.com/grailbio/rf/rferrors"
)

// Params bundles the peak caller's tunables.
type Params struct {
	Window        int     // W, >= 10
	Offset        int     // O
	Enrichment    float64 // E, log2 minimum; default 3
	PValue        float64 // P, default 0.05
	Pseudocount   float64 // pc
	MergeDistance int     // M

	MeanCoverageThreshold   float64
	MedianCoverageThreshold float64
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Window:        150,
		Offset:        10,
		Enrichment:    3,
		PValue:        0.05,
		Pseudocount:   1,
		MergeDistance: 0,
	}
}

// Peak is one enriched region.
type Peak struct {
	Start, End int // half-open: 0 <= Start <= End <= L
	Score      float64
	PValue     float64
}

type window struct {
	start, end int // half-open
}

// tileWindows lays out windows of length w starting at 0 with stride o,
// with the final window clamped so its last covered base is L-1.
func tileWindows(l, w, o int) []window {
	if l <= 0 || w <= 0 {
		return nil
	}
	var windows []window
	for i := 0; i+w <= l; i += o {
		windows = append(windows, window{i, i + w})
	}
	last := l - 1
	clampedStart := last - w
	if clampedStart < 0 {
		clampedStart = 0
	}
	if len(windows) == 0 || windows[len(windows)-1].end-1 != last {
		windows = append(windows, window{clampedStart, l})
	}
	return windows
}

// windowStat holds the per-window intermediate values needed before BH
// adjustment can run across the whole transcript.
type windowStat struct {
	win   window
	score float64
	p     float64
}

// Call runs the peak caller on one transcript. ipCoverage is required;
// controlCoverage is nil when no control sample is supplied.
func Call(transcriptID string, ipCoverage, controlCoverage []uint32, p Params) ([]Peak, error) {
	l := len(ipCoverage)
	if !passesCoverage(ipCoverage, p) {
		return nil, rferrors.NewSkipError(transcriptID, rferrors.LowCoverage, "IP coverage below thresholds")
	}
	if controlCoverage != nil && !passesCoverage(controlCoverage, p) {
		return nil, rferrors.NewSkipError(transcriptID, rferrors.LowCoverage, "control coverage below thresholds")
	}

	windows := tileWindows(l, p.Window, p.Offset)
	if len(windows) == 0 {
		return nil, nil
	}

	mi := medianU32(ipCoverage)
	var mc float64
	if controlCoverage != nil {
		mc = medianU32(controlCoverage)
	} else {
		mc = mi
	}

	stats := make([]windowStat, len(windows))
	ibar := make([]float64, len(windows))
	for i, w := range windows {
		ibar[i] = meanU32(ipCoverage[w.start:w.end])
	}
	var meanIbarAcrossWindows float64
	if controlCoverage == nil {
		meanIbarAcrossWindows, _ = mathx.Mean(ibar)
	}

	pvals := make([]float64, len(windows))
	for i, w := range windows {
		var cbar float64
		if controlCoverage != nil {
			cbar = meanU32(controlCoverage[w.start:w.end])
		} else {
			cbar = meanIbarAcrossWindows
		}
		z := enrichmentScore(ibar[i], mi, cbar, mc, p.Pseudocount, controlCoverage != nil)
		pv := mathx.FisherExact(
			int(mathx.RoundHalfAwayFromZero(ibar[i])),
			int(mathx.RoundHalfAwayFromZero(mi)),
			int(mathx.RoundHalfAwayFromZero(cbar)),
			int(mathx.RoundHalfAwayFromZero(mc)),
			1,
		)
		stats[i] = windowStat{win: w, score: z}
		pvals[i] = pv
	}
	adjusted := mathx.BHAdjust(pvals)
	for i := range stats {
		stats[i].p = adjusted[i]
	}

	var kept []windowStat
	for _, st := range stats {
		if mathx.IsFinite(st.p) && st.p < p.PValue && st.score >= p.Enrichment {
			kept = append(kept, st)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].win.start < kept[j].win.start })

	return mergeWindows(kept, p.MergeDistance), nil
}

func enrichmentScore(ibar, mi, cbar, mc, pc float64, hasControl bool) float64 {
	numerator := (ibar + pc) / (mi + pc)
	if !hasControl {
		return math.Log2(numerator)
	}
	denominator := (cbar + pc) / (mc + pc)
	return math.Log2(numerator / denominator)
}

// mergeWindows merges adjacent/overlapping kept windows (within
// mergeDistance) into one Peak whose score is the mean of the merged
// windows' scores and whose p-value is their Stouffer combination.
func mergeWindows(kept []windowStat, mergeDistance int) []Peak {
	if len(kept) == 0 {
		return nil
	}
	var peaks []Peak
	curStart, curEnd := kept[0].win.start, kept[0].win.end
	scores := []float64{kept[0].score}
	ps := []float64{kept[0].p}

	flush := func() {
		score, _ := mathx.Mean(scores)
		peaks = append(peaks, Peak{
			Start:  curStart,
			End:    curEnd,
			Score:  score,
			PValue: mathx.CombineP(ps, mathx.Stouffer),
		})
	}

	for _, st := range kept[1:] {
		if st.win.start <= curEnd+mergeDistance {
			if st.win.end > curEnd {
				curEnd = st.win.end
			}
			scores = append(scores, st.score)
			ps = append(ps, st.p)
			continue
		}
		flush()
		curStart, curEnd = st.win.start, st.win.end
		scores = []float64{st.score}
		ps = []float64{st.p}
	}
	flush()
	return peaks
}

func passesCoverage(cov []uint32, p Params) bool {
	return meanU32(cov) >= p.MeanCoverageThreshold && medianU32(cov) >= p.MedianCoverageThreshold
}

func meanU32(x []uint32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	return sum / float64(len(x))
}

func medianU32(x []uint32) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	sorted := make([]uint32, n)
	copy(sorted, x)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := n / 2
	if n%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
