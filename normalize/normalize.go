// Package normalize implements the windowed, per-base-class normalization
// engine: the 2-8%, 90%-Winsorize, and box-plot normalization rules,
// overlap averaging across sliding windows, and the optional Zarringhalam
// piecewise-linear remap.
package normalize

import (
	"math"
	"sort"

	"github.com/grailbio/rf/config"
	"github.com/grailbio/rf/mathx"
	"github.com/grailbio/rf/rferrors"
)

// window is a half-open position range [Start, End) within a transcript.
type window struct {
	start, end int
}

// tileWindows computes the sliding-window tiling: windows of length w
// starting at 0 with stride o, plus one additional window ending exactly
// at l if the regular tiling doesn't already cover the last base. When
// w==l, a single window [0,l) is produced.
func tileWindows(l, w, o int) []window {
	if w <= 0 || l <= 0 {
		return nil
	}
	var windows []window
	for i := 0; i+w <= l; i += o {
		windows = append(windows, window{i, i + w})
	}
	if len(windows) == 0 || windows[len(windows)-1].end < l {
		start := l - w
		if start < 0 {
			start = 0
		}
		windows = append(windows, window{start, l})
	}
	return windows
}

// Normalize computes the final reactivity vector for one transcript from
// its raw score vector s. treatedCoverage and controlCoverage (nil if no
// control sample was used for scoring) are reapplied as a final per-base
// mask.
func Normalize(transcriptID string, s []float64, sequence string, treatedCoverage, controlCoverage []uint32, cfg config.Params) ([]float64, error) {
	l := len(sequence)
	reactive := cfg.ReactiveSet()
	r := make([]float64, l)

	if cfg.Raw {
		for i := 0; i < l; i++ {
			if i < len(s) && reactive[sequence[i]] {
				r[i] = s[i]
			} else {
				r[i] = math.NaN()
			}
		}
	} else {
		accum := make([][]float64, l)
		w := cfg.ResolvedWindow(l)
		o := cfg.ResolvedOffset(w)
		for _, win := range tileWindows(l, w, o) {
			applyWindow(s, sequence, win, reactive, cfg, accum)
		}
		for i := 0; i < l; i++ {
			r[i] = averageAccumulator(accum[i])
		}
	}

	if cfg.RemapReactivities {
		remapAll(r)
	}

	applyFinalMask(r, treatedCoverage, controlCoverage, cfg.MinBaseCoverage)

	if allNaN(r) {
		return nil, rferrors.NewSkipError(transcriptID, rferrors.LowCoverage, "entire reactivity vector is undefined")
	}
	return r, nil
}

// applyWindow partitions the reactive positions of win into base classes,
// normalizes each class, and appends each class member's contribution to
// accum. Undefined classes (per the method's own rules) contribute
// nothing for this window, rather than an explicit NaN, so that an
// overlapping window's valid contribution still counts.
func applyWindow(s []float64, sequence string, win window, reactive map[byte]bool, cfg config.Params, accum [][]float64) {
	classes := partitionClasses(sequence, win, reactive, cfg.NormIndependent)
	for _, idxs := range classes {
		values := make([]float64, 0, len(idxs))
		for _, idx := range idxs {
			if idx < len(s) && mathx.IsFinite(s[idx]) {
				values = append(values, s[idx])
			}
		}
		normalized, ok := normalizeClass(values, cfg.Norm)
		if !ok {
			continue
		}
		for _, idx := range idxs {
			if idx >= len(s) || !mathx.IsFinite(s[idx]) {
				accum[idx] = append(accum[idx], math.NaN())
				continue
			}
			accum[idx] = append(accum[idx], normalized(s[idx]))
		}
	}
}

// partitionClasses groups the reactive positions of win by base class: one
// class per character of reactive when independent is set, else a single
// class containing every reactive position.
func partitionClasses(sequence string, win window, reactive map[byte]bool, independent bool) map[byte][]int {
	classes := make(map[byte][]int)
	for i := win.start; i < win.end; i++ {
		b := sequence[i]
		if !reactive[b] {
			continue
		}
		key := b
		if !independent {
			key = 0 // single combined class
		}
		classes[key] = append(classes[key], i)
	}
	return classes
}

// normalizeClass returns a function mapping a raw score to its normalized
// value for this class, or ok=false when the class is undefined under the
// selected method.
func normalizeClass(values []float64, method config.NormMethod) (normalized func(float64) float64, ok bool) {
	switch method {
	case config.TwoEightPercent:
		return normalize28(values)
	case config.Winsorize90:
		return normalizeWinsorize90(values)
	default: // BoxPlot
		return normalizeBoxPlot(values)
	}
}

func normalize28(values []float64) (func(float64) float64, bool) {
	k := len(values)
	p2 := int(mathx.RoundHalfAwayFromZero(0.02 * float64(k)))
	p8 := int(mathx.RoundHalfAwayFromZero(0.08 * float64(k)))
	if p8 == 0 {
		return nil, false
	}
	hi := p2 + p8
	if hi >= k {
		return nil, false
	}
	sorted := make([]float64, k)
	copy(sorted, values)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	var sum float64
	for i := p2; i <= hi; i++ {
		sum += sorted[i]
	}
	avg := sum / float64(hi-p2+1)
	if avg <= 0 {
		return nil, false
	}
	return func(v float64) float64 { return floorZero(v / avg) }, true
}

func normalizeWinsorize90(values []float64) (func(float64) float64, bool) {
	q05 := mathx.Quantile(values, 0.05)
	if q05 <= 0 {
		q05 = 0
	}
	q95 := mathx.Quantile(values, 0.95)
	if q95 == 0 {
		return nil, false
	}
	return func(v float64) float64 {
		if v < q05 {
			v = q05
		}
		v /= q95
		if v > 1 {
			v = 1
		}
		return v
	}, true
}

func normalizeBoxPlot(values []float64) (func(float64) float64, bool) {
	k := len(values)
	if k == 0 {
		return nil, false
	}
	q25 := mathx.Quantile(values, 0.25)
	q75 := mathx.Quantile(values, 0.75)
	iqr := q75 - q25
	maxV := q75 + 1.5*iqr

	outliers := 0
	for _, v := range values {
		if v > maxV {
			outliers++
		}
	}
	if k < 50 {
		outliers = int(mathx.RoundHalfAwayFromZero(0.02 * float64(k)))
	}
	if outliers == 0 {
		outliers = 1
	}
	if outliers > k {
		outliers = k
	}

	sorted := make([]float64, k)
	copy(sorted, values)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	remaining := sorted[outliers:]

	var p10 int
	switch {
	case k >= 50 && k < 100:
		p10 = 10
	default:
		p10 = int(mathx.RoundHalfAwayFromZero(0.10 * float64(k)))
	}
	if p10 > len(remaining) {
		p10 = len(remaining)
	}
	if p10 == 0 {
		return nil, false
	}
	var sum float64
	for i := 0; i < p10; i++ {
		sum += remaining[i]
	}
	avg := sum / float64(p10)
	if avg <= 0 {
		return nil, false
	}
	return func(v float64) float64 { return floorZero(v / avg) }, true
}

func floorZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// averageAccumulator returns the mean of acc, or NaN when acc is empty or
// contains a non-numeric (masked) contribution.
func averageAccumulator(acc []float64) float64 {
	if len(acc) == 0 {
		return math.NaN()
	}
	mean, ok := mathx.Mean(acc)
	if !ok {
		return math.NaN()
	}
	return mean
}

// zarringhalamBins defines the Zarringhalam et al. (2012) piecewise-linear
// remap table from normalized reactivity to a pairing-probability-like
// scale.
var zarringhalamBins = []struct {
	inLo, inHi   float64
	outLo, outHi float64
}{
	{0, 0.25, 0, 0.35},
	{0.25, 0.30, 0.35, 0.55},
	{0.30, 0.70, 0.55, 0.85},
	{0.70, math.Inf(1), 0.85, 1.00},
}

// remapAll applies the Zarringhalam remap to every finite value of r,
// in place. The last bin's input upper bound is the maximum finite value
// present in r.
func remapAll(r []float64) {
	maxV := 0.0
	any := false
	for _, v := range r {
		if mathx.IsFinite(v) {
			if !any || v > maxV {
				maxV = v
			}
			any = true
		}
	}
	if !any {
		return
	}
	for i, v := range r {
		if !mathx.IsFinite(v) {
			continue
		}
		r[i] = remapOne(v, maxV)
	}
}

func remapOne(v, maxV float64) float64 {
	for _, bin := range zarringhalamBins {
		hi := bin.inHi
		if math.IsInf(hi, 1) {
			hi = maxV
		}
		if v >= bin.inLo && (v < hi || (hi == maxV && v <= hi)) {
			if hi == bin.inLo {
				return bin.outLo
			}
			return mathx.MapRange(bin.inLo, hi, bin.outLo, bin.outHi, v)
		}
	}
	return v
}

// applyFinalMask forces positions below minBaseCoverage in treatedCoverage
// (or, when present, controlCoverage) to NaN.
func applyFinalMask(r []float64, treatedCoverage, controlCoverage []uint32, minBaseCoverage float64) {
	for i := range r {
		if i < len(treatedCoverage) && float64(treatedCoverage[i]) < minBaseCoverage {
			r[i] = math.NaN()
			continue
		}
		if controlCoverage != nil && i < len(controlCoverage) && float64(controlCoverage[i]) < minBaseCoverage {
			r[i] = math.NaN()
		}
	}
}

func allNaN(r []float64) bool {
	for _, v := range r {
		if mathx.IsFinite(v) {
			return false
		}
	}
	return true
}
