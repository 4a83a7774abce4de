// Package combine implements the replicate combiner: cross-input
// compatibility checks, per-base value accumulation across K replicate
// profiles, and mean/stdev aggregation rounded to the output vector's
// fixed decimal precision.
package combine

import (
	"math"
	"sort"

	"github.com/grailbio/rf/counters"
	"github.com/grailbio/rf/mathx"
	"github.com/grailbio/rf/rferrors"
	"github.com/grailbio/rf/xmlprofile"
)

// Combine merges the K per-replicate Documents for one transcript (all
// sharing transcriptID) into a single combined Document. Cross-input
// disagreement on tool, sequence, or window is fatal for this transcript
// (an *rferrors.ErrCompat, counted in cnt); for non-modcall tools,
// disagreement on scoring, normalization (including the remap flag), or
// offset is fatal too, since averaging reactivities computed by different
// methods would produce a meaningless profile. The "algorithm" header
// attribute is not itself compared across inputs: it is simply always
// written as "Combined" in the output.
func Combine(transcriptID string, inputs []xmlprofile.Document, cnt *counters.Bundle) (xmlprofile.Document, error) {
	if len(inputs) == 0 {
		return xmlprofile.Document{}, rferrors.NewSkipError(transcriptID, rferrors.Missing, "no replicate inputs supplied")
	}
	ref := inputs[0]
	out := ref
	out.Header.Combined = true
	out.Header.Algorithm = "Combined"

	for _, in := range inputs[1:] {
		if in.Header.Tool != ref.Header.Tool {
			cnt.Inc(counters.DiffTool)
			return xmlprofile.Document{}, rferrors.NewCompatError(transcriptID, rferrors.Tool, "tool attribute disagrees across replicates")
		}
		if in.Transcript.Sequence != ref.Transcript.Sequence {
			cnt.Inc(counters.DiffSeq)
			return xmlprofile.Document{}, rferrors.NewCompatError(transcriptID, rferrors.Sequence, "sequence disagrees across replicates")
		}
		if in.Header.Win != ref.Header.Win {
			cnt.Inc(counters.DiffWindow)
			return xmlprofile.Document{}, rferrors.NewCompatError(transcriptID, rferrors.Window, "window size disagrees across replicates")
		}
		if ref.Header.Tool == xmlprofile.ToolModcall {
			continue
		}
		if in.Header.Scoring != ref.Header.Scoring {
			cnt.Inc(counters.DiffScoring)
			return xmlprofile.Document{}, rferrors.NewCompatError(transcriptID, rferrors.Scoring, "scoring method disagrees across replicates")
		}
		if in.Header.Norm != ref.Header.Norm || in.Header.Remap != ref.Header.Remap {
			cnt.Inc(counters.DiffNorm)
			return xmlprofile.Document{}, rferrors.NewCompatError(transcriptID, rferrors.Norm, "normalization method disagrees across replicates")
		}
		if in.Header.Offset != ref.Header.Offset {
			cnt.Inc(counters.DiffOffset)
			return xmlprofile.Document{}, rferrors.NewCompatError(transcriptID, rferrors.Offset, "window offset disagrees across replicates")
		}
	}

	out.Header.Reactive = reactiveUnion(inputs)

	l := len(ref.Transcript.Sequence)
	primary, primaryErr := accumulate(inputs, l, func(t xmlprofile.Transcript) []float64 { return t.Primary })
	out.Transcript.Primary = primary
	out.Transcript.PrimaryError = primaryErr
	out.Transcript.PrimaryTag = ref.Transcript.PrimaryTag

	if ref.Transcript.SecondaryTag != "" {
		secondary, secondaryErr := accumulate(inputs, l, func(t xmlprofile.Transcript) []float64 { return t.Secondary })
		out.Transcript.Secondary = secondary
		out.Transcript.SecondaryError = secondaryErr
		out.Transcript.SecondaryTag = ref.Transcript.SecondaryTag
	}

	cnt.Inc(counters.Succeeded)
	return out, nil
}

// reactiveUnion returns the union of reactive-base characters observed
// across every input's header, sorted for deterministic output.
func reactiveUnion(inputs []xmlprofile.Document) string {
	seen := make(map[byte]bool)
	for _, in := range inputs {
		for i := 0; i < len(in.Header.Reactive); i++ {
			seen[in.Header.Reactive[i]] = true
		}
	}
	chars := make([]byte, 0, len(seen))
	for b := range seen {
		chars = append(chars, b)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return string(chars)
}

// accumulate computes, per position, the mean and population standard
// deviation across the K replicates' vectors, skipping any replicate whose
// value at that position is non-finite (masked). A position masked in
// every replicate is NaN in both outputs.
func accumulate(inputs []xmlprofile.Document, l int, pick func(xmlprofile.Transcript) []float64) ([]float64, []float64) {
	mean := make([]float64, l)
	stdev := make([]float64, l)
	values := make([]float64, 0, len(inputs))
	for i := 0; i < l; i++ {
		values = values[:0]
		for _, in := range inputs {
			v := pick(in.Transcript)
			if i < len(v) && mathx.IsFinite(v[i]) {
				values = append(values, v[i])
			}
		}
		if len(values) == 0 {
			mean[i] = math.NaN()
			stdev[i] = math.NaN()
			continue
		}
		m, _ := mathx.Mean(values)
		sd, _ := mathx.Stdev(values)
		mean[i] = mathx.RoundDecimals(m, xmlprofile.Decimals)
		stdev[i] = mathx.RoundDecimals(sd, xmlprofile.Decimals)
	}
	return mean, stdev
}
