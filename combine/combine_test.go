package combine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/rf/combine"
	"github.com/grailbio/rf/counters"
	"github.com/grailbio/rf/rferrors"
	"github.com/grailbio/rf/xmlprofile"
)

func profile(scoring string, values []float64) xmlprofile.Document {
	return profileReactive(scoring, "N", values)
}

func profileReactive(scoring, reactive string, values []float64) xmlprofile.Document {
	return xmlprofile.Document{
		Header: xmlprofile.Header{
			Tool:     xmlprofile.ToolNorm,
			Scoring:  scoring,
			Norm:     "boxplot",
			Win:      "50",
			Offset:   "50",
			Reactive: reactive,
		},
		Transcript: xmlprofile.Transcript{
			ID:         "tx1",
			Length:     len(values),
			Sequence:   "ACGUACGUAC"[:len(values)],
			PrimaryTag: "reactivity",
			Primary:    values,
		},
	}
}

// TestCombineUnionsReactiveBases checks that the combined header's reactive
// set is the union of every input's, not just the first input's.
func TestCombineUnionsReactiveBases(t *testing.T) {
	vals := []float64{0, 0.5, 1, 0.2}
	inputs := []xmlprofile.Document{
		profileReactive("ding", "AC", vals),
		profileReactive("ding", "GU", vals),
	}
	var cnt counters.Bundle
	out, err := combine.Combine("tx1", inputs, &cnt)
	require.NoError(t, err)
	require.Equal(t, "ACGU", out.Header.Reactive)
}

// TestCombineIdenticalReplicatesYieldZeroStdev checks that three identical
// replicate profiles combine with zero stdev and no rejections.
func TestCombineIdenticalReplicatesYieldZeroStdev(t *testing.T) {
	vals := []float64{0, 0.5, 1, 0.2, 0.3, 0.1, 0, 0.9, 0.4, 0.6}
	inputs := []xmlprofile.Document{profile("ding", vals), profile("ding", vals), profile("ding", vals)}

	var cnt counters.Bundle
	out, err := combine.Combine("tx1", inputs, &cnt)
	require.NoError(t, err)
	require.True(t, out.Header.Combined)
	for i, v := range out.Transcript.PrimaryError {
		require.InDeltaf(t, 0.0, v, 1e-9, "position %d", i)
	}
	for i, v := range out.Transcript.Primary {
		require.InDeltaf(t, vals[i], v, 1e-9, "position %d", i)
	}
	require.Equal(t, 0, cnt.Get(counters.DiffScoring))
	require.Equal(t, 0, cnt.Get(counters.Failed))
	require.Equal(t, 1, cnt.Get(counters.Succeeded))
}

// TestCombineRejectsDifferingScoring checks that two replicates disagreeing
// on scoring method reject the transcript, tallying exactly one diffscore
// rejection reason.
func TestCombineRejectsDifferingScoring(t *testing.T) {
	vals1 := []float64{0, 0.5, 1, 0.2}
	vals2 := []float64{0, 0.6, 0.8, 0.4}
	inputs := []xmlprofile.Document{profile("ding", vals1), profile("rouskin", vals2)}

	var cnt counters.Bundle
	_, err := combine.Combine("tx1", inputs, &cnt)
	require.Error(t, err)
	var compatErr *rferrors.ErrCompat
	require.ErrorAs(t, err, &compatErr)
	require.Equal(t, rferrors.Scoring, compatErr.Reason)
	require.Equal(t, 1, cnt.Get(counters.DiffScoring))
}

func TestCombineRejectsDifferentSequence(t *testing.T) {
	a := profile("ding", []float64{0, 1, 0.5})
	b := profile("ding", []float64{0, 1, 0.5})
	b.Transcript.Sequence = "GGG"

	var cnt counters.Bundle
	_, err := combine.Combine("tx1", []xmlprofile.Document{a, b}, &cnt)
	require.Error(t, err)
	var compatErr *rferrors.ErrCompat
	require.ErrorAs(t, err, &compatErr)
	require.Equal(t, rferrors.Sequence, compatErr.Reason)
	require.Equal(t, 1, cnt.Get(counters.DiffSeq))
}
