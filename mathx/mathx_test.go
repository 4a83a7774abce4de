package mathx_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/rf/mathx"
)

func TestMeanStdev(t *testing.T) {
	tests := []struct {
		name      string
		x         []float64
		wantMean  float64
		wantStdev float64
		wantOK    bool
	}{
		{"basic", []float64{1, 2, 3, 4}, 2.5, 1.1180339887498949, true},
		{"empty", nil, 0, 0, false},
		{"non-numeric", []float64{1, math.NaN(), 3}, 0, 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mean, ok := mathx.Mean(test.x)
			require.Equal(t, test.wantOK, ok)
			if ok {
				require.InDelta(t, test.wantMean, mean, 1e-9)
			}
			stdev, ok := mathx.Stdev(test.x)
			require.Equal(t, test.wantOK, ok)
			if ok {
				require.InDelta(t, test.wantStdev, stdev, 1e-9)
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	require.InDelta(t, 1.0, mathx.Quantile(x, 0), 1e-9)
	require.InDelta(t, 5.0, mathx.Quantile(x, 1), 1e-9)
	require.InDelta(t, 3.0, mathx.Quantile(x, 0.5), 1e-9)
	require.Equal(t, 0.0, mathx.Quantile(nil, 0.5))
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	require.Equal(t, 1.0, mathx.RoundHalfAwayFromZero(0.5))
	require.Equal(t, -1.0, mathx.RoundHalfAwayFromZero(-0.5))
	require.Equal(t, 2.0, mathx.RoundHalfAwayFromZero(1.5))
	require.Equal(t, 0.0, mathx.RoundHalfAwayFromZero(0.4))
}

func TestRoundDecimals(t *testing.T) {
	require.Equal(t, 1.235, mathx.RoundDecimals(1.2346, 3))
	require.Equal(t, 1.23, mathx.RoundDecimals(1.225, 2))
	require.True(t, mathx.IsFinite(mathx.RoundDecimals(1.0, 3)))
}

func TestBHAdjustMonotonicity(t *testing.T) {
	p := []float64{0.01, 0.04, 0.03, 0.005, 0.5}
	adj := mathx.BHAdjust(p)

	type ranked struct {
		p, adj float64
	}
	var rs []ranked
	for i := range p {
		rs = append(rs, ranked{p[i], adj[i]})
	}
	// Sort by original p ascending and check adjusted values never decrease.
	for i := 0; i < len(rs); i++ {
		for j := i + 1; j < len(rs); j++ {
			if rs[j].p < rs[i].p {
				rs[i], rs[j] = rs[j], rs[i]
			}
		}
	}
	for i := 1; i < len(rs); i++ {
		require.GreaterOrEqual(t, rs[i].adj, rs[i-1].adj-1e-12)
	}
	for _, a := range adj {
		require.GreaterOrEqual(t, a, 0.0)
		require.LessOrEqual(t, a, 1.0)
	}
}

func TestBHAdjustCarriesNaN(t *testing.T) {
	p := []float64{0.01, math.NaN(), 0.02}
	adj := mathx.BHAdjust(p)
	require.True(t, math.IsNaN(adj[1]))
	require.False(t, math.IsNaN(adj[0]))
	require.False(t, math.IsNaN(adj[2]))
}

func TestCombineP(t *testing.T) {
	same := []float64{0.5, 0.5, 0.5}
	s := mathx.CombineP(same, mathx.Stouffer)
	require.InDelta(t, 0.5, s, 0.02)

	small := []float64{0.01, 0.01, 0.01}
	f := mathx.CombineP(small, mathx.Fisher)
	require.Less(t, f, 0.01)
	require.Greater(t, f, 0.0)
}

func TestFisherExactEnrichment(t *testing.T) {
	// Strong enrichment: a large relative to its row/col totals.
	p := mathx.FisherExact(100, 10, 10, 100, 1)
	require.Less(t, p, 0.001)

	// No enrichment: symmetric table.
	p2 := mathx.FisherExact(50, 50, 50, 50, 1)
	require.Greater(t, p2, 0.4)
}

func TestMapRange(t *testing.T) {
	require.InDelta(t, 0.5, mathx.MapRange(0, 1, 0, 1, 0.5), 1e-9)
	require.InDelta(t, 0.175, mathx.MapRange(0, 0.25, 0, 0.35, 0.125), 1e-9)
}
