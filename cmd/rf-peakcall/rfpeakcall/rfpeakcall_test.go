package rfpeakcall_test

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/rf/cmd/rf-peakcall/rfpeakcall"
	"github.com/grailbio/rf/peakcall"
	"github.com/grailbio/rf/rcstore"
)

// plateauCoverage builds an L-base coverage vector at a flat baseline with
// a raised plateau of height plateau over [start, start+width).
func plateauCoverage(l, baseline, plateau, start, width int) []uint32 {
	cov := make([]uint32, l)
	for i := range cov {
		cov[i] = uint32(baseline)
	}
	for i := start; i < start+width && i < l; i++ {
		cov[i] = uint32(plateau)
	}
	return cov
}

func readBED(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var rows [][]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	require.NoError(t, sc.Err())
	return rows
}

// TestRunFindsSinglePlateauPeak checks that a single 200-nt plateau at 200x
// against a 10x baseline, no control, yields exactly one peak record
// contained within [400, 600] with score > 3.
func TestRunFindsSinglePlateauPeak(t *testing.T) {
	dir := t.TempDir()
	l := 1000
	seq := strings.Repeat("ACGU", l/4)
	cov := plateauCoverage(l, 10, 200, 400, 200)
	count := make([]uint32, l)

	ipPath := filepath.Join(dir, "ip.rc")
	require.NoError(t, rcstore.WriteRC(ipPath, []rcstore.Entry{{
		Name:     "tx1",
		Sequence: seq,
		Count:    count,
		Coverage: cov,
	}}))

	outPath := filepath.Join(dir, "peaks.bed")
	params := peakcall.DefaultParams()
	params.Window = 150
	params.Offset = 10
	params.Enrichment = 3
	params.PValue = 0.05

	counts, err := rfpeakcall.Run(context.Background(), rfpeakcall.Opts{
		IPPath:     ipPath,
		OutPath:    outPath,
		Processors: 1,
		Params:     params,
	})
	require.NoError(t, err)
	require.Equal(t, 1, counts["succeeded"])

	rows := readBED(t, outPath)
	require.Len(t, rows, 1)
	require.Equal(t, "tx1", rows[0][0])
	start, err := strconv.Atoi(rows[0][1])
	require.NoError(t, err)
	end, err := strconv.Atoi(rows[0][2])
	require.NoError(t, err)
	require.GreaterOrEqual(t, start, 0)
	require.LessOrEqual(t, end, l)
	require.LessOrEqual(t, start, end)
	// the enriched region must lie within the plateau itself
	require.GreaterOrEqual(t, start, 400)
	require.LessOrEqual(t, end, 600)
	score, err := strconv.ParseFloat(rows[0][3], 64)
	require.NoError(t, err)
	require.Greater(t, score, 3.0)
}
