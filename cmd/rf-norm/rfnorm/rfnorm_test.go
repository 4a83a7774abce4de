package rfnorm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/rf/cmd/rf-norm/rfnorm"
	"github.com/grailbio/rf/config"
	"github.com/grailbio/rf/rcstore"
	"github.com/grailbio/rf/xmlprofile"
)

func writeTreated(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "treated.rc")
	entries := []rcstore.Entry{{
		Name:     "tx1",
		Sequence: "ACGUACGUAC",
		Count:    []uint32{0, 0, 5, 0, 0, 10, 0, 0, 5, 0},
		Coverage: []uint32{20, 20, 20, 20, 20, 20, 20, 20, 20, 20},
	}}
	require.NoError(t, rcstore.WriteRC(path, entries))
	return path
}

// TestRunRouskinWinsorizeConcentratesReactivity checks that Rouskin scoring
// with 90%-Winsorize normalization concentrates reactivity mass at the
// positions with nonzero treated counts, and every value lands in [0, 1].
func TestRunRouskinWinsorizeConcentratesReactivity(t *testing.T) {
	dir := t.TempDir()
	treatedPath := writeTreated(t, dir)
	outDir := filepath.Join(dir, "out")

	cfg, err := config.New(config.Params{
		Scoring:         config.Rouskin,
		Norm:            config.Winsorize90,
		NormWindow:      10,
		WindowOffset:    10,
		ReactiveBases:   "N",
		Pseudocount:     1,
		MaxScore:        10,
		MaxUntreatedMut: 0.05,
		MinBaseCoverage: 1,
	})
	require.NoError(t, err)

	counts, err := rfnorm.Run(context.Background(), rfnorm.Opts{
		TreatedPath: treatedPath,
		OutDir:      outDir,
		Processors:  1,
		Cfg:         cfg,
	})
	require.NoError(t, err)
	require.Equal(t, 1, counts["succeeded"])

	f, err := os.Open(filepath.Join(outDir, "tx1.xml"))
	require.NoError(t, err)
	defer f.Close()
	doc, err := xmlprofile.Read(f)
	require.NoError(t, err)

	require.Len(t, doc.Transcript.Primary, 10)
	for _, v := range doc.Transcript.Primary {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
	require.Greater(t, doc.Transcript.Primary[2], doc.Transcript.Primary[0])
	require.Greater(t, doc.Transcript.Primary[5], doc.Transcript.Primary[0])
	require.Equal(t, 0.0, doc.Transcript.Primary[0])
}

// TestRunRejectsLowMeanCoverage checks that a transcript whose mean
// coverage falls below the configured threshold is rejected, counted as
// incov, and no output document is written.
func TestRunRejectsLowMeanCoverage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "treated.rc")
	entries := []rcstore.Entry{{
		Name:     "tx1",
		Sequence: "ACGUACGUAC",
		Count:    []uint32{0, 0, 5, 0, 0, 10, 0, 0, 5, 0},
		Coverage: []uint32{4, 4, 4, 4, 4, 4, 4, 4, 4, 4},
	}}
	require.NoError(t, rcstore.WriteRC(path, entries))
	outDir := filepath.Join(dir, "out")

	cfg, err := config.New(config.Params{
		Scoring:               config.Rouskin,
		Norm:                  config.Winsorize90,
		NormWindow:            10,
		WindowOffset:          10,
		ReactiveBases:         "N",
		Pseudocount:           1,
		MaxScore:              10,
		MeanCoverageThreshold: 5,
		MaxUntreatedMut:       0.05,
		MinBaseCoverage:       1,
	})
	require.NoError(t, err)

	counts, err := rfnorm.Run(context.Background(), rfnorm.Opts{
		TreatedPath: path,
		OutDir:      outDir,
		Processors:  1,
		Cfg:         cfg,
	})
	require.NoError(t, err)
	require.Equal(t, 1, counts["incov"])
	require.Equal(t, 0, counts["succeeded"])

	_, err = os.Stat(filepath.Join(outDir, "tx1.xml"))
	require.True(t, os.IsNotExist(err))
}

// TestRunSiegfriedMasksHighUntreatedMutationRate checks that a position
// whose untreated mutation rate exceeds max-untreated-mut is masked to NaN
// regardless of the treated signal there.
func TestRunSiegfriedMasksHighUntreatedMutationRate(t *testing.T) {
	dir := t.TempDir()
	treatedPath := filepath.Join(dir, "treated.rc")
	untreatedPath := filepath.Join(dir, "untreated.rc")
	seq := "ACGUACGUAC"
	require.NoError(t, rcstore.WriteRC(treatedPath, []rcstore.Entry{{
		Name:     "tx1",
		Sequence: seq,
		Count:    []uint32{5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
		Coverage: []uint32{20, 20, 20, 20, 20, 20, 20, 20, 20, 20},
	}}))
	require.NoError(t, rcstore.WriteRC(untreatedPath, []rcstore.Entry{{
		Name:     "tx1",
		Sequence: seq,
		Count:    []uint32{0, 2, 0, 0, 0, 0, 0, 0, 0, 0}, // position 1: rate 0.10
		Coverage: []uint32{20, 20, 20, 20, 20, 20, 20, 20, 20, 20},
	}}))
	outDir := filepath.Join(dir, "out")

	cfg, err := config.New(config.Params{
		Scoring:         config.Siegfried,
		Norm:            config.BoxPlot,
		NormWindow:      10,
		WindowOffset:    10,
		ReactiveBases:   "N",
		Pseudocount:     1,
		MaxScore:        10,
		MaxUntreatedMut: 0.05,
		MinBaseCoverage: 1,
	})
	require.NoError(t, err)

	counts, err := rfnorm.Run(context.Background(), rfnorm.Opts{
		TreatedPath:   treatedPath,
		UntreatedPath: untreatedPath,
		OutDir:        outDir,
		Processors:    1,
		Cfg:           cfg,
	})
	require.NoError(t, err)
	require.Equal(t, 1, counts["succeeded"])

	f, err := os.Open(filepath.Join(outDir, "tx1.xml"))
	require.NoError(t, err)
	defer f.Close()
	doc, err := xmlprofile.Read(f)
	require.NoError(t, err)
	require.True(t, doc.Transcript.Primary[1] != doc.Transcript.Primary[1]) // NaN
}
