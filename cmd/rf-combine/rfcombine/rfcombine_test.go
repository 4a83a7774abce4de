package rfcombine_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/rf/cmd/rf-combine/rfcombine"
	"github.com/grailbio/rf/xmlprofile"
)

func writeFixture(t *testing.T, dir, id string, values []float64) {
	t.Helper()
	doc := xmlprofile.Document{
		Header: xmlprofile.Header{
			Tool:    xmlprofile.ToolNorm,
			Scoring: "ding",
			Norm:    "boxplot",
			Win:     "50",
			Offset:  "50",
		},
		Transcript: xmlprofile.Transcript{
			ID:         id,
			Length:     len(values),
			Sequence:   "ACGUACGUAC"[:len(values)],
			PrimaryTag: "reactivity",
			Primary:    values,
		},
	}
	f, err := os.Create(filepath.Join(dir, id+".xml"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, xmlprofile.Write(f, doc))
}

func TestRunCombinesCommonTranscriptsOnly(t *testing.T) {
	dir1, err := ioutil.TempDir("", "rfcombine1")
	require.NoError(t, err)
	defer os.RemoveAll(dir1)
	dir2, err := ioutil.TempDir("", "rfcombine2")
	require.NoError(t, err)
	defer os.RemoveAll(dir2)
	outDir, err := ioutil.TempDir("", "rfcombineout")
	require.NoError(t, err)
	defer os.RemoveAll(outDir)

	vals := []float64{0, 0.5, 1, 0.2}
	writeFixture(t, dir1, "tx1", vals)
	writeFixture(t, dir1, "tx-only-in-one", vals)
	writeFixture(t, dir2, "tx1", vals)

	counts, err := rfcombine.Run(context.Background(), rfcombine.Opts{
		InputDirs:  []string{dir1, dir2},
		OutDir:     outDir,
		Processors: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 1, counts["succeeded"])

	_, err = os.Stat(filepath.Join(outDir, "tx1.xml"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "tx-only-in-one.xml"))
	require.True(t, os.IsNotExist(err))

	f, err := os.Open(filepath.Join(outDir, "tx1.xml"))
	require.NoError(t, err)
	defer f.Close()
	doc, err := xmlprofile.Read(f)
	require.NoError(t, err)
	require.True(t, doc.Header.Combined)
	for i, v := range doc.Transcript.Primary {
		require.InDeltaf(t, vals[i], v, 1e-9, "position %d", i)
	}
}

func TestRunRejectsFewerThanTwoInputs(t *testing.T) {
	_, err := rfcombine.Run(context.Background(), rfcombine.Opts{InputDirs: []string{"onlyone"}})
	require.Error(t, err)
}
