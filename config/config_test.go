package config_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/rf/config"
)

func TestDefaultValidates(t *testing.T) {
	p, err := config.New(config.Default())
	require.NoError(t, err)
	require.Equal(t, config.Ding, p.Scoring)
}

func TestInvalidScoringRejected(t *testing.T) {
	p := config.Default()
	p.Scoring = 9
	_, err := config.New(p)
	require.Error(t, err)
}

func TestNormWindowTooSmallRejected(t *testing.T) {
	p := config.Default()
	p.NormWindow = 2
	_, err := config.New(p)
	require.Error(t, err)
}

func TestRoundTripSaveLoad(t *testing.T) {
	p := config.Default()
	p.Scoring = config.Siegfried
	p.Norm = config.Winsorize90
	p.NormWindow = 50
	p.NormIndependent = true
	p.RemapReactivities = true

	var buf bytes.Buffer
	require.NoError(t, config.Save(&buf, p))

	got, err := config.Load(&buf)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestResolvedWindowDefaults(t *testing.T) {
	p := config.Default()
	p.Scoring = config.Rouskin
	require.Equal(t, 50, p.ResolvedWindow(1000))
	require.Equal(t, 30, p.ResolvedWindow(30))

	p.Scoring = config.Ding
	require.Equal(t, 1000, p.ResolvedWindow(1000))
}

func TestResolvedOffsetDefaultsToWindow(t *testing.T) {
	p := config.Default()
	require.Equal(t, 50, p.ResolvedOffset(50))
	p.WindowOffset = 10
	require.Equal(t, 10, p.ResolvedOffset(50))
}

func TestReactiveSetDefaultIsAllFour(t *testing.T) {
	p := config.Default()
	set := p.ReactiveSet()
	for _, b := range []byte{'A', 'C', 'G', 'T', 'U'} {
		require.True(t, set[b])
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := config.Load(bytes.NewBufferString("bogus=1\n"))
	require.Error(t, err)
}
