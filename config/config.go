// Package config implements the typed, validated parameter bundle shared
// by the scoring and normalization engines, including its lossless
// key=value persistence format.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/rf/rferrors"
)

// ScoringMethod selects the scoring formula.
type ScoringMethod int

const (
	Ding ScoringMethod = 1 + iota
	Rouskin
	Siegfried
	Zubradt
)

func (m ScoringMethod) String() string {
	switch m {
	case Ding:
		return "ding"
	case Rouskin:
		return "rouskin"
	case Siegfried:
		return "siegfried"
	case Zubradt:
		return "zubradt"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// NormMethod selects the windowed normalization rule.
type NormMethod int

const (
	TwoEightPercent NormMethod = 1 + iota
	Winsorize90
	BoxPlot
)

func (m NormMethod) String() string {
	switch m {
	case TwoEightPercent:
		return "28pct"
	case Winsorize90:
		return "winsorize90"
	case BoxPlot:
		return "boxplot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Params is the validated, typed parameter bundle. Construct it with New,
// never as a bare literal, so defaulting and validation always run.
type Params struct {
	Scoring ScoringMethod
	Norm    NormMethod

	// NormWindow is the sliding-window length. Zero means "use the
	// per-scoring-method default" (whole-transcript for Ding/Siegfried, 50
	// for Rouskin/Zubradt), resolved per-transcript via ResolvedWindow
	// since "whole transcript" depends on each transcript's length.
	NormWindow int
	// WindowOffset is the window stride. Zero means "match the resolved
	// window".
	WindowOffset int

	// ReactiveBases is the reactive base set B. "N" (the default) means
	// all four nucleotides.
	ReactiveBases string

	NormIndependent bool
	Pseudocount     float64
	MaxScore        float64

	MeanCoverageThreshold   float64
	MedianCoverageThreshold float64

	// MinBaseCoverage is the per-base coverage floor below which a
	// position is masked to NaN regardless of its score; it is distinct
	// from the transcript-level MeanCoverageThreshold/
	// MedianCoverageThreshold gates.
	MinBaseCoverage float64

	RemapReactivities bool
	MaxUntreatedMut   float64
	Raw               bool
}

// Default returns the zero-configured Params: Ding scoring and box-plot
// normalization.
func Default() Params {
	return Params{
		Scoring:         Ding,
		Norm:            BoxPlot,
		ReactiveBases:   "N",
		NormIndependent: false,
		Pseudocount:     1,
		MaxScore:        10,
		MaxUntreatedMut: 0.05,
		MinBaseCoverage: 1,
	}
}

// New validates p, returning an *rferrors.ErrConfig-wrapped error for any
// contradictory or out-of-range field.
func New(p Params) (Params, error) {
	if p.Scoring < Ding || p.Scoring > Zubradt {
		return p, rferrors.NewConfigError(fmt.Sprintf("scoring method %d out of range [1,4]", p.Scoring))
	}
	if p.Norm < TwoEightPercent || p.Norm > BoxPlot {
		return p, rferrors.NewConfigError(fmt.Sprintf("normalization method %d out of range [1,3]", p.Norm))
	}
	if p.NormWindow != 0 && p.NormWindow < 3 {
		return p, rferrors.NewConfigError("norm-window must be >= 3 (or 0 for the method default)")
	}
	if p.WindowOffset < 0 {
		return p, rferrors.NewConfigError("window-offset must be >= 0")
	}
	if p.ReactiveBases == "" {
		p.ReactiveBases = "N"
	}
	if p.Pseudocount <= 0 {
		return p, rferrors.NewConfigError("pseudocount must be > 0")
	}
	if p.MaxScore <= 0 {
		return p, rferrors.NewConfigError("max-score must be > 0")
	}
	if p.MeanCoverageThreshold < 0 || p.MedianCoverageThreshold < 0 {
		return p, rferrors.NewConfigError("coverage thresholds must be >= 0")
	}
	if p.MaxUntreatedMut < 0 {
		return p, rferrors.NewConfigError("max-untreated-mut must be >= 0")
	}
	if p.MinBaseCoverage < 0 {
		return p, rferrors.NewConfigError("per-base minimum coverage must be >= 0")
	}
	return p, nil
}

// ResolvedWindow returns the effective normalization window for a
// transcript of length l, applying the per-scoring-method default when
// NormWindow is unset, and clamping to l.
func (p Params) ResolvedWindow(l int) int {
	w := p.NormWindow
	if w == 0 {
		switch p.Scoring {
		case Rouskin, Zubradt:
			w = 50
		default: // Ding, Siegfried
			w = l
		}
	}
	if w > l {
		w = l
	}
	return w
}

// ResolvedOffset returns the effective window stride for a transcript
// whose resolved window is w, defaulting to w (a single full-length
// window, or a non-overlapping tiling) when WindowOffset is unset.
func (p Params) ResolvedOffset(w int) int {
	if p.WindowOffset == 0 {
		return w
	}
	return p.WindowOffset
}

// ReactiveSet returns the set of reactive base characters named by
// ReactiveBases: "N" expands to all four nucleotides (counting T and U as
// the same class), anything else is taken as a literal character set.
func (p Params) ReactiveSet() map[byte]bool {
	set := make(map[byte]bool)
	if p.ReactiveBases == "" || p.ReactiveBases == "N" {
		for _, b := range []byte{'A', 'C', 'G', 'T', 'U'} {
			set[b] = true
		}
		return set
	}
	for i := 0; i < len(p.ReactiveBases); i++ {
		set[p.ReactiveBases[i]] = true
	}
	return set
}

// Save persists p losslessly as key=value lines.
func Save(w io.Writer, p Params) error {
	bw := bufio.NewWriter(w)
	fields := [][2]string{
		{"scoring", strconv.Itoa(int(p.Scoring))},
		{"norm", strconv.Itoa(int(p.Norm))},
		{"norm-window", strconv.Itoa(p.NormWindow)},
		{"window-offset", strconv.Itoa(p.WindowOffset)},
		{"reactive-bases", p.ReactiveBases},
		{"norm-independent", strconv.FormatBool(p.NormIndependent)},
		{"pseudocount", strconv.FormatFloat(p.Pseudocount, 'g', -1, 64)},
		{"max-score", strconv.FormatFloat(p.MaxScore, 'g', -1, 64)},
		{"mean-coverage", strconv.FormatFloat(p.MeanCoverageThreshold, 'g', -1, 64)},
		{"median-coverage", strconv.FormatFloat(p.MedianCoverageThreshold, 'g', -1, 64)},
		{"min-base-coverage", strconv.FormatFloat(p.MinBaseCoverage, 'g', -1, 64)},
		{"remap-reactivities", strconv.FormatBool(p.RemapReactivities)},
		{"max-untreated-mut", strconv.FormatFloat(p.MaxUntreatedMut, 'g', -1, 64)},
		{"raw", strconv.FormatBool(p.Raw)},
	}
	for _, kv := range fields {
		if _, err := fmt.Fprintf(bw, "%s=%s\n", kv[0], kv[1]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile persists p to path.
func SaveFile(path string, p Params) error {
	f, err := os.Create(path)
	if err != nil {
		return rferrors.NewIOError(path, err.Error())
	}
	defer f.Close()
	return Save(f, p)
}

// Load parses a key=value config, validating the result with New.
func Load(r io.Reader) (Params, error) {
	p := Default()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return p, rferrors.NewConfigError(fmt.Sprintf("malformed config line: %q", line))
		}
		if err := setField(&p, strings.TrimSpace(key), strings.TrimSpace(val)); err != nil {
			return p, err
		}
	}
	if err := scanner.Err(); err != nil {
		return p, rferrors.NewIOError("<config>", err.Error())
	}
	return New(p)
}

// LoadFile parses a key=value config file at path.
func LoadFile(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, rferrors.NewIOError(path, err.Error())
	}
	defer f.Close()
	return Load(f)
}

func setField(p *Params, key, val string) error {
	var err error
	switch key {
	case "scoring":
		var i int
		i, err = strconv.Atoi(val)
		p.Scoring = ScoringMethod(i)
	case "norm":
		var i int
		i, err = strconv.Atoi(val)
		p.Norm = NormMethod(i)
	case "norm-window":
		p.NormWindow, err = strconv.Atoi(val)
	case "window-offset":
		p.WindowOffset, err = strconv.Atoi(val)
	case "reactive-bases":
		p.ReactiveBases = val
	case "norm-independent":
		p.NormIndependent, err = strconv.ParseBool(val)
	case "pseudocount":
		p.Pseudocount, err = strconv.ParseFloat(val, 64)
	case "max-score":
		p.MaxScore, err = strconv.ParseFloat(val, 64)
	case "mean-coverage":
		p.MeanCoverageThreshold, err = strconv.ParseFloat(val, 64)
	case "median-coverage":
		p.MedianCoverageThreshold, err = strconv.ParseFloat(val, 64)
	case "min-base-coverage":
		p.MinBaseCoverage, err = strconv.ParseFloat(val, 64)
	case "remap-reactivities":
		p.RemapReactivities, err = strconv.ParseBool(val)
	case "max-untreated-mut":
		p.MaxUntreatedMut, err = strconv.ParseFloat(val, 64)
	case "raw":
		p.Raw, err = strconv.ParseBool(val)
	default:
		return rferrors.NewConfigError(fmt.Sprintf("unrecognized config key %q", key))
	}
	if err != nil {
		return rferrors.NewConfigError(fmt.Sprintf("parsing %q=%q: %v", key, val, err))
	}
	return nil
}
