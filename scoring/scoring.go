// Package scoring implements the four per-base scoring methods (Ding,
// Rouskin, Siegfried, Zubradt), their coverage-gating preconditions, and
// the final per-base masking shared by all of them.
package scoring

import (
	"fmt"
	"math"

	"github.com/grailbio/rf/config"
	"github.com/grailbio/rf/mathx"
	"github.com/grailbio/rf/rferrors"
)

// Sample is one treated/untreated/denatured input to the scoring engine:
// a sequence plus its per-base count and coverage vectors.
type Sample struct {
	Sequence string
	Count    []uint32
	Coverage []uint32
}

func (s Sample) meanCoverage() float64 {
	if len(s.Coverage) == 0 {
		return 0
	}
	var sum float64
	for _, c := range s.Coverage {
		sum += float64(c)
	}
	return sum / float64(len(s.Coverage))
}

func (s Sample) medianCoverage() float64 {
	n := len(s.Coverage)
	if n == 0 {
		return 0
	}
	sorted := make([]uint32, n)
	copy(sorted, s.Coverage)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := n / 2
	if n%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func passesCoverageGate(s Sample, cfg config.Params) bool {
	return s.meanCoverage() >= cfg.MeanCoverageThreshold && s.medianCoverage() >= cfg.MedianCoverageThreshold
}

// Score computes the raw per-base score vector for one transcript.
// untreated and denatured are nil when not supplied. Masked positions are
// reported as NaN, never as zero, so a missing measurement can never be
// mistaken for a measured absence of reactivity.
func Score(transcriptID string, treated Sample, untreated, denatured *Sample, cfg config.Params) ([]float64, error) {
	l := len(treated.Sequence)
	if len(treated.Count) != l || len(treated.Coverage) != l {
		return nil, rferrors.NewSkipError(transcriptID, rferrors.NonNumeric, "treated count/coverage length mismatch")
	}
	if !passesCoverageGate(treated, cfg) {
		return nil, rferrors.NewSkipError(transcriptID, rferrors.LowCoverage, "treated sample below coverage thresholds")
	}

	switch cfg.Scoring {
	case config.Ding:
		if untreated == nil {
			return nil, rferrors.NewSkipError(transcriptID, rferrors.Missing, "ding scoring requires an untreated sample")
		}
		if err := checkControl(transcriptID, treated, *untreated, cfg); err != nil {
			return nil, err
		}
		return scoreDing(transcriptID, treated, *untreated, cfg)
	case config.Rouskin:
		return scoreRouskin(treated), nil
	case config.Siegfried:
		if untreated == nil {
			return nil, rferrors.NewSkipError(transcriptID, rferrors.Missing, "siegfried scoring requires an untreated sample")
		}
		if err := checkControl(transcriptID, treated, *untreated, cfg); err != nil {
			return nil, err
		}
		if denatured != nil {
			if err := checkControl(transcriptID, treated, *denatured, cfg); err != nil {
				return nil, err
			}
		}
		return scoreSiegfried(treated, *untreated, denatured, cfg), nil
	case config.Zubradt:
		return scoreZubradt(treated), nil
	default:
		return nil, rferrors.NewSkipError(transcriptID, rferrors.NonNumeric, fmt.Sprintf("unrecognized scoring method %v", cfg.Scoring))
	}
}

func checkControl(transcriptID string, treated, control Sample, cfg config.Params) error {
	if control.Sequence != treated.Sequence {
		return rferrors.NewSkipError(transcriptID, rferrors.SeqMismatch, "control sequence disagrees with treated")
	}
	if !passesCoverageGate(control, cfg) {
		return rferrors.NewSkipError(transcriptID, rferrors.LowCoverage, "control sample below coverage thresholds")
	}
	return nil
}

// scoreDing implements the Ding et al. (2012) SHAPE normalization: the
// difference between log(treated count + pseudocount) and log(untreated
// count + pseudocount), each rescaled by its own sample mean, clamped to
// [0, cfg.MaxScore].
func scoreDing(transcriptID string, treated, untreated Sample, cfg config.Params) ([]float64, error) {
	l := len(treated.Sequence)
	uPrime := make([]float64, l)
	tPrime := make([]float64, l)
	for i := 0; i < l; i++ {
		uPrime[i] = math.Log(float64(untreated.Count[i]) + cfg.Pseudocount)
		tPrime[i] = math.Log(float64(treated.Count[i]) + cfg.Pseudocount)
	}
	uBar, _ := mathx.Mean(uPrime)
	tBar, _ := mathx.Mean(tPrime)
	if uBar == 0 || tBar == 0 {
		return nil, rferrors.NewSkipError(transcriptID, rferrors.LowCoverage, "ding normalization mean is zero")
	}
	scores := make([]float64, l)
	for i := 0; i < l; i++ {
		v := tPrime[i]/tBar - uPrime[i]/uBar
		if v < 0 {
			v = 0
		}
		if v > cfg.MaxScore {
			v = cfg.MaxScore
		}
		scores[i] = v
	}
	return scores, nil
}

// scoreRouskin implements the Rouskin et al. (2014) DMS-seq formula: raw
// treated counts, scaled entirely by the normalization engine downstream.
func scoreRouskin(treated Sample) []float64 {
	scores := make([]float64, len(treated.Count))
	for i, c := range treated.Count {
		scores[i] = float64(c)
	}
	return scores
}

// scoreSiegfried implements the Siegfried et al. (2014) DMS-MaPseq
// formula: a mutation-rate difference between treated and untreated,
// optionally normalized by a denatured control's rate.
func scoreSiegfried(treated, untreated Sample, denatured *Sample, cfg config.Params) []float64 {
	l := len(treated.Sequence)
	scores := make([]float64, l)
	for i := 0; i < l; i++ {
		uRate := rate(untreated.Count[i], untreated.Coverage[i])
		tRate := rate(treated.Count[i], treated.Coverage[i])

		masked := float64(untreated.Coverage[i]) < cfg.MinBaseCoverage ||
			float64(treated.Coverage[i]) < cfg.MinBaseCoverage ||
			uRate > cfg.MaxUntreatedMut
		var dRate float64
		if denatured != nil {
			dRate = rate(denatured.Count[i], denatured.Coverage[i])
			if float64(denatured.Coverage[i]) < cfg.MinBaseCoverage {
				masked = true
			}
		}
		if masked {
			scores[i] = math.NaN()
			continue
		}
		if denatured != nil {
			if dRate > 0 {
				v := (tRate - uRate) / dRate
				if v < 0 {
					v = 0
				}
				scores[i] = v
			} else {
				scores[i] = 0
			}
		} else {
			v := tRate - uRate
			if v < 0 {
				v = 0
			}
			scores[i] = v
		}
	}
	return scores
}

// scoreZubradt implements the Zubradt et al. (2017) DMS-MaPseq formula
// used when no untreated control is available: a raw per-base mutation
// rate.
func scoreZubradt(treated Sample) []float64 {
	l := len(treated.Count)
	scores := make([]float64, l)
	for i := 0; i < l; i++ {
		if treated.Coverage[i] > 0 {
			scores[i] = float64(treated.Count[i]) / float64(treated.Coverage[i])
		}
	}
	return scores
}

func rate(count, coverage uint32) float64 {
	if coverage == 0 {
		return 0
	}
	return float64(count) / float64(coverage)
}

// MaskLowCoverage applies the final masking rule common to every scoring
// method: positions where treated (or, when present, control) coverage
// falls below cfg.MinBaseCoverage are forced to NaN, after scoring and
// independent of the method used.
func MaskLowCoverage(scores []float64, treated Sample, control *Sample, cfg config.Params) {
	for i := range scores {
		if float64(treated.Coverage[i]) < cfg.MinBaseCoverage {
			scores[i] = math.NaN()
			continue
		}
		if control != nil && float64(control.Coverage[i]) < cfg.MinBaseCoverage {
			scores[i] = math.NaN()
		}
	}
}
