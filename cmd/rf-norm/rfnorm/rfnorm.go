// Package rfnorm implements the rf-norm tool's transcript-level pipeline:
// scoring followed by normalization, writing one reactivity XML document
// per transcript, dispatched across a traverse.Each worker pool exactly as
// cmd/bio-pileup/snp does for its per-region jobs.
package rfnorm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/rf/config"
	"github.com/grailbio/rf/counters"
	"github.com/grailbio/rf/normalize"
	"github.com/grailbio/rf/rcstore"
	"github.com/grailbio/rf/rferrors"
	"github.com/grailbio/rf/scoring"
	"github.com/grailbio/rf/xmlprofile"
)

// Opts bundles rf-norm's command-line options.
type Opts struct {
	TreatedPath   string
	UntreatedPath string
	DenaturedPath string
	OutDir        string
	Processors    int
	Gzip          bool
	Cfg           config.Params
}

// Run executes the full rf-norm pipeline, returning the final counter
// snapshot for the caller to print.
func Run(ctx context.Context, opts Opts) (map[string]int, error) {
	var cnt counters.Bundle
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, rferrors.NewIOError(opts.OutDir, err.Error())
	}

	probe, err := rcstore.Open(opts.TreatedPath)
	if err != nil {
		return nil, err
	}
	ids := probe.IDs()
	probe.Close()

	processors := opts.Processors
	if processors <= 0 {
		processors = 1
	}
	err = traverse.Each(processors, func(shardIdx int) error {
		treated, err := rcstore.Open(opts.TreatedPath)
		if err != nil {
			return err
		}
		defer treated.Close()

		var untreated, denatured *rcstore.Store
		if opts.UntreatedPath != "" {
			if untreated, err = rcstore.Open(opts.UntreatedPath); err != nil {
				return err
			}
			defer untreated.Close()
		}
		if opts.DenaturedPath != "" {
			if denatured, err = rcstore.Open(opts.DenaturedPath); err != nil {
				return err
			}
			defer denatured.Close()
		}

		for i := shardIdx; i < len(ids); i += processors {
			processOne(ctx, ids[i], treated, untreated, denatured, opts, &cnt)
		}
		return nil
	})
	return cnt.Snapshot(), err
}

func processOne(ctx context.Context, id string, treated, untreated, denatured *rcstore.Store, opts Opts, cnt *counters.Bundle) {
	ts, err := readSample(treated, id)
	if err != nil {
		recordSkip(cnt, err)
		return
	}
	var us, ds *scoring.Sample
	if untreated != nil {
		s, err := readSample(untreated, id)
		if err != nil {
			recordSkip(cnt, err)
			return
		}
		us = &s
	}
	if denatured != nil {
		s, err := readSample(denatured, id)
		if err != nil {
			recordSkip(cnt, err)
			return
		}
		ds = &s
	}

	scores, err := scoring.Score(id, ts, us, ds, opts.Cfg)
	if err != nil {
		recordSkip(cnt, err)
		return
	}
	var control *scoring.Sample
	if us != nil {
		control = us
	}
	scoring.MaskLowCoverage(scores, ts, control, opts.Cfg)

	var controlCov []uint32
	if control != nil {
		controlCov = control.Coverage
	}
	r, err := normalize.Normalize(id, scores, ts.Sequence, ts.Coverage, controlCov, opts.Cfg)
	if err != nil {
		recordSkip(cnt, err)
		return
	}

	doc := buildDocument(id, ts.Sequence, r, opts.Cfg)
	if err := writeDocument(ctx, opts, doc); err != nil {
		log.Error.Printf("rf-norm: writing %q: %v", id, err)
		cnt.Inc(counters.Failed)
		return
	}
	cnt.Inc(counters.Succeeded)
}

func readSample(s *rcstore.Store, id string) (scoring.Sample, error) {
	e, ok, err := s.Read(id)
	if err != nil {
		return scoring.Sample{}, err
	}
	if !ok {
		return scoring.Sample{}, rferrors.NewSkipError(id, rferrors.Missing, "transcript not present in count store")
	}
	return scoring.Sample{Sequence: e.Sequence, Count: e.Count, Coverage: e.Coverage}, nil
}

func recordSkip(cnt *counters.Bundle, err error) {
	var skip *rferrors.ErrSkip
	if errors.As(err, &skip) {
		cnt.Inc(string(skip.Reason))
		return
	}
	cnt.Inc(counters.Failed)
}

func buildDocument(id, sequence string, r []float64, cfg config.Params) xmlprofile.Document {
	l := len(sequence)
	w := cfg.ResolvedWindow(l)
	o := cfg.ResolvedOffset(w)
	norm := cfg.Norm.String()
	if cfg.Raw {
		norm = "raw"
	}
	return xmlprofile.Document{
		Header: xmlprofile.Header{
			Tool:     xmlprofile.ToolNorm,
			Reactive: cfg.ReactiveBases,
			Scoring:  cfg.Scoring.String(),
			Norm:     norm,
			Win:      strconv.Itoa(w),
			Offset:   strconv.Itoa(o),
			Remap:    strconv.FormatBool(cfg.RemapReactivities),
			Max:      strconv.FormatFloat(cfg.MaxScore, 'g', -1, 64),
			Pseudo:   strconv.FormatFloat(cfg.Pseudocount, 'g', -1, 64),
			MaxUMut:  strconv.FormatFloat(cfg.MaxUntreatedMut, 'g', -1, 64),
		},
		Transcript: xmlprofile.Transcript{
			ID:         id,
			Length:     l,
			Sequence:   sequence,
			PrimaryTag: "reactivity",
			Primary:    r,
		},
	}
}

func writeDocument(ctx context.Context, opts Opts, doc xmlprofile.Document) (err error) {
	path := filepath.Join(opts.OutDir, doc.Transcript.ID+".xml")
	if opts.Gzip {
		path += ".gz"
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)

	w := out.Writer(ctx)
	if opts.Gzip {
		gw := gzip.NewWriter(w)
		defer func() {
			if cerr := gw.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return xmlprofile.Write(gw, doc)
	}
	return xmlprofile.Write(w, doc)
}
