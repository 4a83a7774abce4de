package main

/*
rf-norm computes per-base reactivity profiles from one or more RC count
stores, under a selected scoring method and windowed normalization rule,
and writes one reactivity XML document per transcript.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/rf/cmd/rf-norm/rfnorm"
	"github.com/grailbio/rf/config"
)

var (
	untreatedPath   = flag.String("untreated", "", "Untreated RC count store; required by -scoring=ding/siegfried")
	denaturedPath   = flag.String("denatured", "", "Optional denatured RC count store (Siegfried only)")
	scoringMethod   = flag.Int("scoring", int(config.Ding), "Scoring method: 1=Ding, 2=Rouskin, 3=Siegfried, 4=Zubradt")
	normMethod      = flag.Int("norm", int(config.BoxPlot), "Normalization method: 1=2-8pct, 2=Winsorize90, 3=BoxPlot")
	normWindow      = flag.Int("norm-window", 0, "Normalization window length; 0 = per-scoring-method default")
	windowOffset    = flag.Int("window-offset", 0, "Normalization window stride; 0 = match the resolved window")
	reactiveBases   = flag.String("reactive-bases", "N", "Reactive base set; 'N' means all four nucleotides")
	normIndependent = flag.Bool("norm-independent", false, "Normalize each reactive base class independently")
	pseudocount     = flag.Float64("pseudocount", 1, "Pseudocount added before log/ratio scoring")
	maxScore        = flag.Float64("max-score", 10, "Ding score cap")
	meanCoverage    = flag.Float64("mean-coverage", 0, "Minimum mean coverage to process a transcript")
	medianCoverage  = flag.Float64("median-coverage", 0, "Minimum median coverage to process a transcript")
	minBaseCoverage = flag.Float64("min-base-coverage", 1, "Minimum per-base coverage; below this a base is masked to NaN")
	remap           = flag.Bool("remap-reactivities", false, "Apply the Zarringhalam piecewise-linear remap")
	maxUntreatedMut = flag.Float64("max-untreated-mut", 0.05, "Siegfried: mask positions with untreated mutation rate above this")
	raw             = flag.Bool("raw", false, "Suppress normalization; emit masked raw scores")
	outDir          = flag.String("out", "rf-norm-out", "Output directory for per-transcript XML documents")
	processors      = flag.Int("processors", 1, "Number of parallel transcript workers")
	gzipOut         = flag.Bool("gzip", false, "Gzip each XML output document")
)

func rfNormUsage() {
	fmt.Printf("Usage: %s [OPTIONS] treated.rc\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = rfNormUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("exactly one positional argument (treated.rc) required; got %d", flag.NArg())
	}

	cfg, err := config.New(config.Params{
		Scoring:                 config.ScoringMethod(*scoringMethod),
		Norm:                    config.NormMethod(*normMethod),
		NormWindow:              *normWindow,
		WindowOffset:            *windowOffset,
		ReactiveBases:           *reactiveBases,
		NormIndependent:         *normIndependent,
		Pseudocount:             *pseudocount,
		MaxScore:                *maxScore,
		MeanCoverageThreshold:   *meanCoverage,
		MedianCoverageThreshold: *medianCoverage,
		MinBaseCoverage:         *minBaseCoverage,
		RemapReactivities:       *remap,
		MaxUntreatedMut:         *maxUntreatedMut,
		Raw:                     *raw,
	})
	if err != nil {
		log.Panicf("%v", err)
	}

	ctx := vcontext.Background()
	counts, err := rfnorm.Run(ctx, rfnorm.Opts{
		TreatedPath:   flag.Arg(0),
		UntreatedPath: *untreatedPath,
		DenaturedPath: *denaturedPath,
		OutDir:        *outDir,
		Processors:    *processors,
		Gzip:          *gzipOut,
		Cfg:           cfg,
	})
	if err != nil {
		log.Panicf("%v", err)
	}
	log.Printf("succeeded=%d incov=%d seqmismatch=%d missing=%d nonnumeric=%d failed=%d",
		counts["succeeded"], counts["incov"], counts["seqmismatch"], counts["missing"], counts["nonnumeric"], counts["failed"])
}
