package main

/*
rf-peakcall identifies enriched regions in an immunoprecipitation
experiment from per-transcript IP (and optional control) coverage,
emitting a single sorted BED file across all transcripts.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/rf/cmd/rf-peakcall/rfpeakcall"
	"github.com/grailbio/rf/peakcall"
)

var (
	controlPath   = flag.String("control", "", "Optional control RC count store")
	window        = flag.Int("window", 150, "Sliding window length (>= 10)")
	offset        = flag.Int("offset", 10, "Sliding window stride")
	enrichment    = flag.Float64("enrichment", 3, "Minimum log2 enrichment to keep a window")
	pvalue        = flag.Float64("pvalue", 0.05, "Maximum adjusted p-value to keep a window")
	pseudocount   = flag.Float64("pseudocount", 1, "Pseudocount added before the enrichment ratio")
	mergeDistance = flag.Int("merge-distance", 0, "Maximum gap between kept windows to still merge them")
	meanCoverage  = flag.Float64("mean-coverage", 0, "Minimum mean coverage to process a transcript")
	medianCov     = flag.Float64("median-coverage", 0, "Minimum median coverage to process a transcript")
	outPath       = flag.String("out", "rf-peakcall-out.bed", "Output BED path")
	processors    = flag.Int("processors", 1, "Number of parallel transcript workers")
	gzipOut       = flag.Bool("gzip", false, "Gzip the BED output")
)

func rfPeakcallUsage() {
	fmt.Printf("Usage: %s [OPTIONS] ip.rc\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = rfPeakcallUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("exactly one positional argument (ip.rc) required; got %d", flag.NArg())
	}

	params := peakcall.Params{
		Window:                  *window,
		Offset:                  *offset,
		Enrichment:              *enrichment,
		PValue:                  *pvalue,
		Pseudocount:             *pseudocount,
		MergeDistance:           *mergeDistance,
		MeanCoverageThreshold:   *meanCoverage,
		MedianCoverageThreshold: *medianCov,
	}
	if params.Window < 10 {
		log.Panicf("invalid configuration: -window must be >= 10")
	}

	ctx := vcontext.Background()
	counts, err := rfpeakcall.Run(ctx, rfpeakcall.Opts{
		IPPath:      flag.Arg(0),
		ControlPath: *controlPath,
		OutPath:     *outPath,
		Gzip:        *gzipOut,
		Processors:  *processors,
		Params:      params,
	})
	if err != nil {
		log.Panicf("%v", err)
	}
	log.Printf("succeeded=%d incov=%d missing=%d seqmismatch=%d failed=%d",
		counts["succeeded"], counts["incov"], counts["missing"], counts["seqmismatch"], counts["failed"])
}
