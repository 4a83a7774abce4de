package main

/*
rf-combine merges two or more replicate rf-norm/rf-silico/rf-modcall
output directories into one, averaging per-base values across
replicates for every transcript identifier common to all inputs.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/rf/cmd/rf-combine/rfcombine"
)

var (
	outDir     = flag.String("out", "rf-combine-out", "Output directory for per-transcript combined XML documents")
	processors = flag.Int("processors", 1, "Number of parallel transcript workers")
	gzipOut    = flag.Bool("gzip", false, "Gzip each XML output document")
)

func rfCombineUsage() {
	fmt.Printf("Usage: %s [OPTIONS] dir1 dir2 [dir3 ...]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = rfCombineUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() < 2 {
		log.Fatalf("at least two positional arguments (replicate directories) required; got %d", flag.NArg())
	}

	ctx := vcontext.Background()
	counts, err := rfcombine.Run(ctx, rfcombine.Opts{
		InputDirs:  flag.Args(),
		OutDir:     *outDir,
		Processors: *processors,
		Gzip:       *gzipOut,
	})
	if err != nil {
		log.Panicf("%v", err)
	}
	log.Printf("succeeded=%d difftool=%d diffseq=%d diffscore=%d diffnorm=%d diffoffset=%d diffwin=%d failed=%d",
		counts["succeeded"], counts["difftool"], counts["diffseq"], counts["diffscore"], counts["diffnorm"], counts["diffoffset"], counts["diffwin"], counts["failed"])
}
