// Package rfpeakcall implements the rf-peakcall tool's transcript-level
// pipeline: per-transcript enrichment calling dispatched across a
// traverse.Each worker pool, with a single mutex-guarded result vector
// collecting peaks before the final global sort and BED write.
package rfpeakcall

import (
	"context"
	"errors"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/grailbio/rf/bedio"
	"github.com/grailbio/rf/counters"
	"github.com/grailbio/rf/peakcall"
	"github.com/grailbio/rf/rcstore"
	"github.com/grailbio/rf/rferrors"
)

// Opts bundles rf-peakcall's command-line options.
type Opts struct {
	IPPath      string
	ControlPath string
	OutPath     string
	Gzip        bool
	Processors  int
	Params      peakcall.Params
}

// Run executes the full rf-peakcall pipeline: call peaks for every
// transcript in the IP count store, then write one sorted BED file.
func Run(ctx context.Context, opts Opts) (map[string]int, error) {
	var cnt counters.Bundle

	probe, err := rcstore.Open(opts.IPPath)
	if err != nil {
		return nil, err
	}
	ids := probe.IDs()
	probe.Close()

	var mu sync.Mutex
	var records []bedio.Record

	processors := opts.Processors
	if processors <= 0 {
		processors = 1
	}
	err = traverse.Each(processors, func(shardIdx int) error {
		ip, err := rcstore.Open(opts.IPPath)
		if err != nil {
			return err
		}
		defer ip.Close()

		var control *rcstore.Store
		if opts.ControlPath != "" {
			if control, err = rcstore.Open(opts.ControlPath); err != nil {
				return err
			}
			defer control.Close()
		}

		for i := shardIdx; i < len(ids); i += processors {
			peaks := processOne(ids[i], ip, control, opts.Params, &cnt)
			if len(peaks) == 0 {
				continue
			}
			mu.Lock()
			for _, p := range peaks {
				records = append(records, bedio.Record{TranscriptID: ids[i], Peak: p})
			}
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := bedio.Write(ctx, opts.OutPath, records, opts.Gzip); err != nil {
		return nil, err
	}
	return cnt.Snapshot(), nil
}

func processOne(id string, ip, control *rcstore.Store, params peakcall.Params, cnt *counters.Bundle) []peakcall.Peak {
	ipEntry, ok, err := ip.Read(id)
	if err != nil {
		log.Error.Printf("rf-peakcall: reading %q: %v", id, err)
		cnt.Inc(counters.Failed)
		return nil
	}
	if !ok {
		cnt.Inc(counters.Missing)
		return nil
	}

	var controlCov []uint32
	if control != nil {
		controlEntry, ok, err := control.Read(id)
		if err != nil {
			log.Error.Printf("rf-peakcall: reading control for %q: %v", id, err)
			cnt.Inc(counters.Failed)
			return nil
		}
		if !ok {
			cnt.Inc(counters.Missing)
			return nil
		}
		if controlEntry.Sequence != ipEntry.Sequence {
			cnt.Inc(counters.SeqMismatch)
			return nil
		}
		controlCov = controlEntry.Coverage
	}

	peaks, err := peakcall.Call(id, ipEntry.Coverage, controlCov, params)
	if err != nil {
		var skip *rferrors.ErrSkip
		if errors.As(err, &skip) {
			cnt.Inc(string(skip.Reason))
		} else {
			cnt.Inc(counters.Failed)
		}
		return nil
	}
	cnt.Inc(counters.Succeeded)
	return peaks
}
