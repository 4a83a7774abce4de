// Package rfcombine implements the rf-combine tool's transcript-level
// pipeline: discovering the transcript identifiers common to K input
// directories of reactivity XML documents, merging each with
// combine.Combine, and writing one combined document per transcript,
// dispatched across a traverse.Each worker pool.
package rfcombine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/rf/combine"
	"github.com/grailbio/rf/counters"
	"github.com/grailbio/rf/rferrors"
	"github.com/grailbio/rf/xmlprofile"
)

// Opts bundles rf-combine's command-line options.
type Opts struct {
	InputDirs  []string // K >= 2 directories, each holding one XML document per transcript
	OutDir     string
	Processors int
	Gzip       bool
}

// Run executes the full rf-combine pipeline.
func Run(ctx context.Context, opts Opts) (map[string]int, error) {
	if len(opts.InputDirs) < 2 {
		return nil, rferrors.NewConfigError("rf-combine requires at least two input directories")
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, rferrors.NewIOError(opts.OutDir, err.Error())
	}

	perDir := make([]map[string]string, len(opts.InputDirs))
	for i, dir := range opts.InputDirs {
		m, err := listTranscripts(dir)
		if err != nil {
			return nil, err
		}
		perDir[i] = m
	}
	ids := commonIDs(perDir)

	var cnt counters.Bundle
	processors := opts.Processors
	if processors <= 0 {
		processors = 1
	}
	err := traverse.Each(processors, func(shardIdx int) error {
		for i := shardIdx; i < len(ids); i += processors {
			processOne(ctx, ids[i], perDir, opts, &cnt)
		}
		return nil
	})
	return cnt.Snapshot(), err
}

// listTranscripts maps transcript ID to file path for every "<id>.xml" or
// "<id>.xml.gz" entry in dir.
func listTranscripts(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rferrors.NewIOError(dir, err.Error())
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id := strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".xml")
		if id == name {
			continue // not an XML document
		}
		out[id] = filepath.Join(dir, name)
	}
	return out, nil
}

// commonIDs returns, in sorted order, the transcript IDs present in every
// directory's listing.
func commonIDs(perDir []map[string]string) []string {
	if len(perDir) == 0 {
		return nil
	}
	var ids []string
	for id := range perDir[0] {
		inAll := true
		for _, m := range perDir[1:] {
			if _, ok := m[id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func processOne(ctx context.Context, id string, perDir []map[string]string, opts Opts, cnt *counters.Bundle) {
	inputs := make([]xmlprofile.Document, len(perDir))
	for i, m := range perDir {
		doc, err := readDocument(ctx, m[id])
		if err != nil {
			log.Error.Printf("rf-combine: reading %q from input %d: %v", id, i, err)
			cnt.Inc(counters.Failed)
			return
		}
		inputs[i] = doc
	}

	out, err := combine.Combine(id, inputs, cnt)
	if err != nil {
		// combine.Combine already incremented the specific diff* counter.
		return
	}
	if err := writeDocument(ctx, opts, out); err != nil {
		log.Error.Printf("rf-combine: writing %q: %v", id, err)
		cnt.Inc(counters.Failed)
	}
}

func readDocument(ctx context.Context, path string) (doc xmlprofile.Document, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return xmlprofile.Document{}, err
	}
	defer file.CloseAndReport(ctx, in, &err)

	r := in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gr, gzErr := gzip.NewReader(r)
		if gzErr != nil {
			return xmlprofile.Document{}, rferrors.NewIOError(path, gzErr.Error())
		}
		defer gr.Close()
		doc, err = xmlprofile.Read(gr)
		return doc, err
	}
	doc, err = xmlprofile.Read(r)
	return doc, err
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
