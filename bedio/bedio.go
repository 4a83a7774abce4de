// Package bedio writes peak calls as BED records: one tab-separated line
// per peak (transcript-id, start, end, score, p-value), sorted ascending
// by (transcript-id, start), with optional gzip compression.
package bedio

import (
	"context"
	"sort"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/rf/peakcall"
)

// Record is one BED line: a peak attributed to a transcript.
type Record struct {
	TranscriptID string
	Peak         peakcall.Peak
}

// Write sorts records ascending by (TranscriptID, Start) and writes them to
// path as BED. Gzip compression is applied when gzipOut is set, matching
// the corpus's convention of a plain ".gz" suffix rather than bgzf for
// small, non-indexed outputs.
func Write(ctx context.Context, path string, records []Record, gzipOut bool) (err error) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TranscriptID != sorted[j].TranscriptID {
			return sorted[i].TranscriptID < sorted[j].TranscriptID
		}
		return sorted[i].Peak.Start < sorted[j].Peak.Start
	})

	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)

	w := out.Writer(ctx)
	var tsvw *tsv.Writer
	if gzipOut {
		gw := gzip.NewWriter(w)
		defer func() {
			if cerr := gw.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		tsvw = tsv.NewWriter(gw)
	} else {
		tsvw = tsv.NewWriter(w)
	}

	for _, r := range sorted {
		tsvw.WriteString(r.TranscriptID)
		tsvw.WriteString(strconv.Itoa(r.Peak.Start))
		tsvw.WriteString(strconv.Itoa(r.Peak.End))
		tsvw.WriteString(strconv.FormatFloat(r.Peak.Score, 'f', 3, 64))
		tsvw.WriteString(strconv.FormatFloat(r.Peak.PValue, 'g', 4, 64))
		if err = tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}
