// Package xmlprofile reads and writes the reactivity XML document format:
// the output of rf-norm (and rf-silico/rf-modcall, out of scope here
// except as tool identifiers the combiner must recognize), and the input
// to rf-combine.
package xmlprofile

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/rf/rferrors"
)

// Tool identifies which upstream tool produced a profile.
type Tool string

const (
	ToolNorm    Tool = "rf-norm"
	ToolSilico  Tool = "rf-silico"
	ToolModcall Tool = "rf-modcall"
)

// Header carries the <data> element's attributes.
type Header struct {
	Combined bool
	Tool     Tool
	Reactive string
	Scoring  string
	Norm     string
	Win      string
	Offset   string
	Remap    string
	Max      string
	Pseudo   string
	MaxUMut  string
	// Algorithm is set to "Combined" by the combiner rather than being
	// compared across inputs.
	Algorithm string
}

// Transcript carries one <transcript> element: a sequence plus whichever
// primary/secondary value vectors its tool produces, and (only when
// combining) their per-base standard deviations.
type Transcript struct {
	ID       string
	Length   int
	Sequence string

	// PrimaryTag is one of "reactivity", "probability", or "score",
	// matching the element name written for Primary.
	PrimaryTag string
	Primary    []float64

	// SecondaryTag is "shannon" (silico/modcall) or "ratio" (modcall), or
	// empty when this tool has no secondary vector.
	SecondaryTag string
	Secondary    []float64

	PrimaryError   []float64 // nil unless Header.Combined
	SecondaryError []float64 // nil unless Header.Combined and SecondaryTag != ""
}

// Document is one complete reactivity profile document.
type Document struct {
	Header
	Transcript Transcript
}

// Decimals is the number of fractional digits written for every numeric
// vector.
const Decimals = 3

const wrapWidth = 60
const valuesPerLine = 60

type xmlDoc struct {
	XMLName xml.Name      `xml:"data"`
	Attrs   dataAttrs     `xml:",attr"`
	T       xmlTranscript `xml:"transcript"`
}

type dataAttrs struct {
	Combined  string `xml:"combined,attr"`
	Tool      string `xml:"tool,attr"`
	Reactive  string `xml:"reactive,attr,omitempty"`
	Keep      string `xml:"keep,attr,omitempty"`
	Scoring   string `xml:"scoring,attr,omitempty"`
	Norm      string `xml:"norm,attr,omitempty"`
	Win       string `xml:"win,attr,omitempty"`
	Offset    string `xml:"offset,attr,omitempty"`
	Remap     string `xml:"remap,attr,omitempty"`
	Max       string `xml:"max,attr,omitempty"`
	Pseudo    string `xml:"pseudo,attr,omitempty"`
	MaxUMut   string `xml:"maxumut,attr,omitempty"`
	Algorithm string `xml:"algorithm,attr,omitempty"`
}

type xmlTranscript struct {
	ID     string `xml:"id,attr"`
	Length int    `xml:"length,attr"`

	Sequence string `xml:"sequence"`

	Reactivity  string `xml:"reactivity,omitempty"`
	Probability string `xml:"probability,omitempty"`
	Score       string `xml:"score,omitempty"`
	Shannon     string `xml:"shannon,omitempty"`
	Ratio       string `xml:"ratio,omitempty"`

	ReactivityError  string `xml:"reactivity-error,omitempty"`
	ProbabilityError string `xml:"probability-error,omitempty"`
	ScoreError       string `xml:"score-error,omitempty"`
	ShannonError     string `xml:"shannon-error,omitempty"`
	RatioError       string `xml:"ratio-error,omitempty"`
}

// Write serializes doc.
func Write(w io.Writer, doc Document) error {
	attrs := dataAttrs{
		Combined:  boolString(doc.Combined),
		Tool:      string(doc.Tool),
		Reactive:  doc.Reactive,
		Scoring:   doc.Scoring,
		Norm:      doc.Norm,
		Win:       doc.Win,
		Offset:    doc.Offset,
		Remap:     doc.Remap,
		Max:       doc.Max,
		Pseudo:    doc.Pseudo,
		MaxUMut:   doc.MaxUMut,
		Algorithm: doc.Algorithm,
	}
	t := xmlTranscript{
		ID:       doc.Transcript.ID,
		Length:   doc.Transcript.Length,
		Sequence: wrap(doc.Transcript.Sequence, wrapWidth),
	}
	switch doc.Transcript.PrimaryTag {
	case "reactivity":
		t.Reactivity = formatCSV(doc.Transcript.Primary)
		if doc.Combined {
			t.ReactivityError = formatCSV(doc.Transcript.PrimaryError)
		}
	case "probability":
		t.Probability = formatCSV(doc.Transcript.Primary)
		if doc.Combined {
			t.ProbabilityError = formatCSV(doc.Transcript.PrimaryError)
		}
	case "score":
		t.Score = formatCSV(doc.Transcript.Primary)
		if doc.Combined {
			t.ScoreError = formatCSV(doc.Transcript.PrimaryError)
		}
	default:
		return rferrors.NewIOError("<xml>", fmt.Sprintf("unrecognized primary tag %q", doc.Transcript.PrimaryTag))
	}
	switch doc.Transcript.SecondaryTag {
	case "shannon":
		t.Shannon = formatCSV(doc.Transcript.Secondary)
		if doc.Combined {
			t.ShannonError = formatCSV(doc.Transcript.SecondaryError)
		}
	case "ratio":
		t.Ratio = formatCSV(doc.Transcript.Secondary)
		if doc.Combined {
			t.RatioError = formatCSV(doc.Transcript.SecondaryError)
		}
	case "":
		// no secondary vector for this tool
	default:
		return rferrors.NewIOError("<xml>", fmt.Sprintf("unrecognized secondary tag %q", doc.Transcript.SecondaryTag))
	}

	out := xmlDoc{Attrs: attrs, T: t}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(bw)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return rferrors.NewIOError("<xml>", err.Error())
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// Read parses a reactivity XML document.
func Read(r io.Reader) (Document, error) {
	var x xmlDoc
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return Document{}, rferrors.NewIOError("<xml>", err.Error())
	}
	reactive := x.Attrs.Reactive
	if reactive == "" {
		reactive = x.Attrs.Keep
	}
	doc := Document{
		Header: Header{
			Combined:  x.Attrs.Combined == "TRUE",
			Tool:      Tool(x.Attrs.Tool),
			Reactive:  reactive,
			Scoring:   x.Attrs.Scoring,
			Norm:      x.Attrs.Norm,
			Win:       x.Attrs.Win,
			Offset:    x.Attrs.Offset,
			Remap:     x.Attrs.Remap,
			Max:       x.Attrs.Max,
			Pseudo:    x.Attrs.Pseudo,
			MaxUMut:   x.Attrs.MaxUMut,
			Algorithm: x.Attrs.Algorithm,
		},
	}
	tr := Transcript{
		ID:       x.T.ID,
		Length:   x.T.Length,
		Sequence: unwrap(x.T.Sequence),
	}
	switch {
	case x.T.Reactivity != "":
		tr.PrimaryTag = "reactivity"
		var err error
		if tr.Primary, err = parseCSV(x.T.Reactivity); err != nil {
			return Document{}, err
		}
		if tr.PrimaryError, err = parseCSV(x.T.ReactivityError); err != nil {
			return Document{}, err
		}
	case x.T.Probability != "":
		tr.PrimaryTag = "probability"
		var err error
		if tr.Primary, err = parseCSV(x.T.Probability); err != nil {
			return Document{}, err
		}
		if tr.PrimaryError, err = parseCSV(x.T.ProbabilityError); err != nil {
			return Document{}, err
		}
	case x.T.Score != "":
		tr.PrimaryTag = "score"
		var err error
		if tr.Primary, err = parseCSV(x.T.Score); err != nil {
			return Document{}, err
		}
		if tr.PrimaryError, err = parseCSV(x.T.ScoreError); err != nil {
			return Document{}, err
		}
	}
	switch {
	case x.T.Shannon != "":
		tr.SecondaryTag = "shannon"
		var err error
		if tr.Secondary, err = parseCSV(x.T.Shannon); err != nil {
			return Document{}, err
		}
		if tr.SecondaryError, err = parseCSV(x.T.ShannonError); err != nil {
			return Document{}, err
		}
	case x.T.Ratio != "":
		tr.SecondaryTag = "ratio"
		var err error
		if tr.Secondary, err = parseCSV(x.T.Ratio); err != nil {
			return Document{}, err
		}
		if tr.SecondaryError, err = parseCSV(x.T.RatioError); err != nil {
			return Document{}, err
		}
	}
	doc.Transcript = tr
	return doc, nil
}

func boolString(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func wrap(s string, width int) string {
	if len(s) <= width {
		return "\n" + s + "\n"
	}
	var sb strings.Builder
	sb.WriteByte('\n')
	for i := 0; i < len(s); i += width {
		end := i + width
		if end > len(s) {
			end = len(s)
		}
		sb.WriteString(s[i:end])
		sb.WriteByte('\n')
	}
	return sb.String()
}

func unwrap(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "")
}

func formatCSV(values []float64) string {
	if values == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('\n')
	for i, v := range values {
		if i > 0 {
			if i%valuesPerLine == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(',')
			}
		}
		sb.WriteString(formatFloat(v))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', Decimals, 64)
}

func parseCSV(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if f == "NaN" {
			out = append(out, math.NaN())
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, rferrors.NewIOError("<xml>", fmt.Sprintf("parsing value %q: %v", f, err))
		}
		out = append(out, v)
	}
	return out, nil
}
