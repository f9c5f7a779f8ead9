// Package report renders comparison figures as CSV and HTML. Values that
// could not be computed arrive as NaN and are rendered as "-" rather than
// crashing or printing "NaN" into spreadsheets.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/gwlsn/encbench/internal/compare"
	"github.com/gwlsn/encbench/internal/metrics"
)

// Row is one rendered comparison line. The csv tags name the full column
// set; a configured field selection projects a subset of them.
type Row struct {
	Scope    string `csv:"scope"`
	Test     string `csv:"test"`
	Anchor   string `csv:"anchor"`
	Sequence string `csv:"sequence"`
	Class    string `csv:"class"`
	Speedup  string `csv:"speedup"`
	BDPSNR   string `csv:"bd_psnr"`
	BDSSIM   string `csv:"bd_ssim"`
	BDVMAF   string `csv:"bd_vmaf"`
}

// Format renders a figure for display, "-" for NaN.
func Format(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

// Rows flattens a report into display rows, one per comparison at every
// aggregation level.
func Rows(rep *compare.Report) []Row {
	var rows []Row
	for _, r := range rep.Sequences {
		rows = append(rows, Row{
			Scope:    "sequence",
			Test:     r.Test,
			Anchor:   r.Anchor,
			Sequence: r.Sequence,
			Class:    r.Class,
			Speedup:  Format(meanSpeedup(r.Speedups)),
			BDPSNR:   Format(r.BDRate[metrics.FieldPSNR]),
			BDSSIM:   Format(r.BDRate[metrics.FieldSSIM]),
			BDVMAF:   Format(r.BDRate[metrics.FieldVMAF]),
		})
	}
	for _, r := range rep.Classes {
		rows = append(rows, Row{
			Scope:   "class",
			Test:    r.Test,
			Anchor:  r.Anchor,
			Class:   r.Class,
			Speedup: Format(r.Speedup),
			BDPSNR:  Format(r.BDRate[metrics.FieldPSNR]),
			BDSSIM:  Format(r.BDRate[metrics.FieldSSIM]),
			BDVMAF:  Format(r.BDRate[metrics.FieldVMAF]),
		})
	}
	for _, r := range rep.Overall {
		rows = append(rows, Row{
			Scope:   "overall",
			Test:    r.Test,
			Anchor:  r.Anchor,
			Speedup: Format(r.Speedup),
			BDPSNR:  Format(r.BDRate[metrics.FieldPSNR]),
			BDSSIM:  Format(r.BDRate[metrics.FieldSSIM]),
			BDVMAF:  Format(r.BDRate[metrics.FieldVMAF]),
		})
	}
	return rows
}

func meanSpeedup(speedups []float64) float64 {
	var sum float64
	var n int
	for _, s := range speedups {
		if !math.IsNaN(s) {
			sum += s
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// WriteCSV renders the report to w. fields selects and orders the columns;
// empty means all columns in declaration order. Unknown field names are an
// error so typos in the config do not silently drop columns.
func WriteCSV(w io.Writer, rep *compare.Report, fields []string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(cw)
	for _, row := range Rows(rep) {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encoding report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if len(fields) == 0 {
		_, err := w.Write(buf.Bytes())
		return err
	}
	return projectColumns(w, &buf, fields)
}

// projectColumns rewrites a CSV stream keeping only the named columns, in
// the given order.
func projectColumns(w io.Writer, r io.Reader, fields []string) error {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("reading rendered report: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	header := records[0]
	idx := make([]int, 0, len(fields))
	for _, f := range fields {
		i := slices.Index(header, strings.ToLower(f))
		if i < 0 {
			return fmt.Errorf("unknown report field %q (have %s)", f, strings.Join(header, ", "))
		}
		idx = append(idx, i)
	}
	cw := csv.NewWriter(w)
	for _, rec := range records {
		out := make([]string, len(idx))
		for j, i := range idx {
			out[j] = rec[i]
		}
		if err := cw.Write(out); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
