package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"

	"github.com/gwlsn/encbench/internal/bench"
	"github.com/gwlsn/encbench/internal/compare"
	"github.com/gwlsn/encbench/internal/metrics"
)

// RDRow is one operating point in the rate-distortion dump consumed by
// external plotting tools.
type RDRow struct {
	Test     string `csv:"test"`
	Sequence string `csv:"sequence"`
	Point    int    `csv:"point"`
	Rate     string `csv:"rate_bps"`
	Seconds  string `csv:"encode_secs"`
	PSNR     string `csv:"psnr_avg"`
	SSIM     string `csv:"ssim_avg"`
	VMAF     string `csv:"vmaf_avg"`
}

// WriteRDPoints dumps every measured operating point of every test and
// sequence as CSV.
func WriteRDPoints(w io.Writer, cmp *compare.Comparator, tc *bench.TesterContext) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	for _, t := range tc.Tests() {
		for _, seq := range tc.Sequences() {
			series, err := cmp.RDSeries(t, seq)
			if err != nil {
				return fmt.Errorf("collecting points for %s/%s: %w", t.Name, seq.Stem(), err)
			}
			for _, p := range series {
				row := RDRow{
					Test:     t.Name,
					Sequence: seq.Stem(),
					Point:    p.Index,
					Rate:     Format(p.Rate),
					Seconds:  Format(p.Seconds),
					PSNR:     Format(p.Quality[metrics.FieldPSNR]),
					SSIM:     Format(p.Quality[metrics.FieldSSIM]),
					VMAF:     Format(p.Quality[metrics.FieldVMAF]),
				}
				if err := enc.Encode(row); err != nil {
					return fmt.Errorf("encoding point row: %w", err)
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
