package aggregate

import (
	"math"
	"strconv"

	"github.com/carbocation/runningvariance"
	"github.com/montanaflynn/stats"
)

// Summary describes one contrast's column block of a results table.
type Summary struct {
	Contrast string
	Present  int
	Missing  int

	// The fold change summaries are NaN when the contrast reported no fold
	// changes.
	MedianLog2FoldChange float64
	MeanLog2FoldChange   float64
	SDLog2FoldChange     float64
}

// Summarize counts, per contrast, the features that have at least one
// statistic and describes the distribution of fold changes. It is only used
// for logging.
func Summarize(r *Results) []Summary {
	width := r.Layout.Width()
	fc := -1
	for i, stat := range r.Layout.Statistics {
		if stat == "log2foldchange" {
			fc = i
		}
	}

	out := make([]Summary, 0, len(r.Contrasts))
	for k, id := range r.Contrasts {
		s := Summary{
			Contrast:             id,
			MedianLog2FoldChange: math.NaN(),
			MeanLog2FoldChange:   math.NaN(),
			SDLog2FoldChange:     math.NaN(),
		}
		folds := make(stats.Float64Data, 0, len(r.Rows))
		rv := runningvariance.NewRunningStat()

		for _, row := range r.Rows {
			tuple := row.Values[k*width : (k+1)*width]
			present := false
			for _, v := range tuple {
				if v.Valid {
					present = true
					break
				}
			}
			if !present {
				s.Missing++
				continue
			}
			s.Present++

			if fc < 0 || !tuple[fc].Valid {
				continue
			}
			if x, err := strconv.ParseFloat(tuple[fc].ValueOrZero(), 64); err == nil && !math.IsNaN(x) {
				folds = append(folds, x)
				rv.Push(x)
			}
		}

		if len(folds) > 0 {
			if median, err := stats.Median(folds); err == nil {
				s.MedianLog2FoldChange = median
			}
			s.MeanLog2FoldChange = rv.Mean()
			if len(folds) > 1 {
				s.SDLog2FoldChange = rv.StandardDeviation()
			}
		}
		out = append(out, s)
	}

	return out
}
