package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/pfx"
)

// Row is one feature's statistics across every contrast, flattened in
// contrast order with Layout.Width() slots per contrast.
type Row struct {
	Feature string
	Values  Tuple
}

// Results is the merged, dense table for one platform.
type Results struct {
	Layout    Layout
	Contrasts []string
	Rows      []Row
}

// Merge builds the dense results table for a platform. Contrast order comes
// from contrasts, never from tables, which is keyed by contrast id. Rows are
// the union of all feature identifiers, sorted ascending, and a feature a
// contrast did not report gets the missing-value marker in every slot.
func Merge(layout Layout, contrasts []*design.Contrast, tables map[string]Table) (*Results, error) {
	known := make(map[string]struct{}, len(contrasts))
	res := &Results{
		Layout:    layout,
		Contrasts: make([]string, 0, len(contrasts)),
	}
	for _, c := range contrasts {
		if _, dup := known[c.ID]; dup {
			return nil, fmt.Errorf("contrast %s is listed more than once", c.ID)
		}
		known[c.ID] = struct{}{}
		res.Contrasts = append(res.Contrasts, c.ID)
	}

	features := make(map[string]struct{})
	for id, table := range tables {
		if _, exists := known[id]; !exists {
			log.Printf("Ignoring statistics for %s, which is not a contrast of this platform\n", id)
			continue
		}
		for feature, tuple := range table {
			if len(tuple) != layout.Width() {
				return nil, fmt.Errorf("%w: %s has %d statistics for %s, expected %d", ErrMalformedStatistic, id, len(tuple), feature, layout.Width())
			}
			features[feature] = struct{}{}
		}
	}
	for _, id := range res.Contrasts {
		if _, exists := tables[id]; !exists {
			log.Printf("No statistics for contrast %s; its columns will be %s\n", id, MissingValue)
		}
	}

	sorted := make([]string, 0, len(features))
	for feature := range features {
		sorted = append(sorted, feature)
	}
	sort.Strings(sorted)

	res.Rows = make([]Row, 0, len(sorted))
	for _, feature := range sorted {
		row := Row{
			Feature: feature,
			Values:  make(Tuple, 0, layout.Width()*len(res.Contrasts)),
		}
		for _, id := range res.Contrasts {
			tuple, exists := tables[id][feature]
			if !exists {
				tuple = make(Tuple, layout.Width())
			}
			row.Values = append(row.Values, tuple...)
		}
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

// Header names the feature column followed by <contrastId>.<statistic> for
// every contrast.
func (r *Results) Header() []string {
	out := make([]string, 0, 1+len(r.Contrasts)*r.Layout.Width())
	out = append(out, r.Layout.FeatureColumn)
	for _, id := range r.Contrasts {
		for _, stat := range r.Layout.Statistics {
			out = append(out, id+"."+stat)
		}
	}

	return out
}

// Write emits the table as tab-delimited text.
func (r *Results) Write(w io.Writer) error {
	c := csv.NewWriter(w)
	c.Comma = '\t'

	if err := c.Write(r.Header()); err != nil {
		return pfx.Err(err)
	}

	record := make([]string, 1+len(r.Contrasts)*r.Layout.Width())
	for _, row := range r.Rows {
		record[0] = row.Feature
		for i, v := range row.Values {
			record[i+1] = v.ValueOrZero()
			if !v.Valid {
				record[i+1] = MissingValue
			}
		}
		if err := c.Write(record); err != nil {
			return pfx.Err(err)
		}
	}

	c.Flush()
	return c.Error()
}

// WriteFile writes the table to path. Output goes to a temporary file in the
// same directory first, so a failure never leaves a partial table at path.
func WriteFile(path string, r *Results) error {
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return pfx.Err(err)
	}
	defer os.Remove(tmp.Name())

	if err := r.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(os.Rename(tmp.Name(), path))
}
