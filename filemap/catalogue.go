// Package filemap cross-references an experiment's design with its raw-data
// catalogue to decide which raw file feeds which assay on which platform.
package filemap

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/exprqc"
	"github.com/carbocation/exprqc/technology"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// catalogueRow is one line of the long-form raw-assay catalogue: one row per
// factor value per assay. Assays without factors have a single row with empty
// factor columns.
type catalogueRow struct {
	Assay       string `csv:"assay"`
	ArrayDesign string `csv:"array_design"`
	Label       string `csv:"label"`
	File        string `csv:"file"`
	FactorName  string `csv:"factor_name"`
	FactorValue string `csv:"factor_value"`
}

// AssayRecord is everything the catalogue says about one assay (or, for
// two-colour arrays, one channel).
type AssayRecord struct {
	Name        string
	ArrayDesign string
	Label       string
	File        string
	Factors     map[string][]string
}

// BaseName is the record's assay name with any dye suffix removed.
func (r AssayRecord) BaseName() string {
	base, _ := technology.StripDyeLabel(r.Name)
	return base
}

// DyeLabel is the explicit label, falling back to the name's dye suffix.
func (r AssayRecord) DyeLabel() string {
	if r.Label != "" {
		return r.Label
	}
	_, label := technology.StripDyeLabel(r.Name)
	return label
}

// FactorKey joins every factor value of the assay, factors ordered by name,
// with ", ". It is for display in engine annotation only: different assays can
// share a key.
func (r AssayRecord) FactorKey() string {
	return FactorKey(r.Factors)
}

// FactorKey joins factor values ordered by factor name with ", ".
func FactorKey(factors map[string][]string) string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, 0, len(names))
	for _, name := range names {
		values = append(values, factors[name]...)
	}

	return strings.Join(values, ", ")
}

// ReadCatalogue loads the raw-assay catalogue at path (local or gs://,
// optionally compressed).
func ReadCatalogue(path string, client *storage.Client) ([]AssayRecord, error) {
	data, err := exprqc.ReadAll(path, client)
	if err != nil {
		return nil, err
	}

	return ParseCatalogue(data)
}

// ParseCatalogue collapses catalogue rows into one record per assay name and
// label, in order of first appearance.
func ParseCatalogue(data []byte) ([]AssayRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = exprqc.DetermineDelimiter(data)
	r.LazyQuotes = true

	rows := []*catalogueRow{}
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	type key struct{ name, label string }
	index := make(map[key]int)
	out := make([]AssayRecord, 0)

	for i, row := range rows {
		name := strings.TrimSpace(row.Assay)
		if name == "" {
			return nil, fmt.Errorf("catalogue row %d has no assay name", i+2)
		}

		k := key{name, strings.TrimSpace(row.Label)}
		pos, exists := index[k]
		if !exists {
			out = append(out, AssayRecord{
				Name:        name,
				ArrayDesign: strings.TrimSpace(row.ArrayDesign),
				Label:       k.label,
				File:        strings.TrimSpace(row.File),
				Factors:     make(map[string][]string),
			})
			pos = len(out) - 1
			index[k] = pos
		}

		rec := &out[pos]
		if file := strings.TrimSpace(row.File); file != "" && rec.File != "" && file != rec.File {
			return nil, fmt.Errorf("catalogue lists assay %s with two raw files: %s and %s", name, rec.File, file)
		} else if rec.File == "" {
			rec.File = file
		}
		if ad := strings.TrimSpace(row.ArrayDesign); ad != "" && rec.ArrayDesign != "" && ad != rec.ArrayDesign {
			return nil, fmt.Errorf("catalogue lists assay %s on two array designs: %s and %s", name, rec.ArrayDesign, ad)
		} else if rec.ArrayDesign == "" {
			rec.ArrayDesign = ad
		}

		if factor := strings.TrimSpace(row.FactorName); factor != "" {
			rec.Factors[factor] = append(rec.Factors[factor], strings.TrimSpace(row.FactorValue))
		}
	}

	return out, nil
}
