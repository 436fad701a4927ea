package technology

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/BenLubar/memoize"
	"github.com/carbocation/exprqc"
	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// Lookup answers which technology an array design uses, e.g. "Affymetrix
// GeneChip" or "Illumina BeadChip".
type Lookup interface {
	Technology(arrayDesign string) (string, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(arrayDesign string) (string, error)

func (f LookupFunc) Technology(arrayDesign string) (string, error) {
	return f(arrayDesign)
}

type arrayDesignTechnology struct {
	ArrayDesign string `csv:"array_design"`
	Technology  string `csv:"technology"`
}

// TableLookup is an in-memory accession => technology table.
type TableLookup map[string]string

func (t TableLookup) Technology(arrayDesign string) (string, error) {
	tech, exists := t[arrayDesign]
	if !exists || strings.TrimSpace(tech) == "" {
		return "", fmt.Errorf("%w: no technology recorded for array design %s", ErrUnknownTechnology, arrayDesign)
	}

	return tech, nil
}

// ReadTable loads a delimited file with array_design and technology columns.
// The path may be local or gs:// and may be compressed.
func ReadTable(path string, client *storage.Client) (TableLookup, error) {
	data, err := exprqc.ReadAll(path, client)
	if err != nil {
		return nil, err
	}

	return ParseTable(data)
}

// ParseTable parses the contents of a technology table.
func ParseTable(data []byte) (TableLookup, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = exprqc.DetermineDelimiter(data)
	r.LazyQuotes = true

	records := []*arrayDesignTechnology{}
	if err := gocsv.UnmarshalCSV(r, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make(TableLookup, len(records))
	for _, record := range records {
		accession := strings.TrimSpace(record.ArrayDesign)
		if accession == "" {
			continue
		}
		out[accession] = strings.TrimSpace(record.Technology)
	}

	return out, nil
}

// Memoized remembers every answer of l, including failures, so that each
// array design is resolved at most once per run.
func Memoized(l Lookup) Lookup {
	fn := memoize.Memoize(l.Technology).(func(string) (string, error))

	return LookupFunc(fn)
}

// ClassifyArrayDesign resolves an array design's technology and classifies it.
func ClassifyArrayDesign(l Lookup, arrayDesign string, colour design.Colour) (Mode, error) {
	if colour == design.TwoColour {
		return Agilent2Colour, nil
	}

	tech, err := l.Technology(arrayDesign)
	if err != nil {
		return 0, err
	}

	mode, err := Classify(tech, colour)
	if err != nil {
		return 0, fmt.Errorf("array design %s: %w", arrayDesign, err)
	}

	return mode, nil
}
