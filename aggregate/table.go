package aggregate

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/exprqc"
	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"
)

// ErrMalformedStatistic marks a statistic slot that is neither a number nor
// the missing-value marker.
var ErrMalformedStatistic = errors.New("malformed statistic")

// Tuple holds one contrast's statistics for one feature, in layout order. An
// invalid slot is missing.
type Tuple []null.String

// Table is one contrast's sparse statistics, keyed by feature identifier.
type Table map[string]Tuple

// ReadTableFile reads a per-contrast table from a local or gs:// path,
// optionally compressed.
func ReadTableFile(path string, client *storage.Client, layout Layout) (Table, error) {
	data, err := exprqc.ReadAll(path, client)
	if err != nil {
		return nil, err
	}

	t, err := ParseTable(data, layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// ReadTable reads a per-contrast table from r.
func ReadTable(r io.Reader, layout Layout) (Table, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return ParseTable(data, layout)
}

// ParseTable parses a per-contrast statistics table. The first column holds
// the feature identifier; the layout's statistics are located by header name
// and any other columns are ignored. Values pass through untouched once
// validated.
func ParseTable(data []byte, layout Layout) (Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty statistics table", ErrMalformedStatistic)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = exprqc.DetermineDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, pfx.Err(err)
	}

	cols := make([]int, layout.Width())
	for i, stat := range layout.Statistics {
		cols[i] = -1
		for j, name := range header {
			if j > 0 && strings.TrimSpace(name) == stat {
				cols[i] = j
				break
			}
		}
		if cols[i] < 0 {
			return nil, fmt.Errorf("%w: no %q column in header %v", ErrMalformedStatistic, stat, header)
		}
	}

	out := make(Table)
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		feature := strings.TrimSpace(row[0])
		if feature == "" {
			return nil, fmt.Errorf("%w: line %d has no feature identifier", ErrMalformedStatistic, line)
		}
		if _, exists := out[feature]; exists {
			return nil, fmt.Errorf("%w: feature %s is listed more than once", ErrMalformedStatistic, feature)
		}

		tuple := make(Tuple, layout.Width())
		for i, col := range cols {
			if col >= len(row) {
				return nil, fmt.Errorf("%w: line %d has no %s value", ErrMalformedStatistic, line, layout.Statistics[i])
			}
			v, err := ParseValue(row[col])
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, layout.Statistics[i], err)
			}
			tuple[i] = v
		}
		out[feature] = tuple
	}

	return out, nil
}

// ParseValue accepts a decimal number, which is kept verbatim, or the
// missing-value marker. R's NaN, Inf and -Inf are numbers; hexadecimal floats,
// spelled-out infinities and blank cells are not.
func ParseValue(s string) (null.String, error) {
	s = strings.TrimSpace(s)
	if s == MissingValue {
		return null.String{}, nil
	}

	if _, err := strconv.ParseFloat(s, 64); err != nil || !decimal(s) {
		return null.String{}, fmt.Errorf("%w: %q", ErrMalformedStatistic, s)
	}

	return null.StringFrom(s), nil
}

// decimal rejects the float spellings strconv accepts but R never writes.
func decimal(s string) bool {
	if strings.ContainsAny(s, "xX_") {
		return false
	}

	return !strings.Contains(strings.ToLower(s), "infinity")
}
