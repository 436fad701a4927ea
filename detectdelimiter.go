package exprqc

import (
	"bytes"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in data, assuming a CSV-like table. A tab anywhere in the header line
// settles it; otherwise the sniffer decides, falling back to tab, which is
// what expression tables use far more often than not.
func DetermineDelimiter(data []byte) rune {
	header := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		header = data[:idx]
	}
	if bytes.IndexByte(header, '\t') >= 0 {
		return '\t'
	}

	d := detector.New()
	delimiters := d.DetectDelimiter(bytes.NewReader(data), '"')

	if len(delimiters) > 0 && len(delimiters[0]) > 0 {
		return rune(delimiters[0][0])
	}

	return '\t'
}
