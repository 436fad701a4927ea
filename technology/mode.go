// Package technology decides which statistical model family an array design
// belongs to.
package technology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carbocation/exprqc/design"
)

// ErrUnknownTechnology means an array design could not be classified. The
// downstream statistics cannot be chosen without it, so the platform stops.
var ErrUnknownTechnology = errors.New("unknown array technology")

// Mode is the processing mode handed to the statistics engine.
type Mode int

const (
	Affy Mode = iota + 1
	Lumi
	Agilent1Colour
	Agilent2Colour
)

func (m Mode) String() string {
	switch m {
	case Affy:
		return "affy"
	case Lumi:
		return "lumi"
	case Agilent1Colour:
		return "agil1"
	case Agilent2Colour:
		return "agil2"
	}

	return fmt.Sprintf("Mode(%d)", int(m))
}

// TwoColour reports whether the mode processes Cy3/Cy5 channel pairs.
func (m Mode) TwoColour() bool {
	return m == Agilent2Colour
}

// Vendor substrings, in the order they are tried.
var vendorModes = []struct {
	Vendor string
	Mode   Mode
}{
	{"affymetrix", Affy},
	{"illumina", Lumi},
	{"agilent", Agilent1Colour},
}

// Classify maps a free-text technology description to a Mode. Two-colour
// experiments are always Agilent2Colour. Otherwise the description is matched
// case-insensitively against Affymetrix, then Illumina, then Agilent.
func Classify(vendor string, colour design.Colour) (Mode, error) {
	switch colour {
	case design.TwoColour:
		return Agilent2Colour, nil
	case design.OneColour:
	default:
		return 0, fmt.Errorf("%w: unsupported colour mode %v", ErrUnknownTechnology, colour)
	}

	lower := strings.ToLower(vendor)
	for _, v := range vendorModes {
		if strings.Contains(lower, v.Vendor) {
			return v.Mode, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownTechnology, vendor)
}

// StripDyeLabel recovers the biological assay name from a two-colour channel
// name such as "hyb1.Cy5", returning the name and the dye label separately.
func StripDyeLabel(name string) (string, string) {
	return design.StripDyeLabel(name)
}
