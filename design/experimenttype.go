package design

import (
	"fmt"
	"strings"
)

// ExperimentType is the Expression Atlas style type string, e.g.
// microarray_1colour_mrna_differential or rnaseq_mrna_baseline.
type ExperimentType string

const (
	TypeMicroarray1ColourDifferential         ExperimentType = "microarray_1colour_mrna_differential"
	TypeMicroarray2ColourDifferential         ExperimentType = "microarray_2colour_mrna_differential"
	TypeMicroarray1ColourMicroRNADifferential ExperimentType = "microarray_1colour_microrna_differential"
	TypeRNASeqDifferential                    ExperimentType = "rnaseq_mrna_differential"
	TypeRNASeqBaseline                        ExperimentType = "rnaseq_mrna_baseline"
)

// Colour is the number of channels hybridized per array.
type Colour int

const (
	OneColour Colour = iota + 1
	TwoColour
)

func (c Colour) String() string {
	switch c {
	case OneColour:
		return "1colour"
	case TwoColour:
		return "2colour"
	}

	return fmt.Sprintf("Colour(%d)", int(c))
}

// ParseExperimentType validates a type string.
func ParseExperimentType(s string) (ExperimentType, error) {
	t := ExperimentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Microarray() && !t.RNASeq() {
		return "", fmt.Errorf("%w: experiment type %q is neither microarray nor rnaseq", ErrMalformedConfig, s)
	}
	if !t.Baseline() && !t.Differential() {
		return "", fmt.Errorf("%w: experiment type %q is neither baseline nor differential", ErrMalformedConfig, s)
	}
	if t.Microarray() && !strings.Contains(string(t), "_1colour") && !strings.Contains(string(t), "_2colour") {
		return "", fmt.Errorf("%w: microarray experiment type %q does not declare its colour", ErrMalformedConfig, s)
	}

	return t, nil
}

func (t ExperimentType) Microarray() bool {
	return strings.HasPrefix(string(t), "microarray")
}

func (t ExperimentType) RNASeq() bool {
	return strings.HasPrefix(string(t), "rnaseq")
}

func (t ExperimentType) Baseline() bool {
	return strings.HasSuffix(string(t), "_baseline")
}

func (t ExperimentType) Differential() bool {
	return strings.HasSuffix(string(t), "_differential")
}

func (t ExperimentType) TwoColour() bool {
	return strings.Contains(string(t), "_2colour")
}

// Colour reports the channel mode. Sequencing experiments count as one colour.
func (t ExperimentType) Colour() Colour {
	if t.TwoColour() {
		return TwoColour
	}

	return OneColour
}
