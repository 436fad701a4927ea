package filemap

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/pfx"
)

// WriteAnnotation writes the platform's file/factor table that the statistics
// engine reads: one row per logical assay.
func WriteAnnotation(w io.Writer, p *Platform) error {
	c := csv.NewWriter(w)
	c.Comma = '\t'

	header := []string{"AssayName", "ArrayDataFile", "Factors"}
	if p.Mode.TwoColour() {
		header = []string{"AssayName", "ArrayDataFile", "Cy3Factors", "Cy5Factors"}
	}
	if err := c.Write(header); err != nil {
		return pfx.Err(err)
	}

	for _, e := range p.Entries {
		row := []string{e.AssayName, e.File, e.FactorKey}
		if p.Mode.TwoColour() {
			row = []string{e.AssayName, e.File, e.FactorKeys["Cy3"], e.FactorKeys["Cy5"]}
		}
		if err := c.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	c.Flush()
	return c.Error()
}

// WriteContrasts writes one row per contrast of the analytics element, with
// the assays of each side, for the engine's differential expression mode.
func WriteContrasts(w io.Writer, cfg *design.ExperimentConfig, analyticsElementID string) error {
	a := cfg.AnalyticsElement(analyticsElementID)
	if a == nil {
		return fmt.Errorf("no analytics element %s", analyticsElementID)
	}

	c := csv.NewWriter(w)
	c.Comma = '\t'

	if err := c.Write([]string{"contrast_id", "contrast_name", "reference_assays", "test_assays"}); err != nil {
		return pfx.Err(err)
	}

	for _, contrast := range a.Contrasts {
		reference, test := a.Group(contrast.ReferenceGroupID), a.Group(contrast.TestGroupID)
		if reference == nil || test == nil {
			return fmt.Errorf("contrast %s refers to a missing assay group", contrast.ID)
		}
		if err := c.Write([]string{
			contrast.ID,
			contrast.Name,
			strings.Join(reference.Assays, ";"),
			strings.Join(test.Assays, ";"),
		}); err != nil {
			return pfx.Err(err)
		}
	}

	c.Flush()
	return c.Error()
}

// WriteGroups writes one row per assay and group membership of the analytics
// element. Sequencing experiments have no raw-file mapping, so this is the
// annotation the engine gets for them.
func WriteGroups(w io.Writer, cfg *design.ExperimentConfig, analyticsElementID string) error {
	a := cfg.AnalyticsElement(analyticsElementID)
	if a == nil {
		return fmt.Errorf("no analytics element %s", analyticsElementID)
	}

	c := csv.NewWriter(w)
	c.Comma = '\t'

	if err := c.Write([]string{"AssayName", "AssayGroup", "AssayGroupLabel"}); err != nil {
		return pfx.Err(err)
	}
	for _, g := range a.AssayGroups {
		for _, name := range g.Assays {
			if err := c.Write([]string{name, g.ID, g.Label}); err != nil {
				return pfx.Err(err)
			}
		}
	}

	c.Flush()
	return c.Error()
}
