package design

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
	"golang.org/x/net/html/charset"
)

// The configuration document follows the Expression Atlas
// <exp>-configuration.xml layout.

type xmlConfiguration struct {
	XMLName        xml.Name       `xml:"configuration"`
	ExperimentType string         `xml:"experimentType,attr"`
	Analytics      []xmlAnalytics `xml:"analytics"`
}

type xmlAnalytics struct {
	ArrayDesign string          `xml:"array_design,omitempty"`
	AssayGroups []xmlAssayGroup `xml:"assay_groups>assay_group"`
	Contrasts   []xmlContrast   `xml:"contrasts>contrast"`
}

type xmlAssayGroup struct {
	ID     string     `xml:"id,attr"`
	Label  string     `xml:"label,attr,omitempty"`
	Assays []xmlAssay `xml:"assay"`
}

type xmlAssay struct {
	TechnicalReplicateID string `xml:"technical_replicate_id,attr,omitempty"`
	Name                 string `xml:",chardata"`
}

type xmlContrast struct {
	ID             string `xml:"id,attr"`
	Name           string `xml:"name"`
	ReferenceGroup string `xml:"reference_assay_group"`
	TestGroup      string `xml:"test_assay_group"`
}

// AccessionFromPath guesses the experiment accession from a file named like
// E-MTAB-1234-configuration.xml.
func AccessionFromPath(path string) string {
	base := filepath.Base(path)
	if idx := strings.Index(base, "-configuration"); idx > 0 {
		return base[:idx]
	}

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadConfigFile parses the configuration document at path.
func ReadConfigFile(path string) (*ExperimentConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	return ReadConfig(f, AccessionFromPath(path))
}

// ReadConfig parses a configuration document. Every reference is resolved
// while building the model, so a document naming an unknown assay group fails
// here rather than later. Group sizes are not checked; see Validate.
func ReadConfig(r io.Reader, accession string) (*ExperimentConfig, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	doc := xmlConfiguration{}
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedConfig, err)
	}

	typ, err := ParseExperimentType(doc.ExperimentType)
	if err != nil {
		return nil, err
	}

	if len(doc.Analytics) < 1 {
		return nil, fmt.Errorf("%w: no analytics elements", ErrMalformedConfig)
	}

	cfg := New(accession, typ)

	for _, analytics := range doc.Analytics {
		platform := strings.TrimSpace(analytics.ArrayDesign)
		if platform == "" {
			if typ.Microarray() {
				return nil, fmt.Errorf("%w: microarray analytics element has no array_design", ErrMalformedConfig)
			}
			platform = PlatformRNASeq
		}

		if _, err := cfg.AddAnalyticsElement(platform); err != nil {
			return nil, err
		}

		for _, group := range analytics.AssayGroups {
			names := make([]string, 0, len(group.Assays))
			for _, assay := range group.Assays {
				name := strings.TrimSpace(assay.Name)
				names = append(names, name)

				if _, exists := cfg.Assays[name]; exists {
					// Baseline configs may legitimately list an assay in
					// more than one group.
					continue
				}
				_, dye := StripDyeLabel(name)
				a := Assay{
					Name:                 name,
					TechnicalReplicateID: assay.TechnicalReplicateID,
				}
				if typ.TwoColour() {
					a.DyeLabel = dye
				}
				if typ.Microarray() {
					a.ArrayDesign = platform
				}
				if err := cfg.AddAssay(a); err != nil {
					return nil, err
				}
			}

			if _, err := cfg.AddAssayGroup(platform, group.ID, group.Label, names); err != nil {
				return nil, err
			}
		}

		for _, contrast := range analytics.Contrasts {
			if _, err := cfg.AddContrast(
				platform,
				strings.TrimSpace(contrast.ID),
				strings.TrimSpace(contrast.TestGroup),
				strings.TrimSpace(contrast.ReferenceGroup),
				strings.TrimSpace(contrast.Name),
			); err != nil {
				return nil, err
			}
		}
	}

	return cfg, nil
}

// WriteConfig serializes the model back into a configuration document.
func WriteConfig(w io.Writer, cfg *ExperimentConfig) error {
	doc := xmlConfiguration{
		ExperimentType: string(cfg.Type),
		Analytics:      make([]xmlAnalytics, 0, len(cfg.AnalyticsElements)),
	}

	for _, a := range cfg.AnalyticsElements {
		analytics := xmlAnalytics{}
		if !a.IsRNASeq() {
			analytics.ArrayDesign = a.ID
		}

		for _, g := range a.AssayGroups {
			group := xmlAssayGroup{ID: g.ID, Label: g.Label}
			for _, name := range g.Assays {
				assay := xmlAssay{Name: name}
				if registered, exists := cfg.Assays[name]; exists {
					assay.TechnicalReplicateID = registered.TechnicalReplicateID
				}
				group.Assays = append(group.Assays, assay)
			}
			analytics.AssayGroups = append(analytics.AssayGroups, group)
		}

		for _, c := range a.Contrasts {
			analytics.Contrasts = append(analytics.Contrasts, xmlContrast{
				ID:             c.ID,
				Name:           c.Name,
				ReferenceGroup: c.ReferenceGroupID,
				TestGroup:      c.TestGroupID,
			})
		}

		doc.Analytics = append(doc.Analytics, analytics)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return pfx.Err(err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return pfx.Err(err)
	}

	_, err := io.WriteString(w, "\n")
	return err
}
