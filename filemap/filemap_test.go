package filemap

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/technology"
	"github.com/google/go-cmp/cmp"
)

const oneColourCatalogue = `assay	array_design	label	file	factor_name	factor_value
a1	A-TEST-1		a1.CEL	genotype	wild type
a1	A-TEST-1		a1.CEL	time	1h
a2	A-TEST-1		a2.CEL	genotype	wild type
a2	A-TEST-1		a2.CEL	time	1h
a3	A-TEST-1		a3.CEL	genotype	mutant
a3	A-TEST-1		a3.CEL	time	1h
a4	A-TEST-1		a4.CEL	genotype	mutant
a4	A-TEST-1		a4.CEL	time	1h
stray	A-TEST-1		stray.CEL	genotype	mutant
a1	A-OTHER-1		other.CEL	genotype	mutant
`

var techTable = technology.TableLookup{
	"A-TEST-1":  "Affymetrix GeneChip",
	"A-AGIL-1":  "Agilent",
	"A-MYST-1":  "Mystery Arrays Inc",
	"A-OTHER-1": "Illumina",
}

func oneColourConfig(t *testing.T) *design.ExperimentConfig {
	t.Helper()

	cfg := design.New("E-TEST-1", design.TypeMicroarray1ColourDifferential)
	if _, err := cfg.AddAnalyticsElement("A-TEST-1"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a1", "a2", "a3", "a4"} {
		if err := cfg.AddAssay(design.Assay{Name: name, ArrayDesign: "A-TEST-1"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := cfg.AddAssayGroup("A-TEST-1", "g1", "", []string{"a1", "a2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.AddAssayGroup("A-TEST-1", "g2", "", []string{"a3", "a4"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.AddContrast("A-TEST-1", "", "g2", "g1", "'mutant' vs 'wild type'"); err != nil {
		t.Fatal(err)
	}

	return cfg
}

func TestParseCatalogue(t *testing.T) {
	catalogue := strings.Replace(oneColourCatalogue, "a1\tA-OTHER-1\t\tother.CEL\tgenotype\tmutant\n", "", 1)
	records, err := ParseCatalogue([]byte(catalogue))
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 5 {
		t.Fatalf("Expected 5 collapsed records, got %d", len(records))
	}
	a1 := records[0]
	if a1.Name != "a1" || a1.File != "a1.CEL" || a1.ArrayDesign != "A-TEST-1" {
		t.Errorf("Unexpected record %+v", a1)
	}
	if diff := cmp.Diff(map[string][]string{"genotype": {"wild type"}, "time": {"1h"}}, a1.Factors); diff != "" {
		t.Error(diff)
	}
	if a1.FactorKey() != "wild type, 1h" {
		t.Errorf("Got factor key %q", a1.FactorKey())
	}
}

func TestParseCatalogueConflictingDesigns(t *testing.T) {
	_, err := ParseCatalogue([]byte(oneColourCatalogue))
	if err == nil {
		t.Fatalf("Expected an error for an assay listed on two array designs")
	}
}

func TestFactorKey(t *testing.T) {
	key := FactorKey(map[string][]string{
		"time":     {"1h"},
		"genotype": {"wild type"},
		"dose":     {"5", "10"},
	})
	if key != "5, 10, wild type, 1h" {
		t.Errorf("Got %q", key)
	}
}

func TestBuildPlatformOneColour(t *testing.T) {
	catalogue := strings.Replace(oneColourCatalogue, "a1\tA-OTHER-1\t\tother.CEL\tgenotype\tmutant\n", "", 1)
	records, err := ParseCatalogue([]byte(catalogue))
	if err != nil {
		t.Fatal(err)
	}

	mapping, platforms, err := Build(oneColourConfig(t), records, techTable)
	if err != nil {
		t.Fatal(err)
	}
	if len(platforms) != 1 || platforms[0].Mode != technology.Affy {
		t.Fatalf("Unexpected platforms %+v", platforms)
	}

	expected := Mapping{
		"A-TEST-1": {
			"wild type, 1h": {"a1": "a1.CEL", "a2": "a2.CEL"},
			"mutant, 1h":    {"a3": "a3.CEL", "a4": "a4.CEL"},
		},
	}
	if diff := cmp.Diff(expected, mapping); diff != "" {
		t.Errorf("Mapping mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"a1", "a2", "a3", "a4"}, platforms[0].AssayNames()); diff != "" {
		t.Errorf("stray assay was not skipped:\n%s", diff)
	}
}

func TestBuildPlatformUnknownTechnology(t *testing.T) {
	cfg := design.New("E-TEST-3", design.TypeMicroarray1ColourDifferential)
	if _, err := cfg.AddAnalyticsElement("A-MYST-1"); err != nil {
		t.Fatal(err)
	}

	_, err := BuildPlatform(cfg, nil, "A-MYST-1", techTable)
	if !errors.Is(err, technology.ErrUnknownTechnology) {
		t.Errorf("Expected ErrUnknownTechnology, got %v", err)
	}

	_, _, err = Build(cfg, nil, techTable)
	if !errors.Is(err, technology.ErrUnknownTechnology) {
		t.Errorf("Expected Build to propagate ErrUnknownTechnology, got %v", err)
	}
}

const twoColourCatalogue = `assay	array_design	label	file	factor_name	factor_value
hyb1	A-AGIL-1	Cy3	hyb1.txt	genotype	wild type
hyb1	A-AGIL-1	Cy5	hyb1.txt	genotype	mutant
hyb2.Cy3	A-AGIL-1		hyb2.txt	genotype	mutant
hyb2.Cy5	A-AGIL-1		hyb2.txt	genotype	wild type
hyb3	A-AGIL-1	Cy3	hyb3.txt	genotype	mutant
`

func TestBuildPlatformTwoColour(t *testing.T) {
	cfg := design.New("E-TEST-2", design.TypeMicroarray2ColourDifferential)
	if _, err := cfg.AddAnalyticsElement("A-AGIL-1"); err != nil {
		t.Fatal(err)
	}
	names := []string{"hyb1.Cy3", "hyb1.Cy5", "hyb2.Cy3", "hyb2.Cy5"}
	for _, name := range names {
		if err := cfg.AddAssay(design.Assay{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := cfg.AddAssayGroup("A-AGIL-1", "g1", "", []string{"hyb1.Cy3", "hyb2.Cy5"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.AddAssayGroup("A-AGIL-1", "g2", "", []string{"hyb1.Cy5", "hyb2.Cy3"}); err != nil {
		t.Fatal(err)
	}

	records, err := ParseCatalogue([]byte(twoColourCatalogue))
	if err != nil {
		t.Fatal(err)
	}

	p, err := BuildPlatform(cfg, records, "A-AGIL-1", techTable)
	if err != nil {
		t.Fatal(err)
	}
	if p.Mode != technology.Agilent2Colour {
		t.Errorf("Got mode %s", p.Mode)
	}
	if len(p.Entries) != 2 {
		t.Fatalf("Expected hyb1 and hyb2 folded into 2 entries, got %d", len(p.Entries))
	}

	hyb1 := p.Entries[0]
	if hyb1.AssayName != "hyb1" || hyb1.File != "hyb1.txt" {
		t.Errorf("Unexpected entry %+v", hyb1)
	}
	if diff := cmp.Diff(map[string]string{"Cy3": "wild type", "Cy5": "mutant"}, hyb1.FactorKeys); diff != "" {
		t.Error(diff)
	}
	if hyb1.FactorKey != "Cy3: wild type; Cy5: mutant" {
		t.Errorf("Got display key %q", hyb1.FactorKey)
	}

	var buf bytes.Buffer
	if err := WriteAnnotation(&buf, p); err != nil {
		t.Fatal(err)
	}
	expected := "AssayName\tArrayDataFile\tCy3Factors\tCy5Factors\n" +
		"hyb1\thyb1.txt\twild type\tmutant\n" +
		"hyb2\thyb2.txt\tmutant\twild type\n"
	if buf.String() != expected {
		t.Errorf("Annotation mismatch:\n%s", buf.String())
	}
}

func TestWriteContrasts(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteContrasts(&buf, oneColourConfig(t), "A-TEST-1"); err != nil {
		t.Fatal(err)
	}

	expected := "contrast_id\tcontrast_name\treference_assays\ttest_assays\n" +
		"g1_g2\t'mutant' vs 'wild type'\ta1;a2\ta3;a4\n"
	if buf.String() != expected {
		t.Errorf("Got:\n%s", buf.String())
	}
}

func TestWriteGroups(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGroups(&buf, oneColourConfig(t), "A-TEST-1"); err != nil {
		t.Fatal(err)
	}

	expected := "AssayName\tAssayGroup\tAssayGroupLabel\n" +
		"a1\tg1\t\n" +
		"a2\tg1\t\n" +
		"a3\tg2\t\n" +
		"a4\tg2\t\n"
	if buf.String() != expected {
		t.Errorf("Got:\n%s", buf.String())
	}

	if err := WriteGroups(&buf, oneColourConfig(t), "A-NOPE-1"); err == nil {
		t.Errorf("Expected an error for an unknown element")
	}
}
