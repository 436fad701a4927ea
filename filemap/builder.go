package filemap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/technology"
)

// Entry is one logical assay on a platform. Two-colour arrays fold their Cy3
// and Cy5 channels into a single entry with one raw file.
type Entry struct {
	AssayName   string
	ArrayDesign string
	File        string

	// FactorKey is the display key for the entry. For two-colour entries it
	// lists both channels.
	FactorKey string

	// FactorKeys holds the per-dye factor keys of a two-colour entry.
	FactorKeys map[string]string
}

// Platform is the file mapping for one array design.
type Platform struct {
	ArrayDesign string
	Mode        technology.Mode
	Entries     []*Entry
}

// Mapping is arrayDesign => factorKey => assayName => raw file path.
type Mapping map[string]map[string]map[string]string

// Files returns the platform's factorKey => assayName => raw file map.
func (p *Platform) Files() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, e := range p.Entries {
		byAssay, exists := out[e.FactorKey]
		if !exists {
			byAssay = make(map[string]string)
			out[e.FactorKey] = byAssay
		}
		byAssay[e.AssayName] = e.File
	}

	return out
}

// AssayNames lists the platform's logical assays in sorted order.
func (p *Platform) AssayNames() []string {
	out := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.AssayName)
	}

	return out
}

// BuildPlatform maps the catalogue records of one array design onto the
// assays the design actually uses. Records whose (label-stripped) names are
// not in the design are skipped: the catalogue can describe assays that the
// configuration deliberately left out. If the array design cannot be
// classified, the whole platform fails with technology.ErrUnknownTechnology.
func BuildPlatform(cfg *design.ExperimentConfig, records []AssayRecord, arrayDesign string, lookup technology.Lookup) (*Platform, error) {
	mode, err := technology.ClassifyArrayDesign(lookup, arrayDesign, cfg.Type.Colour())
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{})
	for _, name := range cfg.AllAssayNames() {
		base, _ := technology.StripDyeLabel(name)
		known[base] = struct{}{}
	}

	p := &Platform{
		ArrayDesign: arrayDesign,
		Mode:        mode,
		Entries:     make([]*Entry, 0),
	}
	byName := make(map[string]*Entry)

	for _, rec := range records {
		if rec.ArrayDesign != arrayDesign {
			continue
		}

		name := rec.Name
		if mode.TwoColour() {
			name = rec.BaseName()
		}
		if _, exists := known[name]; !exists {
			continue
		}

		entry, exists := byName[name]
		if !exists {
			entry = &Entry{
				AssayName:   name,
				ArrayDesign: arrayDesign,
				File:        rec.File,
			}
			byName[name] = entry
			p.Entries = append(p.Entries, entry)
		} else if !mode.TwoColour() {
			return nil, fmt.Errorf("assay %s is listed more than once on %s", name, arrayDesign)
		} else if entry.File != rec.File {
			return nil, fmt.Errorf("the channels of two-colour assay %s point to different raw files: %s and %s", name, entry.File, rec.File)
		}

		if entry.File == "" {
			return nil, fmt.Errorf("assay %s on %s has no raw data file", name, arrayDesign)
		}

		if !mode.TwoColour() {
			entry.FactorKey = rec.FactorKey()
			continue
		}

		label := rec.DyeLabel()
		if label == "" {
			return nil, fmt.Errorf("two-colour assay %s on %s has no dye label", rec.Name, arrayDesign)
		}
		if entry.FactorKeys == nil {
			entry.FactorKeys = make(map[string]string)
		}
		if _, dup := entry.FactorKeys[label]; dup {
			return nil, fmt.Errorf("two-colour assay %s has more than one %s channel", name, label)
		}
		entry.FactorKeys[label] = rec.FactorKey()
	}

	if len(p.Entries) < 1 {
		return nil, fmt.Errorf("no raw data files in the catalogue match the assays on %s", arrayDesign)
	}

	sort.Slice(p.Entries, func(i, j int) bool { return p.Entries[i].AssayName < p.Entries[j].AssayName })

	if mode.TwoColour() {
		for _, e := range p.Entries {
			e.FactorKey = twoColourKey(e.FactorKeys)
		}
	}

	return p, nil
}

func twoColourKey(keys map[string]string) string {
	labels := make([]string, 0, len(keys))
	for label := range keys {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label+": "+keys[label])
	}

	return strings.Join(parts, "; ")
}

// Build runs BuildPlatform for every microarray analytics element, in
// configuration order, stopping at the first failure.
func Build(cfg *design.ExperimentConfig, records []AssayRecord, lookup technology.Lookup) (Mapping, []*Platform, error) {
	mapping := make(Mapping)
	platforms := make([]*Platform, 0, len(cfg.AnalyticsElements))

	for _, a := range cfg.AnalyticsElements {
		if a.IsRNASeq() {
			continue
		}

		p, err := BuildPlatform(cfg, records, a.ID, lookup)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", a.ID, err)
		}
		mapping[a.ID] = p.Files()
		platforms = append(platforms, p)
	}

	return mapping, platforms, nil
}
