// Package design holds the in-memory model of an expression experiment: its
// assays, the assay groups built from them, and the contrasts between those
// groups, one analytics element per platform. The model is plain data plus
// validity queries; it performs no I/O beyond the configuration codec.
package design

import (
	"sort"
	"strings"
)

// DefaultMinReplicates is the smallest assay group that may take part in a
// contrast.
const DefaultMinReplicates = 2

// PlatformRNASeq is the analytics element id used for sequencing experiments,
// which have no array design.
const PlatformRNASeq = "rnaseq"

// Assay is one hybridization (or, for two-colour arrays, one channel).
type Assay struct {
	Name                 string
	ArrayDesign          string
	Factors              []Factor
	DyeLabel             string
	RawFile              string
	TechnicalReplicateID string
}

// Factor is one experimental factor and the value(s) an assay takes for it.
type Factor struct {
	Name   string
	Values []string
}

// AssayGroup is a replicate set compared as one side of a contrast.
type AssayGroup struct {
	ID     string
	Label  string
	Assays []string
}

// Contains reports whether the group references the named assay.
func (g *AssayGroup) Contains(name string) bool {
	for _, v := range g.Assays {
		if v == name {
			return true
		}
	}

	return false
}

// Contrast compares a test assay group against a reference assay group.
type Contrast struct {
	ID                 string
	Name               string
	AnalyticsElementID string
	ReferenceGroupID   string
	TestGroupID        string
}

// ContrastID derives a contrast identifier from its two group ids.
func ContrastID(referenceGroupID, testGroupID string) string {
	return referenceGroupID + "_" + testGroupID
}

// AnalyticsElement is one platform's unit of analysis.
type AnalyticsElement struct {
	ID          string
	AssayGroups []*AssayGroup
	Contrasts   []*Contrast
}

// IsRNASeq reports whether the element describes sequencing rather than an
// array design.
func (a *AnalyticsElement) IsRNASeq() bool {
	return a.ID == PlatformRNASeq
}

// Group returns the assay group with the given id, or nil.
func (a *AnalyticsElement) Group(id string) *AssayGroup {
	for _, g := range a.AssayGroups {
		if g.ID == id {
			return g
		}
	}

	return nil
}

// Contrast returns the contrast with the given id, or nil.
func (a *AnalyticsElement) Contrast(id string) *Contrast {
	for _, c := range a.Contrasts {
		if c.ID == id {
			return c
		}
	}

	return nil
}

// HasContrasts is false for a vestigial element, which has nothing to report.
func (a *AnalyticsElement) HasContrasts() bool {
	return len(a.Contrasts) > 0
}

// AssayNames lists every assay referenced by the element's groups, in first
// appearance order.
func (a *AnalyticsElement) AssayNames() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, g := range a.AssayGroups {
		for _, name := range g.Assays {
			if _, exists := seen[name]; exists {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}

	return out
}

// RemoveAssay drops the named assay from every group of this element. It does
// not prune groups or contrasts; that policy belongs to reconciliation.
// Returns the ids of the groups that lost the assay.
func (a *AnalyticsElement) RemoveAssay(name string) []string {
	touched := make([]string, 0)
	for _, g := range a.AssayGroups {
		kept := g.Assays[:0]
		for _, v := range g.Assays {
			if v == name {
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) != len(g.Assays) {
			touched = append(touched, g.ID)
		}
		g.Assays = kept
	}

	return touched
}

// ExperimentConfig is the root of the model. It owns its analytics elements;
// assays are a shared registry keyed by name.
type ExperimentConfig struct {
	Accession         string
	Type              ExperimentType
	MinReplicates     int
	AnalyticsElements []*AnalyticsElement
	Assays            map[string]*Assay
}

// New returns an empty experiment of the given type.
func New(accession string, typ ExperimentType) *ExperimentConfig {
	return &ExperimentConfig{
		Accession:         accession,
		Type:              typ,
		MinReplicates:     DefaultMinReplicates,
		AnalyticsElements: make([]*AnalyticsElement, 0),
		Assays:            make(map[string]*Assay),
	}
}

// IsGroupValid is true iff the group has at least MinReplicates assays.
func (e *ExperimentConfig) IsGroupValid(g *AssayGroup) bool {
	if g == nil {
		return false
	}

	return len(g.Assays) >= e.minReplicates()
}

func (e *ExperimentConfig) minReplicates() int {
	if e.MinReplicates < 1 {
		return DefaultMinReplicates
	}

	return e.MinReplicates
}

// AnalyticsElement returns the element with the given platform id, or nil.
func (e *ExperimentConfig) AnalyticsElement(id string) *AnalyticsElement {
	for _, a := range e.AnalyticsElements {
		if a.ID == id {
			return a
		}
	}

	return nil
}

// ContrastsForAnalyticsElement returns the element's contrasts in canonical
// order, or nil if there is no such element.
func (e *ExperimentConfig) ContrastsForAnalyticsElement(id string) []*Contrast {
	a := e.AnalyticsElement(id)
	if a == nil {
		return nil
	}

	out := make([]*Contrast, len(a.Contrasts))
	copy(out, a.Contrasts)

	return out
}

// AllAssayNames lists, sorted, every assay referenced by any assay group.
func (e *ExperimentConfig) AllAssayNames() []string {
	seen := make(map[string]struct{})
	for _, a := range e.AnalyticsElements {
		for _, name := range a.AssayNames() {
			seen[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// RemoveAssay drops the named assay from every group of every element and from
// the assay registry. Removing an absent assay is a no-op.
func (e *ExperimentConfig) RemoveAssay(name string) {
	for _, a := range e.AnalyticsElements {
		a.RemoveAssay(name)
	}
	delete(e.Assays, name)
}

// MatchAssays returns the registered assay names that refer to the same
// physical array as name. For one-colour experiments that is name itself, if
// registered. For two-colour experiments every dye channel of the array
// matches, whether name carries a dye suffix or not.
func (e *ExperimentConfig) MatchAssays(name string) []string {
	out := make([]string, 0, 2)
	if !e.Type.TwoColour() {
		if _, exists := e.Assays[name]; exists {
			out = append(out, name)
		}
		return out
	}

	base, _ := StripDyeLabel(name)
	for candidate := range e.Assays {
		if cbase, _ := StripDyeLabel(candidate); cbase == base {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)

	return out
}

var dyeLabels = []string{"Cy3", "Cy5"}

// StripDyeLabel removes a trailing ".Cy3" or ".Cy5" (any case) from a
// two-colour channel name, returning the biological assay name and the label.
// Names without a dye suffix come back unchanged with an empty label.
func StripDyeLabel(name string) (base, label string) {
	lower := strings.ToLower(name)
	for _, dye := range dyeLabels {
		suffix := "." + strings.ToLower(dye)
		if strings.HasSuffix(lower, suffix) {
			return name[:len(name)-len(suffix)], dye
		}
	}

	return name, ""
}
