package design

import (
	"fmt"
	"strings"
)

// AddAnalyticsElement appends an empty element for the platform.
func (e *ExperimentConfig) AddAnalyticsElement(platform string) (*AnalyticsElement, error) {
	if strings.TrimSpace(platform) == "" {
		return nil, fmt.Errorf("%w: analytics element has no platform", ErrMalformedConfig)
	}
	if e.AnalyticsElement(platform) != nil {
		return nil, fmt.Errorf("%w: platform %s is listed more than once", ErrMalformedConfig, platform)
	}

	a := &AnalyticsElement{
		ID:          platform,
		AssayGroups: make([]*AssayGroup, 0),
		Contrasts:   make([]*Contrast, 0),
	}
	e.AnalyticsElements = append(e.AnalyticsElements, a)

	return a, nil
}

// AddAssay registers an assay. Names must be unique within the experiment.
func (e *ExperimentConfig) AddAssay(assay Assay) error {
	if strings.TrimSpace(assay.Name) == "" {
		return fmt.Errorf("%w: assay has no name", ErrMalformedConfig)
	}
	if _, exists := e.Assays[assay.Name]; exists {
		return fmt.Errorf("%w: assay %s is listed more than once", ErrMalformedConfig, assay.Name)
	}
	if e.Assays == nil {
		e.Assays = make(map[string]*Assay)
	}

	a := assay
	e.Assays[a.Name] = &a

	return nil
}

// AddAssayGroup adds a group of already-registered assays to the platform's
// element. Group sizes are not checked here: undersized groups are legal until
// a contrast tries to use them.
func (e *ExperimentConfig) AddAssayGroup(platform, groupID, label string, assayNames []string) (*AssayGroup, error) {
	a := e.AnalyticsElement(platform)
	if a == nil {
		return nil, fmt.Errorf("%w: assay group %s refers to unknown platform %s", ErrMalformedConfig, groupID, platform)
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, fmt.Errorf("%w: assay group on %s has no id", ErrMalformedConfig, platform)
	}
	if a.Group(groupID) != nil {
		return nil, fmt.Errorf("%w: assay group %s is listed more than once on %s", ErrMalformedConfig, groupID, platform)
	}

	g := &AssayGroup{
		ID:     groupID,
		Label:  label,
		Assays: make([]string, 0, len(assayNames)),
	}
	for _, name := range assayNames {
		if _, exists := e.Assays[name]; !exists {
			return nil, fmt.Errorf("%w: assay group %s refers to unknown assay %s", ErrMalformedConfig, groupID, name)
		}
		if g.Contains(name) {
			return nil, fmt.Errorf("%w: assay group %s lists assay %s more than once", ErrMalformedConfig, groupID, name)
		}
		g.Assays = append(g.Assays, name)
	}
	a.AssayGroups = append(a.AssayGroups, g)

	return g, nil
}

// AddContrast adds a test-vs-reference contrast between two existing groups of
// the platform's element. If id is empty it is derived from the group ids.
func (e *ExperimentConfig) AddContrast(platform, id, testGroupID, referenceGroupID, name string) (*Contrast, error) {
	a := e.AnalyticsElement(platform)
	if a == nil {
		return nil, fmt.Errorf("%w: contrast %s refers to unknown platform %s", ErrMalformedConfig, id, platform)
	}
	if testGroupID == referenceGroupID {
		return nil, fmt.Errorf("%w: contrast %s compares group %s to itself", ErrMalformedConfig, id, testGroupID)
	}
	for _, gid := range []string{testGroupID, referenceGroupID} {
		if a.Group(gid) == nil {
			return nil, fmt.Errorf("%w: contrast %s refers to unknown assay group %s on %s", ErrMalformedConfig, id, gid, platform)
		}
	}
	if id == "" {
		id = ContrastID(referenceGroupID, testGroupID)
	}
	if a.Contrast(id) != nil {
		return nil, fmt.Errorf("%w: contrast %s is listed more than once on %s", ErrMalformedConfig, id, platform)
	}

	c := &Contrast{
		ID:                 id,
		Name:               name,
		AnalyticsElementID: platform,
		ReferenceGroupID:   referenceGroupID,
		TestGroupID:        testGroupID,
	}
	a.Contrasts = append(a.Contrasts, c)

	return c, nil
}

// Clone returns a deep copy that shares nothing with the receiver.
func (e *ExperimentConfig) Clone() *ExperimentConfig {
	out := &ExperimentConfig{
		Accession:         e.Accession,
		Type:              e.Type,
		MinReplicates:     e.MinReplicates,
		AnalyticsElements: make([]*AnalyticsElement, 0, len(e.AnalyticsElements)),
		Assays:            make(map[string]*Assay, len(e.Assays)),
	}

	for name, assay := range e.Assays {
		a := *assay
		a.Factors = nil
		for _, f := range assay.Factors {
			a.Factors = append(a.Factors, Factor{Name: f.Name, Values: cloneStrings(f.Values)})
		}
		out.Assays[name] = &a
	}

	for _, element := range e.AnalyticsElements {
		a := &AnalyticsElement{
			ID:          element.ID,
			AssayGroups: make([]*AssayGroup, 0, len(element.AssayGroups)),
			Contrasts:   make([]*Contrast, 0, len(element.Contrasts)),
		}
		for _, g := range element.AssayGroups {
			a.AssayGroups = append(a.AssayGroups, &AssayGroup{
				ID:     g.ID,
				Label:  g.Label,
				Assays: cloneStrings(g.Assays),
			})
		}
		for _, c := range element.Contrasts {
			cc := *c
			a.Contrasts = append(a.Contrasts, &cc)
		}
		out.AnalyticsElements = append(out.AnalyticsElements, a)
	}

	return out
}

// Validate checks referential consistency: every group assay is registered
// and every contrast joins two valid groups of its own element.
func (e *ExperimentConfig) Validate() error {
	for _, a := range e.AnalyticsElements {
		for _, g := range a.AssayGroups {
			for _, name := range g.Assays {
				if _, exists := e.Assays[name]; !exists {
					return fmt.Errorf("%w: assay group %s refers to unknown assay %s", ErrMalformedConfig, g.ID, name)
				}
			}
		}
		for _, c := range a.Contrasts {
			if c.AnalyticsElementID != a.ID {
				return fmt.Errorf("%w: contrast %s is owned by %s but listed under %s", ErrMalformedConfig, c.ID, c.AnalyticsElementID, a.ID)
			}
			for _, gid := range []string{c.ReferenceGroupID, c.TestGroupID} {
				if g := a.Group(gid); !e.IsGroupValid(g) {
					return fmt.Errorf("%w: contrast %s uses assay group %s, which is missing or has fewer than %d assays", ErrMalformedConfig, c.ID, gid, e.minReplicates())
				}
			}
		}
	}

	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}

	out := make([]string, len(in))
	copy(out, in)

	return out
}
