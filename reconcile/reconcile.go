// Package reconcile applies a platform's QC verdict to an experiment design.
// Rejected assays are removed, groups that fall below the replicate threshold
// are pruned, and contrasts that lose a side are dropped. Every phase works on
// a copy, so the caller's configuration is never mutated.
package reconcile

import (
	"sort"

	"github.com/carbocation/exprqc/design"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Result is the terminal state of one reconciliation.
type Result struct {
	Platform string
	Config   *design.ExperimentConfig

	// Changed is true iff Config differs structurally from the input. Callers
	// must re-persist the configuration when it is set.
	Changed bool

	RemovedAssays    []string
	RemovedGroups    []string
	RemovedContrasts []string
}

// Reconcile runs the three phases for one platform's rejected assays. It
// never fails: names that are not in the design are ignored, as is an unknown
// platform.
func Reconcile(cfg *design.ExperimentConfig, platform string, rejected []string) Result {
	removed, touched, afterAssays := RemoveAssays(cfg, platform, rejected)
	prunedGroups, afterGroups := PruneInvalidGroups(afterAssays, platform, touched)
	prunedContrasts, out := PruneDanglingContrasts(afterGroups, platform)

	return Result{
		Platform:         platform,
		Config:           out,
		Changed:          !cmp.Equal(cfg, out, cmpopts.EquateEmpty()),
		RemovedAssays:    removed,
		RemovedGroups:    prunedGroups,
		RemovedContrasts: prunedContrasts,
	}
}

// RemoveAssays returns a copy of cfg with the rejected assays removed from
// every group of the platform's analytics element. For two-colour experiments
// a rejected array name takes every dye channel of that array with it. An
// assay that no group references any more is also dropped from the registry.
//
// Returns the assay names actually removed and the ids of the groups that lost
// at least one assay, both sorted.
func RemoveAssays(cfg *design.ExperimentConfig, platform string, rejected []string) (removed, touched []string, out *design.ExperimentConfig) {
	out = cfg.Clone()
	removed, touched = make([]string, 0), make([]string, 0)

	a := out.AnalyticsElement(platform)
	if a == nil {
		return removed, touched, out
	}

	seenAssay := make(map[string]struct{})
	seenGroup := make(map[string]struct{})
	for _, name := range rejected {
		for _, match := range out.MatchAssays(name) {
			if _, exists := seenAssay[match]; exists {
				continue
			}
			seenAssay[match] = struct{}{}

			groups := a.RemoveAssay(match)
			if len(groups) < 1 {
				continue
			}
			removed = append(removed, match)
			for _, gid := range groups {
				seenGroup[gid] = struct{}{}
			}
		}
	}

	referenced := make(map[string]struct{})
	for _, name := range out.AllAssayNames() {
		referenced[name] = struct{}{}
	}
	for _, name := range removed {
		if _, exists := referenced[name]; !exists {
			delete(out.Assays, name)
		}
	}

	for gid := range seenGroup {
		touched = append(touched, gid)
	}
	sort.Strings(removed)
	sort.Strings(touched)

	return removed, touched, out
}

// PruneInvalidGroups returns a copy of cfg without those of the touched groups
// that now hold fewer than MinReplicates assays. Groups that did not lose an
// assay are left alone whatever their size.
func PruneInvalidGroups(cfg *design.ExperimentConfig, platform string, touched []string) (pruned []string, out *design.ExperimentConfig) {
	out = cfg.Clone()
	pruned = make([]string, 0)

	a := out.AnalyticsElement(platform)
	if a == nil {
		return pruned, out
	}

	lost := make(map[string]struct{}, len(touched))
	for _, gid := range touched {
		lost[gid] = struct{}{}
	}

	kept := make([]*design.AssayGroup, 0, len(a.AssayGroups))
	for _, g := range a.AssayGroups {
		if _, wasTouched := lost[g.ID]; wasTouched && !out.IsGroupValid(g) {
			pruned = append(pruned, g.ID)
			continue
		}
		kept = append(kept, g)
	}
	a.AssayGroups = kept

	return pruned, out
}

// PruneDanglingContrasts returns a copy of cfg without the platform's
// contrasts whose reference or test group is gone or invalid. The surviving
// contrasts keep their order.
func PruneDanglingContrasts(cfg *design.ExperimentConfig, platform string) (pruned []string, out *design.ExperimentConfig) {
	out = cfg.Clone()
	pruned = make([]string, 0)

	a := out.AnalyticsElement(platform)
	if a == nil {
		return pruned, out
	}

	kept := make([]*design.Contrast, 0, len(a.Contrasts))
	for _, c := range a.Contrasts {
		if !out.IsGroupValid(a.Group(c.ReferenceGroupID)) || !out.IsGroupValid(a.Group(c.TestGroupID)) {
			pruned = append(pruned, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	a.Contrasts = kept

	return pruned, out
}
