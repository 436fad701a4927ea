package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/exprqc/design"
)

// MissingValue is written wherever a feature has no statistic for a contrast.
const MissingValue = "NA"

// Layout fixes the column schema of a results table: the name of the feature
// column and the statistic tuple reported for each contrast.
type Layout struct {
	Name          string
	FeatureColumn string
	Statistics    []string
}

// Layouts are keyed by platform kind. RNA-seq tuples carry no t-statistic and
// their p-value is the adjusted one.
var Layouts = map[string]Layout{
	"microarray": {
		Name:          "microarray",
		FeatureColumn: "Design Element",
		Statistics:    []string{"p-value", "t-statistic", "log2foldchange"},
	},
	"rnaseq": {
		Name:          "rnaseq",
		FeatureColumn: "Gene ID",
		Statistics:    []string{"p-value", "log2foldchange"},
	},
}

// Width is the number of slots in one contrast's tuple.
func (l Layout) Width() int {
	return len(l.Statistics)
}

func LayoutNames() string {
	names := make([]string, 0, len(Layouts))
	for m := range Layouts {
		names = append(names, m)
	}
	sort.Strings(names)

	return strings.Join(names, ", ")
}

// New returns the named layout.
func New(layout string) (Layout, error) {
	l, exists := Layouts[layout]
	if !exists {
		return Layout{}, fmt.Errorf("Layout %s is not found. Valid layout names include: %s", layout, LayoutNames())
	}

	return l, nil
}

// LayoutFor picks the layout for an analytics element.
func LayoutFor(a *design.AnalyticsElement) Layout {
	if a.IsRNASeq() {
		return Layouts["rnaseq"]
	}

	return Layouts["microarray"]
}
