// Package pipeline runs one experiment's QC and differential expression
// passes, one platform at a time.
package pipeline

import (
	"fmt"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/statsengine"
	"github.com/carbocation/exprqc/technology"
)

// Publisher receives every results table once it has been written.
type Publisher interface {
	Publish(localPath string) (string, error)
}

// Options is everything a run needs. Nothing is read from the environment.
type Options struct {
	// ConfigPath is the experiment's configuration document. It is rewritten
	// (with an audit copy) when QC removes anything.
	ConfigPath string

	// CataloguePath and TechnologyPath may be local or gs:// paths.
	CataloguePath  string
	TechnologyPath string

	// Lookup overrides TechnologyPath when set.
	Lookup technology.Lookup

	Engine *statsengine.Engine

	// WorkDir holds the per-platform temporary directories. Empty means the
	// system default.
	WorkDir string

	// MinReplicates overrides the configuration's threshold when positive.
	MinReplicates int

	// LedgerPath is an optional SQLite file recording QC removals.
	LedgerPath string

	// ExpressionsDir holds the normalized expressions (microarray) or raw
	// counts (RNA-seq) the DE pass reads.
	ExpressionsDir string

	// StatisticsDir holds existing per-contrast tables for MergeExisting.
	StatisticsDir string

	OutputDir string

	// Publisher is optional.
	Publisher Publisher

	// Storage is only needed for gs:// inputs.
	Storage *storage.Client
}

// ResultsFile names the merged table of one platform.
func ResultsFile(outputDir, accession, platform string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s-analytics.tsv", accession, platform))
}

// PlotDataFile names the plot data kept for one contrast.
func PlotDataFile(outputDir, accession, platform, contrastID string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.%s.plotdata.tsv", accession, platform, contrastID))
}

// ExpressionsFile names the DE input of one platform.
func ExpressionsFile(expressionsDir, accession, platform string) string {
	if platform == design.PlatformRNASeq {
		return filepath.Join(expressionsDir, accession+"-raw-counts.tsv")
	}

	return filepath.Join(expressionsDir, fmt.Sprintf("%s_%s-normalized-expressions.tsv", accession, platform))
}

func (o *Options) loadConfig() (*design.ExperimentConfig, error) {
	cfg, err := design.ReadConfigFile(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.MinReplicates > 0 {
		cfg.MinReplicates = o.MinReplicates
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (o *Options) lookup() (technology.Lookup, error) {
	if o.Lookup != nil {
		return technology.Memoized(o.Lookup), nil
	}

	table, err := technology.ReadTable(o.TechnologyPath, o.Storage)
	if err != nil {
		return nil, err
	}

	return technology.Memoized(table), nil
}
