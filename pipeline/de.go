package pipeline

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/carbocation/exprqc/aggregate"
	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/filemap"
	"github.com/carbocation/exprqc/statsengine"
	"github.com/carbocation/exprqc/technology"
	"github.com/carbocation/pfx"
)

// RunDE runs the engine's differential expression pass for every analytics
// element that has contrasts, merges the per-contrast statistics into one
// table per platform, and publishes it if a Publisher is set. Elements
// without contrasts are skipped.
func RunDE(opts Options) (*Outcome, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("no statistics engine configured")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	var (
		records []filemap.AssayRecord
		lookup  technology.Lookup
	)
	if cfg.Type.Microarray() {
		if records, err = filemap.ReadCatalogue(opts.CataloguePath, opts.Storage); err != nil {
			return nil, err
		}
		if lookup, err = opts.lookup(); err != nil {
			return nil, err
		}
	}

	out := &Outcome{}

	for _, a := range cfg.AnalyticsElements {
		if !a.HasContrasts() {
			log.Printf("%s has no contrasts, skipping\n", a.ID)
			continue
		}

		log.Printf("Running differential expression for %s on %s (%d contrasts)\n", cfg.Accession, a.ID, len(a.Contrasts))

		path, err := dePlatform(opts, cfg, records, lookup, a)
		if err != nil {
			out.fail(a.ID, err)
			continue
		}
		out.Written = append(out.Written, path)

		if err := publish(opts, path); err != nil {
			out.fail(a.ID, err)
		}
	}

	return out, nil
}

func dePlatform(opts Options, cfg *design.ExperimentConfig, records []filemap.AssayRecord, lookup technology.Lookup, a *design.AnalyticsElement) (string, error) {
	tmp, err := ioutil.TempDir(opts.WorkDir, fmt.Sprintf("%s_%s-de", cfg.Accession, a.ID))
	if err != nil {
		return "", pfx.Err(err)
	}
	defer os.RemoveAll(tmp)

	mode := design.PlatformRNASeq
	annotation := filepath.Join(tmp, "annotation.tsv")

	if a.IsRNASeq() {
		if err := writeFile(annotation, func(f *os.File) error { return filemap.WriteGroups(f, cfg, a.ID) }); err != nil {
			return "", err
		}
	} else {
		p, err := filemap.BuildPlatform(cfg, records, a.ID, lookup)
		if err != nil {
			return "", err
		}
		mode = p.Mode.String()
		if err := writeFile(annotation, func(f *os.File) error { return filemap.WriteAnnotation(f, p) }); err != nil {
			return "", err
		}
	}

	contrasts := filepath.Join(tmp, "contrasts.tsv")
	if err := writeFile(contrasts, func(f *os.File) error { return filemap.WriteContrasts(f, cfg, a.ID) }); err != nil {
		return "", err
	}

	ids := make([]string, 0, len(a.Contrasts))
	for _, c := range a.Contrasts {
		ids = append(ids, c.ID)
	}

	engineOut := filepath.Join(tmp, "out")
	if err := os.Mkdir(engineOut, 0o755); err != nil {
		return "", pfx.Err(err)
	}

	res, err := opts.Engine.DE(mode, annotation, contrasts, ExpressionsFile(opts.ExpressionsDir, cfg.Accession, a.ID), engineOut, ids)
	if err != nil {
		return "", err
	}

	path, err := mergePlatform(opts, cfg, a, res.Stats)
	if err != nil {
		return "", err
	}

	// Plot data only outlives the temporary directory once the statistics
	// have been merged successfully. A platform's outputs are all written or
	// none are.
	copied := make([]string, 0, len(ids))
	for _, id := range ids {
		dst := PlotDataFile(opts.OutputDir, cfg.Accession, a.ID, id)
		if err := copyFile(res.PlotData[id], dst); err != nil {
			for _, written := range append(copied, path) {
				os.Remove(written)
			}
			return "", err
		}
		copied = append(copied, dst)
	}

	return path, nil
}

// mergePlatform reads the per-contrast tables named in stats (contrast id =>
// path), merges them in the element's contrast order and writes the results
// table. Contrasts without a table are filled with the missing-value marker.
func mergePlatform(opts Options, cfg *design.ExperimentConfig, a *design.AnalyticsElement, stats map[string]string) (string, error) {
	layout := aggregate.LayoutFor(a)

	tables := make(map[string]aggregate.Table, len(stats))
	for id, path := range stats {
		table, err := aggregate.ReadTableFile(path, opts.Storage, layout)
		if err != nil {
			return "", fmt.Errorf("contrast %s: %w", id, err)
		}
		tables[id] = table
	}

	results, err := aggregate.Merge(layout, cfg.ContrastsForAnalyticsElement(a.ID), tables)
	if err != nil {
		return "", err
	}

	path := ResultsFile(opts.OutputDir, cfg.Accession, a.ID)
	if err := aggregate.WriteFile(path, results); err != nil {
		return "", err
	}

	for _, s := range aggregate.Summarize(results) {
		log.Printf("%s %s: %d features with statistics, %d without. log2 fold change median %.3f, mean %.3f, sd %.3f\n", a.ID, s.Contrast, s.Present, s.Missing, s.MedianLog2FoldChange, s.MeanLog2FoldChange, s.SDLog2FoldChange)
	}
	log.Printf("Wrote %d features to %s\n", len(results.Rows), path)

	return path, nil
}

func publish(opts Options, path string) error {
	if opts.Publisher == nil {
		return nil
	}

	uri, err := opts.Publisher.Publish(path)
	if err != nil {
		return err
	}
	log.Printf("Published %s to %s\n", path, uri)

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return pfx.Err(err)
	}
	defer in.Close()

	return writeFile(dst, func(f *os.File) error {
		_, err := io.Copy(f, in)
		return pfx.Err(err)
	})
}

// MergeExisting merges per-contrast tables that are already on disk, without
// running the engine. For each platform, tables are looked for first in
// StatisticsDir/<platform>/ and then in StatisticsDir itself, named
// <contrastId>.stats.tsv.
func MergeExisting(opts Options) (*Outcome, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	out := &Outcome{}

	for _, a := range cfg.AnalyticsElements {
		if !a.HasContrasts() {
			continue
		}

		dir := filepath.Join(opts.StatisticsDir, a.ID)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = opts.StatisticsDir
		}

		stats := make(map[string]string)
		for _, c := range a.Contrasts {
			path := statsengine.StatsFile(dir, c.ID)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			stats[c.ID] = path
		}
		if len(stats) < 1 {
			out.fail(a.ID, fmt.Errorf("no per-contrast statistics found in %s", dir))
			continue
		}

		path, err := mergePlatform(opts, cfg, a, stats)
		if err != nil {
			out.fail(a.ID, err)
			continue
		}
		out.Written = append(out.Written, path)

		if err := publish(opts, path); err != nil {
			out.fail(a.ID, err)
		}
	}

	return out, nil
}
