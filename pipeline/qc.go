package pipeline

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/filemap"
	"github.com/carbocation/exprqc/qcledger"
	"github.com/carbocation/exprqc/reconcile"
	"github.com/carbocation/exprqc/technology"
	"github.com/carbocation/pfx"
)

// RunQC runs the engine's QC pass over every microarray platform in turn and
// reconciles the design with whatever it rejects. If the design changed, the
// configuration document is rewritten and the previous one kept as an audit
// copy. The returned error is reserved for problems that stop the whole run
// before or after the platforms; a failed platform is reported in the
// Outcome and does not stop the others.
func RunQC(opts Options) (*Outcome, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("no statistics engine configured")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	records, err := filemap.ReadCatalogue(opts.CataloguePath, opts.Storage)
	if err != nil {
		return nil, err
	}

	lookup, err := opts.lookup()
	if err != nil {
		return nil, err
	}

	var ledger *qcledger.Ledger
	if opts.LedgerPath != "" {
		if ledger, err = qcledger.Open(opts.LedgerPath); err != nil {
			return nil, err
		}
		defer ledger.Close()
	}

	out := &Outcome{RejectedAssays: make(map[string][]string)}

	for _, a := range cfg.AnalyticsElements {
		if a.IsRNASeq() {
			continue
		}

		log.Printf("Running QC for %s on %s\n", cfg.Accession, a.ID)

		rejected, err := qcPlatform(opts, cfg, records, lookup, a.ID)
		if err != nil {
			out.fail(a.ID, err)
			continue
		}
		if len(rejected) < 1 {
			log.Printf("%s: all assays passed QC\n", a.ID)
			continue
		}
		out.RejectedAssays[a.ID] = rejected

		res := reconcile.Reconcile(cfg, a.ID, rejected)
		cfg = res.Config
		out.Reconciled = append(out.Reconciled, res)

		log.Printf("%s: QC rejected %s. Removed assays [%s], assay groups [%s], contrasts [%s]\n",
			a.ID,
			strings.Join(rejected, ", "),
			strings.Join(res.RemovedAssays, ", "),
			strings.Join(res.RemovedGroups, ", "),
			strings.Join(res.RemovedContrasts, ", "))

		if ledger != nil {
			if err := ledger.Record(cfg.Accession, res); err != nil {
				log.Printf("%s: could not record the QC rejections in %s: %v\n", a.ID, opts.LedgerPath, err)
				out.LedgerFailures = append(out.LedgerFailures, PlatformFailure{Platform: a.ID, Err: err})
			}
		}
	}

	if out.Changed() {
		if out.Backup, err = design.SaveWithBackup(opts.ConfigPath, cfg); err != nil {
			return out, err
		}
		log.Printf("Rewrote %s; the previous version is kept at %s\n", opts.ConfigPath, out.Backup)
	}

	return out, nil
}

// qcPlatform runs one platform's QC in its own temporary directory, which is
// removed before returning.
func qcPlatform(opts Options, cfg *design.ExperimentConfig, records []filemap.AssayRecord, lookup technology.Lookup, platform string) ([]string, error) {
	p, err := filemap.BuildPlatform(cfg, records, platform, lookup)
	if err != nil {
		return nil, err
	}

	tmp, err := ioutil.TempDir(opts.WorkDir, fmt.Sprintf("%s_%s-qc", cfg.Accession, platform))
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer os.RemoveAll(tmp)

	annotation := filepath.Join(tmp, "annotation.tsv")
	if err := writeFile(annotation, func(f *os.File) error { return filemap.WriteAnnotation(f, p) }); err != nil {
		return nil, err
	}

	verdict, err := opts.Engine.QC(p.Mode.String(), annotation, tmp)
	if err != nil {
		return nil, err
	}

	return verdict.Rejected, nil
}

// writeFile creates path and fills it with write. The file is removed if
// write fails.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return pfx.Err(f.Close())
}
