// arrayqc runs the statistics engine's quality control over every microarray
// platform of an experiment, removes the assays it rejects, and rewrites the
// experiment's configuration if anything changed. The previous configuration
// is kept alongside it with a .before-qc suffix.
//
// Exit codes: 0 if every assay passed, 2 if assays were rejected, 3 if the
// engine failed on any platform, 1 for anything else.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/exprqc"
	_ "github.com/carbocation/exprqc/compileinfoprint"
	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/pipeline"
	"github.com/carbocation/exprqc/statsengine"
	"github.com/carbocation/pfx"
)

func main() {
	var (
		opts            pipeline.Options
		engine          string
		engineArgs      string
		rejectionCode   int
		rejectionMarker string
	)
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to the experiment's <accession>-configuration.xml. Rewritten in place if QC removes assays.")
	flag.StringVar(&opts.CataloguePath, "catalogue", "", "Tab-delimited raw-assay catalogue with columns assay, array_design, label, file, factor_name, factor_value. May be a gs:// path and may be compressed.")
	flag.StringVar(&opts.TechnologyPath, "technology", "", "Delimited table with array_design and technology columns. May be a gs:// path.")
	flag.StringVar(&engine, "engine", "", "Statistics engine executable, e.g. Rscript")
	flag.StringVar(&engineArgs, "engineargs", "", "Space-separated arguments placed before the engine's mode arguments, e.g. the path to the analysis script")
	flag.IntVar(&rejectionCode, "rejectioncode", statsengine.DefaultRejectionExitCode, "Exit code with which the engine reports rejected assays")
	flag.StringVar(&rejectionMarker, "rejectionmarker", statsengine.DefaultRejectionMarker, "Prefix of the engine output line that lists rejected assays")
	flag.StringVar(&opts.WorkDir, "workdir", "", "Directory for per-platform temporary files. Defaults to the system temporary directory.")
	flag.IntVar(&opts.MinReplicates, "minreplicates", design.DefaultMinReplicates, "Smallest assay group that may take part in a contrast")
	flag.StringVar(&opts.LedgerPath, "ledger", "", "(Optional) SQLite file in which to record every removed assay, assay group and contrast")
	flag.Parse()

	if opts.ConfigPath == "" || opts.CataloguePath == "" || opts.TechnologyPath == "" || engine == "" {
		flag.PrintDefaults()
		os.Exit(pipeline.ExitFailure)
	}

	opts.ConfigPath = exprqc.ExpandHome(opts.ConfigPath)
	opts.CataloguePath = exprqc.ExpandHome(opts.CataloguePath)
	opts.TechnologyPath = exprqc.ExpandHome(opts.TechnologyPath)
	opts.WorkDir = exprqc.ExpandHome(opts.WorkDir)
	opts.LedgerPath = exprqc.ExpandHome(opts.LedgerPath)

	opts.Engine = statsengine.New(exprqc.ExpandHome(engine), strings.Fields(engineArgs)...)
	opts.Engine.RejectionExitCode = rejectionCode
	opts.Engine.RejectionMarker = rejectionMarker

	if exprqc.IsGoogleStorage(opts.CataloguePath) || exprqc.IsGoogleStorage(opts.TechnologyPath) {
		client, err := storage.NewClient(context.Background())
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		defer client.Close()
		opts.Storage = client
	}

	out, err := pipeline.RunQC(opts)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	code := out.ExitCode()
	log.Printf("QC finished with exit code %d\n", code)
	if opts.Storage != nil {
		opts.Storage.Close()
	}
	os.Exit(code)
}
