// diffexp runs the statistics engine's differential expression analysis for
// every platform of an experiment that has contrasts, and merges the
// per-contrast statistics into one <accession>_<platform>-analytics.tsv per
// platform. Results can optionally be copied to Google Storage and loaded
// into BigQuery.
//
// Exit codes: 0 on success, 3 if the engine failed on any platform, 1 for
// anything else.
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
	"github.com/carbocation/exprqc/publish"
	"github.com/carbocation/exprqc/statsengine"
	"github.com/carbocation/pfx"
)

func main() {
	var (
		opts                          pipeline.Options
		engine, engineArgs            string
		destination, project, dataset string
	)
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to the experiment's <accession>-configuration.xml")
	flag.StringVar(&opts.CataloguePath, "catalogue", "", "Raw-assay catalogue (microarray only). May be a gs:// path and may be compressed.")
	flag.StringVar(&opts.TechnologyPath, "technology", "", "Delimited table with array_design and technology columns (microarray only)")
	flag.StringVar(&opts.ExpressionsDir, "expressions", "", "Directory holding <accession>_<platform>-normalized-expressions.tsv or <accession>-raw-counts.tsv")
	flag.StringVar(&opts.OutputDir, "out", "", "Directory to which the merged results and plot data are written")
	flag.StringVar(&engine, "engine", "", "Statistics engine executable, e.g. Rscript")
	flag.StringVar(&engineArgs, "engineargs", "", "Space-separated arguments placed before the engine's mode arguments")
	flag.StringVar(&opts.WorkDir, "workdir", "", "Directory for per-platform temporary files. Defaults to the system temporary directory.")
	flag.IntVar(&opts.MinReplicates, "minreplicates", design.DefaultMinReplicates, "Smallest assay group that may take part in a contrast")
	flag.StringVar(&destination, "publish", "", "(Optional) gs://bucket/prefix to which results tables are copied")
	flag.StringVar(&project, "project", "", "(Optional) Google Cloud project hosting the BigQuery dataset")
	flag.StringVar(&dataset, "dataset", "", "(Optional) BigQuery dataset into which results tables are loaded. Requires -publish and -project.")
	flag.Parse()

	if opts.ConfigPath == "" || opts.ExpressionsDir == "" || opts.OutputDir == "" || engine == "" {
		flag.PrintDefaults()
		os.Exit(pipeline.ExitFailure)
	}

	opts.ConfigPath = exprqc.ExpandHome(opts.ConfigPath)
	opts.CataloguePath = exprqc.ExpandHome(opts.CataloguePath)
	opts.TechnologyPath = exprqc.ExpandHome(opts.TechnologyPath)
	opts.ExpressionsDir = exprqc.ExpandHome(opts.ExpressionsDir)
	opts.OutputDir = exprqc.ExpandHome(opts.OutputDir)
	opts.WorkDir = exprqc.ExpandHome(opts.WorkDir)
	opts.Engine = statsengine.New(exprqc.ExpandHome(engine), strings.Fields(engineArgs)...)

	ctx := context.Background()

	if exprqc.IsGoogleStorage(opts.CataloguePath) || exprqc.IsGoogleStorage(opts.TechnologyPath) {
		client, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		opts.Storage = client
	}

	var uploader *publish.Uploader
	if destination != "" {
		var err error
		if uploader, err = publish.New(ctx, destination, project, dataset); err != nil {
			log.Fatalln(pfx.Err(err))
		}
		opts.Publisher = uploader
	}

	out, err := pipeline.RunDE(opts)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	for _, path := range out.Written {
		log.Println("Wrote", path)
	}

	if uploader != nil {
		uploader.Close()
	}
	if opts.Storage != nil {
		opts.Storage.Close()
	}
	os.Exit(out.ExitCode())
}
