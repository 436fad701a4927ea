// mergecontrasts merges per-contrast statistics tables that already exist on
// disk (<contrastId>.stats.tsv, optionally under a per-platform
// subdirectory) into one results table per platform, in the contrast order
// of the experiment's configuration. Features a contrast did not report are
// filled with NA.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/carbocation/exprqc"
	_ "github.com/carbocation/exprqc/compileinfoprint"
	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/pipeline"
	"github.com/carbocation/exprqc/publish"
	"github.com/carbocation/pfx"
)

func main() {
	var (
		opts                          pipeline.Options
		destination, project, dataset string
	)
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to the experiment's <accession>-configuration.xml")
	flag.StringVar(&opts.StatisticsDir, "stats", "", "Directory holding <contrastId>.stats.tsv files, or <platform>/<contrastId>.stats.tsv")
	flag.StringVar(&opts.OutputDir, "out", "", "Directory to which the merged results are written")
	flag.IntVar(&opts.MinReplicates, "minreplicates", design.DefaultMinReplicates, "Smallest assay group that may take part in a contrast")
	flag.StringVar(&destination, "publish", "", "(Optional) gs://bucket/prefix to which results tables are copied")
	flag.StringVar(&project, "project", "", "(Optional) Google Cloud project hosting the BigQuery dataset")
	flag.StringVar(&dataset, "dataset", "", "(Optional) BigQuery dataset into which results tables are loaded")
	flag.Parse()

	if opts.ConfigPath == "" || opts.StatisticsDir == "" || opts.OutputDir == "" {
		flag.PrintDefaults()
		os.Exit(pipeline.ExitFailure)
	}

	opts.ConfigPath = exprqc.ExpandHome(opts.ConfigPath)
	opts.StatisticsDir = exprqc.ExpandHome(opts.StatisticsDir)
	opts.OutputDir = exprqc.ExpandHome(opts.OutputDir)

	var uploader *publish.Uploader
	if destination != "" {
		var err error
		if uploader, err = publish.New(context.Background(), destination, project, dataset); err != nil {
			log.Fatalln(pfx.Err(err))
		}
		opts.Publisher = uploader

		existing, err := uploader.Published()
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		log.Printf("%d results tables are already published at %s; matching ones will be replaced\n", len(existing), destination)
	}

	out, err := pipeline.MergeExisting(opts)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	for _, path := range out.Written {
		log.Println("Wrote", path)
	}

	if uploader != nil {
		uploader.Close()
	}
	os.Exit(out.ExitCode())
}
