// filemapper prints, for every microarray platform of an experiment, which
// raw data file belongs to which assay and factor value combination. It is
// the mapping the QC and DE passes hand to the statistics engine.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"log"
	"os"

	"cloud.google.com/go/storage"
	"github.com/carbocation/exprqc"
	_ "github.com/carbocation/exprqc/compileinfoprint"
	"github.com/carbocation/exprqc/design"
	"github.com/carbocation/exprqc/filemap"
	"github.com/carbocation/exprqc/technology"
	"github.com/carbocation/pfx"
)

var (
	BufferSize = 4096 * 8
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	var configPath, cataloguePath, technologyPath string
	flag.StringVar(&configPath, "config", "", "Path to the experiment's <accession>-configuration.xml")
	flag.StringVar(&cataloguePath, "catalogue", "", "Raw-assay catalogue. May be a gs:// path and may be compressed.")
	flag.StringVar(&technologyPath, "technology", "", "Delimited table with array_design and technology columns. May be a gs:// path.")
	flag.Parse()

	if configPath == "" || cataloguePath == "" || technologyPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var client *storage.Client
	if exprqc.IsGoogleStorage(cataloguePath) || exprqc.IsGoogleStorage(technologyPath) {
		var err error
		client, err = storage.NewClient(context.Background())
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		defer client.Close()
	}

	cfg, err := design.ReadConfigFile(exprqc.ExpandHome(configPath))
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	records, err := filemap.ReadCatalogue(exprqc.ExpandHome(cataloguePath), client)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	table, err := technology.ReadTable(exprqc.ExpandHome(technologyPath), client)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	_, platforms, err := filemap.Build(cfg, records, technology.Memoized(table))
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	w := csv.NewWriter(STDOUT)
	w.Comma = '\t'
	defer w.Flush()

	w.Write([]string{"array_design", "mode", "factor_values", "assay", "file"})
	for _, p := range platforms {
		log.Printf("%s: %d assays, processed as %s\n", p.ArrayDesign, len(p.Entries), p.Mode)
		for _, e := range p.Entries {
			w.Write([]string{p.ArrayDesign, p.Mode.String(), e.FactorKey, e.AssayName, e.File})
		}
	}
}
