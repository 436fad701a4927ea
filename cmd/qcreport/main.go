// qcreport prints the QC ledger written by arrayqc as a tab-delimited table:
// either everything recorded for one experiment, or everything recorded
// since a given date. The date may be written in most common formats, e.g.
// 2022-04-12, 04/12/2022 or "April 12, 2022 15:04".
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carbocation/exprqc"
	_ "github.com/carbocation/exprqc/compileinfoprint"
	"github.com/carbocation/exprqc/qcledger"
	"github.com/carbocation/pfx"
)

var (
	BufferSize = 4096 * 8
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	var ledgerPath, experiment, since string
	flag.StringVar(&ledgerPath, "ledger", "", "SQLite ledger written by arrayqc -ledger")
	flag.StringVar(&experiment, "experiment", "", "Experiment accession to report on")
	flag.StringVar(&since, "since", "", "Report every experiment's removals recorded at or after this date")
	flag.Parse()

	if ledgerPath == "" || (experiment == "") == (since == "") {
		log.Println("Please provide -ledger and exactly one of -experiment or -since")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ledger, err := qcledger.Open(exprqc.ExpandHome(ledgerPath))
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	defer ledger.Close()

	var rejections []qcledger.Rejection
	if experiment != "" {
		rejections, err = ledger.Rejections(experiment)
	} else {
		var t time.Time
		if t, err = dateparse.ParseAny(since); err != nil {
			log.Fatalln(pfx.Err(err))
		}
		log.Println("Reporting removals since", t.Format(time.RFC3339))
		rejections, err = ledger.RejectionsSince(t)
	}
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	w := csv.NewWriter(STDOUT)
	w.Comma = '\t'
	defer w.Flush()

	w.Write([]string{"recorded_at", "run_id", "experiment", "platform", "kind", "name"})
	for _, r := range rejections {
		w.Write([]string{r.RecordedAt.Format(time.RFC3339), r.RunID, r.Experiment, r.Platform, string(r.Kind), r.Name})
	}
}
