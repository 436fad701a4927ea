package pipeline

import (
	"errors"
	"fmt"
	"log"

	"github.com/carbocation/exprqc/reconcile"
	"github.com/carbocation/exprqc/statsengine"
)

// Exit codes of the QC and DE binaries. Any other fatal condition exits 1.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitQCRejected   = 2
	ExitEngineFailed = 3
)

// PlatformFailure is a platform that was abandoned. Other platforms are
// unaffected by it.
type PlatformFailure struct {
	Platform string
	Err      error
}

func (p PlatformFailure) Error() string {
	return fmt.Sprintf("%s: %v", p.Platform, p.Err)
}

func (p PlatformFailure) Unwrap() error {
	return p.Err
}

// Outcome summarizes a run across its platforms.
type Outcome struct {
	// RejectedAssays holds, per platform, the names QC reported, whether or
	// not they were still in the design.
	RejectedAssays map[string][]string

	Reconciled []reconcile.Result
	Failures   []PlatformFailure

	// LedgerFailures are platforms whose reconciliation could not be written
	// to the QC ledger. The reconciliation itself still stands.
	LedgerFailures []PlatformFailure

	// Backup is the audit copy of the configuration, if it was rewritten.
	Backup string

	// Written lists the results tables produced.
	Written []string
}

// Rejected reports whether QC rejected any assay.
func (o *Outcome) Rejected() bool {
	for _, names := range o.RejectedAssays {
		if len(names) > 0 {
			return true
		}
	}

	return false
}

// Changed reports whether reconciliation altered the design.
func (o *Outcome) Changed() bool {
	for _, res := range o.Reconciled {
		if res.Changed {
			return true
		}
	}

	return false
}

// EngineFailed reports whether any platform lost its engine run.
func (o *Outcome) EngineFailed() bool {
	for _, f := range o.Failures {
		if errors.Is(f.Err, statsengine.ErrStatisticsEngine) {
			return true
		}
	}

	return false
}

// ExitCode maps the outcome onto the process exit contract. An engine failure
// outranks any other failure, which outranks a QC rejection.
func (o *Outcome) ExitCode() int {
	switch {
	case o.EngineFailed():
		return ExitEngineFailed
	case len(o.Failures) > 0:
		return ExitFailure
	case o.Rejected():
		return ExitQCRejected
	}

	return ExitOK
}

// fail records an abandoned platform. Engine failures are logged with the
// engine's captured output, verbatim.
func (o *Outcome) fail(platform string, err error) {
	o.Failures = append(o.Failures, PlatformFailure{Platform: platform, Err: err})

	var failure *statsengine.EngineFailure
	if errors.As(err, &failure) {
		log.Printf("%s: %v. Engine output follows:\n%s\n", platform, err, failure.Output)
		return
	}
	log.Printf("%s: %v\n", platform, err)
}
