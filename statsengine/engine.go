// Package statsengine runs the external statistics engine and interprets what
// it reports. The engine is a blocking child process; there is no
// cancellation once it is dispatched.
package statsengine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrStatisticsEngine marks an engine run that cannot be trusted: abnormal
// termination, or output that does not match what was asked for.
var ErrStatisticsEngine = errors.New("statistics engine failure")

const (
	DefaultRejectionExitCode = 1
	DefaultRejectionMarker   = "REJECTED_ASSAYS:"
)

// EngineFailure carries the engine's full captured output, which operators
// need in order to tell a statistical failure from a bookkeeping one.
type EngineFailure struct {
	Command  []string
	ExitCode int
	Reason   string
	Output   []byte
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("%s: %s (exit code %d) running %s", ErrStatisticsEngine, e.Reason, e.ExitCode, strings.Join(e.Command, " "))
}

func (e *EngineFailure) Unwrap() error {
	return ErrStatisticsEngine
}

// Engine describes how to invoke the statistics engine.
type Engine struct {
	Executable string
	Args       []string

	// RejectionExitCode is the non-zero exit code with which the QC pass
	// reports rejected assays.
	RejectionExitCode int

	// RejectionMarker introduces the line listing rejected assay names.
	RejectionMarker string
}

// New returns an engine with the default rejection contract.
func New(executable string, args ...string) *Engine {
	return &Engine{
		Executable:        executable,
		Args:              args,
		RejectionExitCode: DefaultRejectionExitCode,
		RejectionMarker:   DefaultRejectionMarker,
	}
}

func (e *Engine) rejectionExitCode() int {
	if e.RejectionExitCode == 0 {
		return DefaultRejectionExitCode
	}
	return e.RejectionExitCode
}

func (e *Engine) rejectionMarker() string {
	if e.RejectionMarker == "" {
		return DefaultRejectionMarker
	}
	return e.RejectionMarker
}

// run blocks until the engine exits and returns its combined stdout and
// stderr with the exit code. err is only set if the process could not be
// started or did not exit normally.
func (e *Engine) run(args ...string) (command []string, output []byte, exitCode int, err error) {
	command = append(append([]string{e.Executable}, e.Args...), args...)

	output, err = exec.Command(command[0], command[1:]...).CombinedOutput()
	if err == nil {
		return command, output, 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return command, output, exitErr.ExitCode(), nil
	}

	return command, output, -1, &EngineFailure{
		Command:  command,
		ExitCode: -1,
		Reason:   err.Error(),
		Output:   output,
	}
}

// Verdict is the outcome of a QC pass.
type Verdict struct {
	Rejected []string
	Output   []byte
}

// QC runs the engine's quality-control pass over one platform's annotation
// table. Exit 0 is a pass; exit RejectionExitCode with a marker line is a
// rejection. Anything else, including a rejection exit without a marker, is
// an *EngineFailure.
func (e *Engine) QC(mode, annotationPath, outDir string) (*Verdict, error) {
	command, output, exitCode, err := e.run("qc", mode, annotationPath, outDir)
	if err != nil {
		return nil, err
	}

	rejected, found := ParseRejected(output, e.rejectionMarker())

	switch {
	case exitCode == 0:
		return &Verdict{Rejected: rejected, Output: output}, nil
	case exitCode == e.rejectionExitCode() && found:
		return &Verdict{Rejected: rejected, Output: output}, nil
	case exitCode == e.rejectionExitCode():
		return nil, &EngineFailure{Command: command, ExitCode: exitCode, Reason: "exited with the rejection code but named no assays", Output: output}
	}

	return nil, &EngineFailure{Command: command, ExitCode: exitCode, Reason: "QC terminated abnormally", Output: output}
}

// ParseRejected collects the assay names listed after every occurrence of
// marker at the start of a line. Names are separated by tabs or commas.
func ParseRejected(output []byte, marker string) (names []string, found bool) {
	names = make([]string, 0)
	seen := make(map[string]struct{})

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, marker) {
			continue
		}
		found = true

		fields := strings.FieldsFunc(strings.TrimPrefix(line, marker), func(r rune) bool {
			return r == '\t' || r == ','
		})
		for _, name := range fields {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, exists := seen[name]; exists {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return names, found
}

// DEOutput locates the per-contrast tables written by a DE pass.
type DEOutput struct {
	// Stats and PlotData map contrast id to file path.
	Stats    map[string]string
	PlotData map[string]string
	Output   []byte
}

// StatsFile and PlotDataFile name the tables the engine writes per contrast.
func StatsFile(outDir, contrastID string) string {
	return filepath.Join(outDir, contrastID+".stats.tsv")
}

func PlotDataFile(outDir, contrastID string) string {
	return filepath.Join(outDir, contrastID+".plotdata.tsv")
}

// DE runs the engine's differential expression pass. It must exit 0 and
// leave a statistics table and a plot-data table for every requested
// contrast; otherwise the run is an *EngineFailure.
func (e *Engine) DE(mode, annotationPath, contrastsPath, expressionsPath, outDir string, contrastIDs []string) (*DEOutput, error) {
	command, output, exitCode, err := e.run("de", mode, annotationPath, contrastsPath, expressionsPath, outDir)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, &EngineFailure{Command: command, ExitCode: exitCode, Reason: "DE terminated abnormally", Output: output}
	}

	out := &DEOutput{
		Stats:    make(map[string]string, len(contrastIDs)),
		PlotData: make(map[string]string, len(contrastIDs)),
		Output:   output,
	}
	for _, id := range contrastIDs {
		for _, pair := range []struct {
			path string
			dest map[string]string
		}{
			{StatsFile(outDir, id), out.Stats},
			{PlotDataFile(outDir, id), out.PlotData},
		} {
			if _, err := os.Stat(pair.path); err != nil {
				return nil, &EngineFailure{Command: command, ExitCode: exitCode, Reason: fmt.Sprintf("no output for contrast %s: %s", id, err), Output: output}
			}
			pair.dest[id] = pair.path
		}
	}

	return out, nil
}
