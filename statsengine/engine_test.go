package statsengine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeScript installs a /bin/sh stand-in for the statistics engine.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestQCPass(t *testing.T) {
	e := New(writeScript(t, `echo "normalizing $2"; exit 0`))

	v, err := e.QC("affy", "annotation.tsv", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Rejected) != 0 {
		t.Errorf("Expected no rejections, got %v", v.Rejected)
	}
	if !strings.Contains(string(v.Output), "normalizing affy") {
		t.Errorf("Output not captured: %q", v.Output)
	}
}

func TestQCRejected(t *testing.T) {
	e := New(writeScript(t, `echo "some log line"
echo "REJECTED_ASSAYS:	a2	a5" >&2
echo "REJECTED_ASSAYS:a5,a7"
exit 1`))

	v, err := e.QC("lumi", "annotation.tsv", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a2", "a5", "a7"}, v.Rejected); diff != "" {
		t.Error(diff)
	}
}

func TestQCFailure(t *testing.T) {
	cases := map[string]string{
		"crash":                   `echo "Error in library(oligo)"; exit 2`,
		"rejection without names": `echo "something went wrong"; exit 1`,
	}

	for name, body := range cases {
		e := New(writeScript(t, body))
		_, err := e.QC("affy", "annotation.tsv", t.TempDir())
		if !errors.Is(err, ErrStatisticsEngine) {
			t.Errorf("%s: expected ErrStatisticsEngine, got %v", name, err)
			continue
		}

		var failure *EngineFailure
		if !errors.As(err, &failure) {
			t.Errorf("%s: expected an *EngineFailure", name)
			continue
		}
		if len(failure.Output) == 0 {
			t.Errorf("%s: captured output was lost", name)
		}
	}
}

func TestQCCustomRejectionContract(t *testing.T) {
	e := New(writeScript(t, `echo "QC_FAILED: x1"; exit 4`))
	e.RejectionExitCode = 4
	e.RejectionMarker = "QC_FAILED:"

	v, err := e.QC("affy", "annotation.tsv", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x1"}, v.Rejected); diff != "" {
		t.Error(diff)
	}
}

func TestMissingExecutable(t *testing.T) {
	e := New(filepath.Join(t.TempDir(), "no-such-engine"))
	if _, err := e.QC("affy", "annotation.tsv", t.TempDir()); !errors.Is(err, ErrStatisticsEngine) {
		t.Errorf("Expected ErrStatisticsEngine, got %v", err)
	}
}

func TestDE(t *testing.T) {
	// $6 is the output directory; the contrasts file lists one id per line
	script := writeScript(t, `for id in $(cat "$4"); do
  printf 'id\tp-value\n' > "$6/$id.stats.tsv"
  printf 'x\ty\n' > "$6/$id.plotdata.tsv"
done`)

	dir := t.TempDir()
	contrasts := filepath.Join(dir, "contrasts.txt")
	if err := os.WriteFile(contrasts, []byte("g1_g2\ng1_g3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := New(script).DE("affy", "annotation.tsv", contrasts, "expressions.tsv", dir, []string{"g1_g2", "g1_g3"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Stats["g1_g3"] != StatsFile(dir, "g1_g3") {
		t.Errorf("Unexpected stats path %s", out.Stats["g1_g3"])
	}
	if len(out.PlotData) != 2 {
		t.Errorf("Expected 2 plot data tables, got %d", len(out.PlotData))
	}

	// A contrast the engine skipped is a failure
	_, err = New(script).DE("affy", "annotation.tsv", contrasts, "expressions.tsv", dir, []string{"g1_g2", "g2_g3"})
	if !errors.Is(err, ErrStatisticsEngine) {
		t.Errorf("Expected ErrStatisticsEngine for a missing table, got %v", err)
	}
}

func TestParseRejected(t *testing.T) {
	names, found := ParseRejected([]byte("a\n  REJECTED_ASSAYS: s1 ,s2\nREJECTED_ASSAYS:\n"), DefaultRejectionMarker)
	if !found {
		t.Fatal("Marker not found")
	}
	if diff := cmp.Diff([]string{"s1", "s2"}, names); diff != "" {
		t.Error(diff)
	}

	if _, found := ParseRejected([]byte("nothing here"), DefaultRejectionMarker); found {
		t.Errorf("Found a marker that is not there")
	}
}
