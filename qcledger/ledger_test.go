package qcledger

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carbocation/exprqc/reconcile"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := Open(filepath.Join(t.TempDir(), "qc.sqlite"))
	if err != nil {
		if strings.Contains(err.Error(), "cgo") {
			t.Skip("sqlite3 needs cgo:", err)
		}
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	return l
}

func TestRecordAndList(t *testing.T) {
	l := openLedger(t)

	res := reconcile.Result{
		Platform:         "A-TEST-1",
		Changed:          true,
		RemovedAssays:    []string{"a2"},
		RemovedGroups:    []string{"g1"},
		RemovedContrasts: []string{"g1_g2"},
	}
	if err := l.Record("E-TEST-1", res); err != nil {
		t.Fatal(err)
	}
	if err := l.Record("E-OTHER-1", reconcile.Result{Platform: "A-TEST-1", RemovedAssays: []string{"x"}}); err != nil {
		t.Fatal(err)
	}

	got, err := l.Rejections("E-TEST-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}

	expected := []struct {
		name string
		kind Kind
	}{{"a2", KindAssay}, {"g1", KindGroup}, {"g1_g2", KindContrast}}
	for i, e := range expected {
		if got[i].Name != e.name || got[i].Kind != e.kind || got[i].Platform != "A-TEST-1" {
			t.Errorf("Entry %d: %+v", i, got[i])
		}
		if got[i].RecordedAt.IsZero() {
			t.Errorf("Entry %d has no timestamp", i)
		}
		if got[i].RunID == "" || got[i].RunID != got[0].RunID {
			t.Errorf("Entry %d has run id %q, expected %q", i, got[i].RunID, got[0].RunID)
		}
	}
}

func TestRecordNothing(t *testing.T) {
	l := openLedger(t)

	if err := l.Record("E-TEST-1", reconcile.Result{Platform: "A-TEST-1"}); err != nil {
		t.Fatal(err)
	}

	got, err := l.Rejections("E-TEST-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Expected an empty ledger, got %d entries", len(got))
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qc.sqlite")

	l, err := Open(path)
	if err != nil {
		if strings.Contains(err.Error(), "cgo") {
			t.Skip("sqlite3 needs cgo:", err)
		}
		t.Fatal(err)
	}
	if err := l.Record("E-TEST-1", reconcile.Result{Platform: "A-TEST-1", RemovedAssays: []string{"a1"}}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	got, err := l.Rejections("E-TEST-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "a1" {
		t.Errorf("Ledger did not survive a reopen: %+v", got)
	}
}

func TestRejectionsSince(t *testing.T) {
	l := openLedger(t)

	before := time.Now().Add(-time.Hour)
	if err := l.Record("E-TEST-1", reconcile.Result{Platform: "A-TEST-1", RemovedAssays: []string{"a1"}}); err != nil {
		t.Fatal(err)
	}
	if err := l.Record("E-TEST-2", reconcile.Result{Platform: "A-TEST-9", RemovedContrasts: []string{"g1_g2"}}); err != nil {
		t.Fatal(err)
	}

	got, err := l.RejectionsSince(before)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Experiment != "E-TEST-2" {
		t.Errorf("Unexpected entries %+v", got)
	}

	got, err = l.RejectionsSince(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Expected nothing recorded in the future, got %d", len(got))
	}
}
