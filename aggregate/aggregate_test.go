package aggregate

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/exprqc/design"
	"github.com/google/go-cmp/cmp"
)

const c1Table = "designElement\tp-value\tt-statistic\tlog2foldchange\n" +
	"f1\t0.01\t2.5\t1.2\n" +
	"f2\t0.2\t-1\t-0.3\n"

const c2Table = "designElement\tlog2foldchange\tp-value\tt-statistic\tadj\n" +
	"f3\t0.5\t1e-5\t4\tjunk\n" +
	"f2\tNA\t0.04\t2\t\n"

func contrasts(ids ...string) []*design.Contrast {
	out := make([]*design.Contrast, 0, len(ids))
	for _, id := range ids {
		out = append(out, &design.Contrast{ID: id, AnalyticsElementID: "A-TEST-1"})
	}
	return out
}

func mustParse(t *testing.T, data string, layout Layout) Table {
	t.Helper()
	table, err := ParseTable([]byte(data), layout)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestAggregationCompleteness(t *testing.T) {
	layout := Layouts["microarray"]
	tables := map[string]Table{
		"c1": mustParse(t, c1Table, layout),
		"c2": mustParse(t, c2Table, layout),
	}

	res, err := Merge(layout, contrasts("c1", "c2"), tables)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := res.Write(&buf); err != nil {
		t.Fatal(err)
	}

	expected := "Design Element\tc1.p-value\tc1.t-statistic\tc1.log2foldchange\tc2.p-value\tc2.t-statistic\tc2.log2foldchange\n" +
		"f1\t0.01\t2.5\t1.2\tNA\tNA\tNA\n" +
		"f2\t0.2\t-1\t-0.3\t0.04\t2\tNA\n" +
		"f3\tNA\tNA\tNA\t1e-5\t4\t0.5\n"
	if diff := cmp.Diff(expected, buf.String()); diff != "" {
		t.Errorf("Merged table mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnOrderStability(t *testing.T) {
	layout := Layouts["microarray"]
	c1 := mustParse(t, c1Table, layout)
	c2 := mustParse(t, c2Table, layout)

	var outputs []string
	for _, tables := range []map[string]Table{
		{"c1": c1, "c2": c2},
		{"c2": c2, "c1": c1},
	} {
		for i := 0; i < 5; i++ {
			res, err := Merge(layout, contrasts("c2", "c1"), tables)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := res.Write(&buf); err != nil {
				t.Fatal(err)
			}
			outputs = append(outputs, buf.String())
		}
	}

	for _, out := range outputs[1:] {
		if out != outputs[0] {
			t.Fatalf("Output depends on map order:\n%s\nvs\n%s", outputs[0], out)
		}
	}
	if !strings.HasPrefix(outputs[0], "Design Element\tc2.p-value") {
		t.Errorf("Columns do not follow contrast order: %s", strings.SplitN(outputs[0], "\n", 2)[0])
	}
}

func TestRNASeqLayout(t *testing.T) {
	layout := Layouts["rnaseq"]
	table := mustParse(t, "Gene ID\tp-value\tlog2foldchange\nENSG2\t0.5\t-1\nENSG1\tNA\t2\n", layout)

	res, err := Merge(layout, contrasts("g1_g2", "g1_g3"), map[string]Table{"g1_g2": table})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"Gene ID", "g1_g2.p-value", "g1_g2.log2foldchange", "g1_g3.p-value", "g1_g3.log2foldchange"}, res.Header()); diff != "" {
		t.Error(diff)
	}
	if res.Rows[0].Feature != "ENSG1" || len(res.Rows[0].Values) != 4 {
		t.Errorf("Unexpected first row %+v", res.Rows[0])
	}
}

func TestMalformedStatistic(t *testing.T) {
	layout := Layouts["microarray"]
	for name, data := range map[string]string{
		"text value":     "id\tp-value\tt-statistic\tlog2foldchange\nf1\t0.1\tabc\t1\n",
		"missing column": "id\tp-value\tlog2foldchange\nf1\t0.1\t1\n",
		"short row":      "id\tp-value\tt-statistic\tlog2foldchange\nf1\t0.1\n",
		"duplicate":      "id\tp-value\tt-statistic\tlog2foldchange\nf1\t0.1\t1\t1\nf1\t0.1\t1\t1\n",
		"empty":          "",
		"blank slot":     "id\tp-value\tt-statistic\tlog2foldchange\nf1\t\t1\t1\n",
		"blank row":      "id\tp-value\tt-statistic\tlog2foldchange\nf1\t \t \t \n",
	} {
		if _, err := ParseTable([]byte(data), layout); !errors.Is(err, ErrMalformedStatistic) {
			t.Errorf("%s: expected ErrMalformedStatistic, got %v", name, err)
		}
	}
}

func TestParseValue(t *testing.T) {
	for _, v := range []struct {
		In    string
		Valid bool
	}{
		{"0.01", true},
		{"-3.2e-05", true},
		{" 1.5 ", true},
		{"NaN", true},
		{"Inf", true},
		{"-Inf", true},
		{"NA", false},
	} {
		got, err := ParseValue(v.In)
		if err != nil {
			t.Errorf("%q: %v", v.In, err)
			continue
		}
		if got.Valid != v.Valid {
			t.Errorf("%q: expected valid=%v", v.In, v.Valid)
		}
	}

	for _, in := range []string{"", "  ", "0x1p-2", "0X10", "infinity", "-Infinity", "1_000", "significant"} {
		if _, err := ParseValue(in); !errors.Is(err, ErrMalformedStatistic) {
			t.Errorf("%q: expected ErrMalformedStatistic, got %v", in, err)
		}
	}
}

func TestMergeRejectsWrongWidth(t *testing.T) {
	layout := Layouts["rnaseq"]
	tables := map[string]Table{"c1": mustParse(t, c1Table, Layouts["microarray"])}

	if _, err := Merge(layout, contrasts("c1"), tables); !errors.Is(err, ErrMalformedStatistic) {
		t.Errorf("Expected ErrMalformedStatistic, got %v", err)
	}
}

func TestMergeIgnoresUnknownContrast(t *testing.T) {
	layout := Layouts["microarray"]
	tables := map[string]Table{
		"c1":    mustParse(t, c1Table, layout),
		"stale": mustParse(t, c2Table, layout),
	}

	res, err := Merge(layout, contrasts("c1"), tables)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("Features from an unknown contrast leaked in: %d rows", len(res.Rows))
	}
}

func TestWriteFile(t *testing.T) {
	layout := Layouts["microarray"]
	res, err := Merge(layout, contrasts("c1"), map[string]Table{"c1": mustParse(t, c1Table, layout)})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "E-TEST-1_A-TEST-1-analytics.tsv")
	if err := WriteFile(path, res); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Temporary files left behind: %d entries", len(entries))
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(written), "Design Element\tc1.p-value") {
		t.Errorf("Unexpected output:\n%s", written)
	}
}

func TestSummarize(t *testing.T) {
	layout := Layouts["microarray"]
	res, err := Merge(layout, contrasts("c1", "c2"), map[string]Table{
		"c1": mustParse(t, c1Table, layout),
		"c2": mustParse(t, c2Table, layout),
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries := Summarize(res)
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}

	c1 := summaries[0]
	if c1.Present != 2 || c1.Missing != 1 {
		t.Errorf("c1 counts: %+v", c1)
	}
	if math.Abs(c1.MedianLog2FoldChange-0.45) > 1e-9 {
		t.Errorf("c1 median fold change %f", c1.MedianLog2FoldChange)
	}
	if math.Abs(c1.MeanLog2FoldChange-0.45) > 1e-9 {
		t.Errorf("c1 mean fold change %f", c1.MeanLog2FoldChange)
	}

	c2 := summaries[1]
	if c2.Present != 2 || c2.MedianLog2FoldChange != 0.5 {
		t.Errorf("c2 summary: %+v", c2)
	}
	if !math.IsNaN(c2.SDLog2FoldChange) {
		t.Errorf("A single fold change has no spread, got %f", c2.SDLog2FoldChange)
	}
}

func TestNewLayout(t *testing.T) {
	if _, err := New("microarray"); err != nil {
		t.Error(err)
	}
	if _, err := New("proteomics"); err == nil {
		t.Errorf("Expected an error for an unknown layout")
	}
}
