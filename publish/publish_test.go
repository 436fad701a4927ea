package publish

import "testing"

func TestTableName(t *testing.T) {
	for input, expected := range map[string]string{
		"/tmp/out/E-TEST-1_A-AFFY-44-analytics.tsv": "E_TEST_1_A_AFFY_44_analytics",
		"E-MTAB-5_rnaseq-analytics.tsv":             "E_MTAB_5_rnaseq_analytics",
	} {
		if got := TableName(input); got != expected {
			t.Errorf("%s: got %s", input, got)
		}
	}
}

func TestObjectURI(t *testing.T) {
	if got := ObjectURI("gs://bucket/results/", "/tmp/E-1_A-1-analytics.tsv"); got != "gs://bucket/results/E-1_A-1-analytics.tsv" {
		t.Errorf("Got %s", got)
	}
}
