package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersExistAndIncrement(t *testing.T) {
	before := testutil.ToFloat64(QueryPages.WithLabelValues("success"))
	QueryPages.WithLabelValues("success").Inc()
	if v := testutil.ToFloat64(QueryPages.WithLabelValues("success")); v != before+1 {
		t.Fatalf("expected QueryPages to grow by 1, got %v -> %v", before, v)
	}

	TokenAcquisitions.WithLabelValues("device-code", "success").Add(2)
	if v := testutil.ToFloat64(TokenAcquisitions.WithLabelValues("device-code", "success")); v < 2 {
		t.Fatalf("expected TokenAcquisitions >= 2, got %v", v)
	}

	CacheLookups.WithLabelValues("hit").Inc()
	if v := testutil.ToFloat64(CacheLookups.WithLabelValues("hit")); v < 1 {
		t.Fatalf("expected CacheLookups >= 1, got %v", v)
	}
}

func TestOutcome(t *testing.T) {
	if got := Outcome(nil); got != "success" {
		t.Fatalf("expected success, got %s", got)
	}
	if got := Outcome(errors.New("boom")); got != "error" {
		t.Fatalf("expected error, got %s", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	QueryRecords.Add(3)
	path := filepath.Join(t.TempDir(), "vminfo.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "vminfo_query_records_total") {
		t.Fatalf("expected textfile to contain vminfo_query_records_total, got:\n%s", data)
	}
}
