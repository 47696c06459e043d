package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"genoetl/internal/metrics"
)

func summaryCount(t *testing.T, v *prometheus.SummaryVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := v.WithLabelValues(labels...).(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	return m.GetSummary().GetSampleCount()
}

func TestNewBackend(t *testing.T) {
	if _, err := NewBackend("genoetl", ""); err == nil {
		t.Fatal("want error without gateway URL")
	}
	b, err := NewBackend("", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.jobName != "genoetl" {
		t.Fatalf("jobName = %q, want default", b.jobName)
	}
}

func TestRunMetricsReachCollectors(t *testing.T) {
	b, err := NewBackend("genoetl", "http://example.com")
	if err != nil {
		t.Fatal(err)
	}

	ok := metrics.Labels{"job": "genoetl", "step": metrics.StepValidate, "status": "success"}
	b.IncCounter(metrics.StageTotal, 1, ok)
	b.ObserveHistogram(metrics.StageDuration, 0.4, ok)
	b.ObserveHistogram(metrics.StageDuration, 0.6, ok)
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"table": "runs", "kind": metrics.KindViolations})
	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"table": "runs", "kind": metrics.KindViolations})
	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"mode": "quarantine", "status": "success"})
	b.IncCounter("genoetl_unknown", 9, ok)
	b.ObserveHistogram("genoetl_unknown", 9, ok)

	if got := testutil.ToFloat64(b.stageCounter.WithLabelValues(metrics.StepValidate, "success")); got != 1 {
		t.Fatalf("stage counter = %v", got)
	}
	if got := summaryCount(t, b.stageDuration, metrics.StepValidate, "success"); got != 2 {
		t.Fatalf("stage duration samples = %d", got)
	}
	if got := testutil.ToFloat64(b.rowCounter.WithLabelValues("runs", metrics.KindViolations)); got != 5 {
		t.Fatalf("row counter = %v", got)
	}
	if got := testutil.ToFloat64(b.runCounter.WithLabelValues("quarantine", "success")); got != 1 {
		t.Fatalf("run counter = %v", got)
	}
	if n := testutil.CollectAndCount(b.stageCounter); n != 1 {
		t.Fatalf("stage series = %d, unknown names must be ignored", n)
	}
}

func TestZeroBackendIsSafe(t *testing.T) {
	b := &Backend{}
	b.IncCounter(metrics.StageTotal, 1, metrics.Labels{"step": "load", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 1, nil)
	b.IncCounter(metrics.RunsTotal, 1, nil)
	b.ObserveHistogram(metrics.StageDuration, 1, nil)
}

func TestFlushPushesJobGroup(t *testing.T) {
	type pushed struct {
		method, path string
		size         int
	}
	got := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- pushed{r.Method, r.URL.Path, len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("genoetl-nightly", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"mode": "strict", "status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	select {
	case p := <-got:
		if p.method != http.MethodPut {
			t.Fatalf("method = %s, want PUT", p.method)
		}
		if p.path != "/metrics/job/genoetl-nightly" {
			t.Fatalf("path = %s", p.path)
		}
		if p.size == 0 {
			t.Fatal("empty push body")
		}
	default:
		t.Fatal("Flush sent no request")
	}
}

func BenchmarkIncCounterRows(b *testing.B) {
	backend, err := NewBackend("genoetl", "http://example.com")
	if err != nil {
		b.Fatal(err)
	}
	labels := metrics.Labels{"table": "runs", "kind": metrics.KindLoaded}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RowsTotal, 1, labels)
	}
}
