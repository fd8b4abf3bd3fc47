package observer

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.ObserveCompile(ctx, "cpp", true, 120)
	rec.ObserveCompile(ctx, "cpp", false, 80)
	rec.ObserveRun(ctx, "cpp", "Accepted", 5, 1024)
	rec.ObserveRun(ctx, "cpp", "Accepted", 7, 2048)
	rec.ObserveRun(ctx, "cpp", "WrongAnswer", 3, 0)

	if got := testutil.ToFloat64(rec.compileTotal.WithLabelValues("cpp", "false")); got != 1 {
		t.Fatalf("expected 1 failed compile, got %v", got)
	}
	if got := testutil.ToFloat64(rec.runTotal.WithLabelValues("cpp", "Accepted")); got != 2 {
		t.Fatalf("expected 2 accepted runs, got %v", got)
	}
	if got := testutil.CollectAndCount(rec.runDuration); got != 1 {
		t.Fatalf("expected one duration series, got %d", got)
	}
}

func TestPrometheusRecorderDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusRecorder(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := NewPrometheusRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
