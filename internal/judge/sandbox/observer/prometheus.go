package observer

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "codejudge"

var (
	// 1ms -> 20s
	timeBuckets = []float64{
		0.001, 0.005, 0.010, 0.025, 0.050, 0.1, 0.2, 0.4, 0.6, 0.8,
		1.0, 1.5, 2, 3, 5, 10, 20,
	}
	// 1m (1<<10 KB) -> 4g
	memoryBuckets = prometheus.ExponentialBuckets(1<<10, 2, 13)
)

// PrometheusRecorder exports compile and run observations.
type PrometheusRecorder struct {
	compileTotal *prometheus.CounterVec
	runTotal     *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runMemory    *prometheus.HistogramVec
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		compileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "compile_total",
			Help:      "Number of compile steps by language and outcome",
		}, []string{"language", "ok"}),
		runTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "run_total",
			Help:      "Number of test case runs by language and verdict",
		}, []string{"language", "verdict"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of test case runs",
			Buckets:   timeBuckets,
		}, []string{"language"}),
		runMemory: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_memory_kilobytes",
			Help:      "Peak resident memory of test case runs",
			Buckets:   memoryBuckets,
		}, []string{"language"}),
	}
	for _, c := range []prometheus.Collector{r.compileTotal, r.runTotal, r.runDuration, r.runMemory} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64) {
	r.compileTotal.WithLabelValues(languageID, strconv.FormatBool(ok)).Inc()
}

func (r *PrometheusRecorder) ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64, memoryKB int64) {
	r.runTotal.WithLabelValues(languageID, verdict).Inc()
	r.runDuration.WithLabelValues(languageID).Observe(float64(timeMs) / 1000)
	if memoryKB > 0 {
		r.runMemory.WithLabelValues(languageID).Observe(float64(memoryKB))
	}
}
