// Copyright 2021 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metric

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sunxi-spl/spl-bt/pkg/unwind"
	"go.uber.org/zap"
)

// MetricOpts contains naming pieces of the exposed metrics
type MetricOpts struct {
	Namespace string
	Subsystem string
}

var DefaultOpts = MetricOpts{Namespace: "splbt", Subsystem: "unwind"}

// Recorder counts finished traces. It implements unwind.Observer.
type Recorder struct {
	traces   *prometheus.CounterVec
	fallback prometheus.Counter
	depth    prometheus.Histogram
}

// NewRecorder creates the trace metrics and registers them with reg.
func NewRecorder(opts MetricOpts, reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		traces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "traces_total",
			Help:      "Backtraces taken, by the reason the walk stopped",
		}, []string{"stop"}),
		fallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "fallback_total",
			Help:      "Backtraces whose first caller came from the live link register",
		}),
		depth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      "depth",
			Help:      "Number of frames per backtrace, the fault PC included",
			Buckets:   prometheus.LinearBuckets(1, 4, unwind.MaxDepth/4+1),
		}),
	}
	for _, c := range []prometheus.Collector{r.traces, r.fallback, r.depth} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("could not register metric: %v", err)
		}
	}
	// Export every reason from the start so rates work before the first
	// failure of a kind.
	r.traces.WithLabelValues(unwind.StopNone.String())
	for _, s := range unwind.StopReasons() {
		r.traces.WithLabelValues(s.String())
	}
	return r, nil
}

func (r *Recorder) ObserveTrace(t *unwind.Trace) {
	r.traces.WithLabelValues(t.Stop.String()).Inc()
	if t.Fallback {
		r.fallback.Inc()
	}
	r.depth.Observe(float64(t.Depth))
}

// StartMetrics serves the metrics of g on addr under /metrics.
func StartMetrics(addr string, g prometheus.Gatherer, log *zap.SugaredLogger) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	go func() {
		err := http.Serve(l, mux)
		if err != nil {
			log.Error(err)
		}
	}()
	return l.Addr(), nil
}
