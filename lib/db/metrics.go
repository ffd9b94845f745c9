package db

import (
	"fmt"
	"io"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// engineMetrics holds the metrics of one engine.
// Every engine has its own set, so engines for different logs never share a counter.
type engineMetrics struct {
	set *metrics.Set

	inserts          *metrics.Counter
	updates          *metrics.Counter
	conflictExists   *metrics.Counter
	conflictMissing  *metrics.Counter
	conflictMismatch *metrics.Counter
	writeErrors      *metrics.Counter
	replayed         *metrics.Counter
	appendDuration   *metrics.Histogram
}

func newEngineMetrics[K, V comparable](path string, e *Engine[K, V]) *engineMetrics {
	s := metrics.NewSet()
	label := "path=" + strconv.Quote(path)
	name := func(base string) string {
		return fmt.Sprintf("%s{%s}", base, label)
	}
	conflict := func(reason string) string {
		return fmt.Sprintf("kvr_conflicts_total{%s,reason=%q}", label, reason)
	}

	m := &engineMetrics{
		set:              s,
		inserts:          s.NewCounter(name("kvr_inserts_total")),
		updates:          s.NewCounter(name("kvr_updates_total")),
		conflictExists:   s.NewCounter(conflict("key_exists")),
		conflictMissing:  s.NewCounter(conflict("key_does_not_exist")),
		conflictMismatch: s.NewCounter(conflict("prev_rev_mismatch")),
		writeErrors:      s.NewCounter(name("kvr_write_errors_total")),
		replayed:         s.NewCounter(name("kvr_replayed_records_total")),
		appendDuration:   s.NewHistogram(name("kvr_append_duration_seconds")),
	}

	s.NewGauge(name("kvr_keys"), func() float64 {
		return float64(e.Len())
	})
	s.NewGauge(name("kvr_historical_entries"), func() float64 {
		return float64(e.HistoryLen())
	})
	s.NewGauge(name("kvr_log_bytes"), func() float64 {
		return float64(e.logSize.Load())
	})

	return m
}

// WriteMetrics writes the metrics of the engine in Prometheus text format to w.
//
// Thread-safety: This method is thread-safe.
func (e *Engine[K, V]) WriteMetrics(w io.Writer) {
	e.metrics.set.WritePrometheus(w)
}
