package core

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsRecorder receives operation timings and import-run outcomes from the
// service layer and the import runner.
type MetricsRecorder interface {
	ObserveOperation(op string, d time.Duration, outcome string)
	RecordRun(success bool, rowsParsed, rowsEntered int)
}

var expvarSeq uint64

// ExpvarMetricsRecorder publishes aggregate timing and result counters via
// expvar for deployments that prefer process-local metrics without external
// dependencies. Totals are maintained in milliseconds per operation plus
// outcome counters.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	runs      map[string]int64
	rows      map[string]int64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	Runs        map[string]int64            `json:"runs_total"`
	Rows        map[string]int64            `json:"rows_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and publishes
// it under the supplied name. When name is empty, a unique identifier is
// generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("import_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
		runs:      make(map[string]int64),
		rows:      make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// ObserveOperation accumulates duration and outcome for one operation.
func (r *ExpvarMetricsRecorder) ObserveOperation(op string, d time.Duration, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[op] += float64(d.Milliseconds())
	if r.results[op] == nil {
		r.results[op] = make(map[string]int64)
	}
	r.results[op][outcome]++
}

// RecordRun accumulates one import-run outcome.
func (r *ExpvarMetricsRecorder) RecordRun(success bool, rowsParsed, rowsEntered int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "succeeded"
	if !success {
		outcome = "failed"
	}
	r.runs[outcome]++
	r.rows["parsed"] += int64(rowsParsed)
	r.rows["entered"] += int64(rowsEntered)
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := ExpvarMetricsSnapshot{
		DurationsMS: make(map[string]float64, len(r.durations)),
		Results:     make(map[string]map[string]int64, len(r.results)),
		Runs:        make(map[string]int64, len(r.runs)),
		Rows:        make(map[string]int64, len(r.rows)),
		RecordedAt:  time.Now().UTC(),
	}
	for k, v := range r.durations {
		snap.DurationsMS[k] = v
	}
	for op, outcomes := range r.results {
		inner := make(map[string]int64, len(outcomes))
		for k, v := range outcomes {
			inner[k] = v
		}
		snap.Results[op] = inner
	}
	for k, v := range r.runs {
		snap.Runs[k] = v
	}
	for k, v := range r.rows {
		snap.Rows[k] = v
	}
	return snap
}
