package importer

import (
	"context"
	"io"
	"time"

	"hatcherycore/internal/core"
	"hatcherycore/pkg/domain"
)

// Phase names one stage of the run state machine.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhasePreparing  Phase = "preparing"
	PhaseRows       Phase = "row_iteration"
	PhaseFinalizing Phase = "finalizing"
)

// RunResult is the terminal state of one import run. Log carries the full
// audit trail, ending with the parsed/entered summary. A failed run may
// still have committed entities from rows processed before the failure.
type RunResult struct {
	Success     bool
	RowsTotal   int
	RowsParsed  int
	RowsEntered int
	RowFailures []RowError
	Log         string
}

// Runner drives import runs against one store.
type Runner struct {
	store   domain.PersistentStore
	metrics core.MetricsRecorder
	nowFn   func() time.Time
}

// NewRunner constructs a runner backed by the supplied store.
func NewRunner(store domain.PersistentStore) *Runner {
	return &Runner{store: store, nowFn: time.Now}
}

// WithMetrics attaches a metrics recorder for phase timings and run totals.
func (r *Runner) WithMetrics(m core.MetricsRecorder) *Runner {
	r.metrics = m
	return r
}

func (r *Runner) observePhase(phase Phase, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ObserveOperation("run_"+string(phase), r.nowFn().Sub(start), outcome)
}

// Run executes one import: load the sheet, resolve the reference catalog and
// row groups, process every row with per-row failure isolation, then write
// the aggregated counts. Structural failures abort the run; row failures are
// logged and skipped.
func (r *Runner) Run(ctx context.Context, event domain.Event, cfg ImportConfig, src io.Reader, format Format) RunResult {
	log := &Log{}
	fail := func(err error) RunResult {
		log.Linef("Import failed: %v", err)
		if r.metrics != nil {
			r.metrics.RecordRun(false, 0, 0)
		}
		return RunResult{Success: false, Log: log.String()}
	}

	start := r.nowFn()
	sheet, err := LoadSheet(src, format, cfg.HeaderRow)
	if err == nil {
		err = sheet.RequireColumns(cfg.headers(cfg.Mandatory))
	}
	if err == nil {
		err = sheet.RequireFilled(cfg.headers(cfg.MandatoryFilled))
	}
	r.observePhase(PhaseLoading, start, err)
	if err != nil {
		return fail(err)
	}

	start = r.nowFn()
	catalog, err := BuildCatalog(ctx, r.store)
	if err != nil {
		r.observePhase(PhasePreparing, start, err)
		return fail(err)
	}
	res := NewResolver(r.store, event, cfg.Species, catalog)

	var assignments *GroupAssignments
	var plan *MovementPlan
	switch cfg.Grouping {
	case GroupingMovement:
		plan, err = prepareMovement(ctx, res, cfg, sheet)
	default:
		assignments, err = prepareElectrofishing(ctx, res, cfg, sheet)
	}
	r.observePhase(PhasePreparing, start, err)
	if err != nil {
		return fail(err)
	}

	start = r.nowFn()
	proc := newRowProcessor(cfg, res, catalog, log)
	parsed, entered := 0, 0
	var failures []RowError
	for _, row := range sheet.Rows {
		if plan != nil {
			parsed++
			if plan.EnteredByRow[row.Index] {
				entered++
			}
			continue
		}
		rowEntered, rerr := proc.process(ctx, row, assignments.ByRow[row.Index])
		if rerr != nil {
			log.RowFail(row, rerr)
			failures = append(failures, RowError{Row: row.Index, Err: rerr})
			continue
		}
		parsed++
		if rowEntered {
			entered++
		}
	}
	r.observePhase(PhaseRows, start, nil)

	start = r.nowFn()
	err = proc.finalize(ctx)
	r.observePhase(PhaseFinalizing, start, err)
	if err != nil {
		return fail(err)
	}

	log.Summary(parsed, entered, len(sheet.Rows))
	if r.metrics != nil {
		r.metrics.RecordRun(true, parsed, entered)
	}
	return RunResult{
		Success:     true,
		RowsTotal:   len(sheet.Rows),
		RowsParsed:  parsed,
		RowsEntered: entered,
		RowFailures: failures,
		Log:         log.String(),
	}
}
