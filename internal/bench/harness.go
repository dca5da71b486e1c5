// Package bench times repeated query executions and records the averages.
package bench

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

// ErrNotImplemented is returned for queries that report StatusNotImplemented.
var ErrNotImplemented = errors.New("query is not implemented")

// Status tells a successful run with data apart from an empty one and from a placeholder.
type Status int

const (
	StatusData Status = iota
	StatusEmpty
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusData:
		return "data"
	case StatusEmpty:
		return "empty"
	case StatusNotImplemented:
		return "not implemented"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single query run.
type Result struct {
	Status Status
	Count  int64
}

// Counted returns a data result, or an empty one for a zero count.
func Counted(n int64) Result {
	if n == 0 {
		return Result{Status: StatusEmpty}
	}
	return Result{Status: StatusData, Count: n}
}

// Variant is one execution mode of a query, for example with or without a supporting index.
// Setup runs before the timed repetitions and Teardown after them; both may be nil.
type Variant struct {
	Label    string
	Setup    func(ctx context.Context) error
	Teardown func(ctx context.Context) error
}

// Query is a benchmarkable operation.
type Query struct {
	// Name identifies the report file.
	Name string

	// Label is the query column of the metrics file.
	Label string

	Run func(ctx context.Context) (Result, error)

	// Variants switches the query to per-variant trimmed means.
	Variants []Variant

	// Repetitions overrides the harness default when positive.
	Repetitions int
}

// Harness runs queries against one backend.
type Harness struct {
	Backend     string
	Repetitions int
	OutputDir   string

	sink     *Sink
	registry metrics.Registry
	elapsed  func(time.Time) time.Duration
	l        *zap.SugaredLogger
}

// NewHarness returns a harness writing measurements to sink.
func NewHarness(backendID string, repetitions int, outputDir string, sink *Sink, l *zap.SugaredLogger) *Harness {
	return &Harness{
		Backend:     backendID,
		Repetitions: repetitions,
		OutputDir:   outputDir,
		sink:        sink,
		registry:    metrics.NewRegistry(),
		elapsed:     time.Since,
		l:           l.With("backend", backendID),
	}
}

// Registry returns the timers of every label run so far.
func (h *Harness) Registry() metrics.Registry {
	return h.registry
}

// Run executes q, writes its report file and appends one measurement per variant to the sink.
func (h *Harness) Run(ctx context.Context, q Query) ([]Measurement, error) {
	reps := q.Repetitions
	if reps <= 0 {
		reps = h.Repetitions
	}
	if reps <= 0 {
		return nil, errors.Errorf("%s: repetitions must be positive", q.Name)
	}

	rep, err := openReport(h.OutputDir, h.Backend, q.Name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rep.Close(); cerr != nil {
			h.l.Warnf("Failed to close report for %s: %v", q.Name, cerr)
		}
	}()

	start := time.Now()
	rep.Printf("%s on %s", q.Label, h.Backend)
	rep.Printf("Start: %s", start.Format(reportTimeFormat))
	h.l.Infof("Running %s (%d repetitions)", q.Label, reps)

	variants := q.Variants
	if len(variants) == 0 {
		variants = []Variant{{}}
	}

	var res []Measurement
	for _, v := range variants {
		m, err := h.runVariant(ctx, q, v, reps, rep)
		if err != nil {
			rep.Printf("Failed: %v", err)
			return res, err
		}

		if err = h.sink.Append(m); err != nil {
			return res, err
		}
		res = append(res, m)

		rep.Printf("%s: average %s, %.1f results", m.Label, m.Elapsed, m.Count)
	}

	end := time.Now()
	rep.Printf("End: %s", end.Format(reportTimeFormat))
	rep.Printf("Total elapsed: %s", end.Sub(start))

	return res, nil
}

func (h *Harness) runVariant(ctx context.Context, q Query, v Variant, reps int, rep *report) (Measurement, error) {
	label := q.Label
	trim := false
	if v.Label != "" {
		label = q.Label + "_" + v.Label
		trim = true
	}

	if v.Setup != nil {
		if err := v.Setup(ctx); err != nil {
			return Measurement{}, errors.Wrapf(err, "%s: setup failed", label)
		}
	}
	if v.Teardown != nil {
		defer func() {
			if err := v.Teardown(ctx); err != nil {
				h.l.Warnf("%s: teardown failed: %v", label, err)
			}
		}()
	}

	timer := metrics.GetOrRegisterTimer(label, h.registry)

	samples := make([]time.Duration, 0, reps)
	var total int64
	empty := false
	for i := 1; i <= reps; i++ {
		t0 := time.Now()
		r, err := q.Run(ctx)
		d := h.elapsed(t0)

		if err != nil {
			return Measurement{}, errors.Wrapf(err, "%s: run %d", label, i)
		}
		if r.Status == StatusNotImplemented {
			return Measurement{}, errors.Wrap(ErrNotImplemented, label)
		}
		if r.Status == StatusEmpty {
			empty = true
		}

		samples = append(samples, d)
		total += r.Count
		timer.Update(d)

		rep.Printf("%s run %d/%d: %s, %d results", label, i, reps, d, r.Count)
	}

	if empty {
		h.l.Warnf("%s returned no results in at least one run", label)
	}

	elapsed := Mean(samples)
	if trim {
		elapsed = TrimmedMean(samples)
	}

	snap := timer.Snapshot()
	h.l.Infof("%s: count %d, min %s, mean %s, max %s, p95 %s, reported %s",
		label, snap.Count(), time.Duration(snap.Min()), time.Duration(snap.Mean()),
		time.Duration(snap.Max()), time.Duration(snap.Percentile(0.95)), elapsed)

	return Measurement{
		Label:   label,
		Elapsed: elapsed,
		Count:   float64(total) / float64(reps),
		Backend: h.Backend,
	}, nil
}
