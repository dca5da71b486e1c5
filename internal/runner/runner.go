// Package runner drives import and query benchmarks over every configured backend.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
	"github.com/idealo/airbnb-benchmarking/internal/bench"
	"github.com/idealo/airbnb-benchmarking/internal/importer"
	"github.com/idealo/airbnb-benchmarking/internal/queries"
)

const (
	ListingsCollection = "listings"
	ReviewsCollection  = "reviews"
)

// ErrFatal marks conditions that end the whole run.
var ErrFatal = errors.New("benchmark cannot continue")

type Options struct {
	Repetitions     int
	JoinRepetitions int
	OutputDir       string

	// Import lists the folders to load before benchmarking; empty disables the import.
	Import []importer.Source
}

// Runner benchmarks backends one after another, writing to a shared sink.
type Runner struct {
	opts     Options
	sink     *bench.Sink
	importer *importer.Importer
	l        *zap.SugaredLogger
}

func New(opts Options, sink *bench.Sink, l *zap.SugaredLogger) *Runner {
	return &Runner{
		opts:     opts,
		sink:     sink,
		importer: importer.New(l),
		l:        l,
	}
}

// Run benchmarks every backend in order. It stops at the first ErrFatal;
// failing queries are logged and skipped.
func (r *Runner) Run(ctx context.Context, backends []*backend.Backend) ([]bench.Measurement, error) {
	var all []bench.Measurement
	for _, b := range backends {
		res, err := r.runBackend(ctx, b)
		all = append(all, res...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func (r *Runner) runBackend(ctx context.Context, b *backend.Backend) ([]bench.Measurement, error) {
	l := r.l.With("backend", b.ID)
	start := time.Now()
	l.Infof("Benchmarking %s", b.ID)

	if b.Database() == nil {
		if err := b.Connect(ctx); err != nil {
			return nil, errors.Wrapf(ErrFatal, "%s: %v", b.ID, err)
		}
		if err := b.ResolveDatabase(); err != nil {
			_ = b.Disconnect(ctx)
			return nil, errors.Wrapf(ErrFatal, "%s: %v", b.ID, err)
		}
	}
	defer func() {
		if err := b.Disconnect(ctx); err != nil {
			l.Warnf("Failed to disconnect: %v", err)
		}
	}()

	if len(r.opts.Import) > 0 {
		if _, err := r.importer.Run(ctx, b, r.opts.Import); err != nil {
			return nil, errors.Wrapf(ErrFatal, "%s: import: %v", b.ID, err)
		}
	}

	listings, err := b.GetCollection(ctx, ListingsCollection)
	if err != nil {
		return nil, errors.Wrapf(ErrFatal, "%s: %v", b.ID, err)
	}

	count, err := b.CountDocuments(ctx, ListingsCollection)
	if err != nil {
		return nil, errors.Wrapf(ErrFatal, "%s: sanity check: %v", b.ID, err)
	}
	if count == 0 {
		l.Errorf("Collection %q is empty. Was the dataset imported?", ListingsCollection)
		return nil, errors.Wrapf(ErrFatal, "%s: no listings", b.ID)
	}
	l.Infof("Found %d listings", count)

	reviews, err := b.GetCollection(ctx, ReviewsCollection)
	if err != nil {
		return nil, errors.Wrapf(ErrFatal, "%s: %v", b.ID, err)
	}

	h := bench.NewHarness(b.ID, r.opts.Repetitions, r.opts.OutputDir, r.sink, r.l)

	var res []bench.Measurement
	var failed int
	for _, q := range queries.Catalog(listings, reviews, r.opts.JoinRepetitions, l) {
		m, err := h.Run(ctx, q)
		res = append(res, m...)
		switch {
		case errors.Is(err, bench.ErrNotImplemented):
			l.Warnf("%s is not implemented for %s", q.Name, b.ID)
		case err != nil:
			failed++
			l.Errorf("%s failed: %v", q.Name, err)
		}
	}

	for _, line := range timerSummary(h.Registry()) {
		l.Infof("Timer %s", line)
	}
	l.Infof("Finished %s in %s: %d measurements, %d failed queries", b.ID, time.Since(start), len(res), failed)
	return res, nil
}

// timerSummary describes every timer that recorded at least one run, ordered by label.
func timerSummary(registry metrics.Registry) []string {
	var lines []string
	registry.Each(func(label string, i interface{}) {
		t, ok := i.(metrics.Timer)
		if !ok || t.Count() == 0 {
			return
		}
		snap := t.Snapshot()
		lines = append(lines, fmt.Sprintf("%s: %d runs, min %s, mean %s, max %s",
			label, snap.Count(), time.Duration(snap.Min()), time.Duration(snap.Mean()), time.Duration(snap.Max())))
	})
	sort.Strings(lines)
	return lines
}
