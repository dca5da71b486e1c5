package bench

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeElapsed returns the given durations in order, one per timed run.
func fakeElapsed(durations ...time.Duration) func(time.Time) time.Duration {
	return func(time.Time) time.Duration {
		d := durations[0]
		durations = durations[1:]
		return d
	}
}

func newTestHarness(t *testing.T, reps int) (*Harness, string) {
	t.Helper()

	dir := t.TempDir()
	sink, err := NewSink(filepath.Join(dir, "result.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })

	h := NewHarness("AWS", reps, filepath.Join(dir, "query_output"), sink, zaptest.NewLogger(t).Sugar())
	return h, dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestHarnessDefaultPolicy(t *testing.T) {
	h, dir := newTestHarness(t, 4)
	h.elapsed = fakeElapsed(ms(5, 1, 9, 3)...)

	counts := []int64{10, 20, 30, 40}
	q := Query{
		Name:  "queryCount",
		Label: "count",
		Run: func(context.Context) (Result, error) {
			c := counts[0]
			counts = counts[1:]
			return Counted(c), nil
		},
	}

	res, err := h.Run(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res, 1)

	assert.Equal(t, 4500*time.Microsecond, res[0].Elapsed)
	assert.Equal(t, 25.0, res[0].Count)
	assert.Equal(t, "AWS", res[0].Backend)

	records := readCSV(t, filepath.Join(dir, "result.csv"))
	assert.Equal(t, [][]string{
		{"query", "benchmark_milliseconds", "cloud_platform"},
		{"count", "4.500", "AWS"},
	}, records)

	report, err := os.ReadFile(ReportPath(filepath.Join(dir, "query_output"), "AWS", "queryCount"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Start: ")
	assert.Contains(t, string(report), "count run 4/4: 3ms, 40 results")
	assert.Contains(t, string(report), "Total elapsed: ")

	assert.Equal(t, int64(4), h.Registry().Get("count").(metrics.Timer).Count())
}

func TestHarnessVariantsTrim(t *testing.T) {
	h, dir := newTestHarness(t, 4)
	h.elapsed = fakeElapsed(ms(5, 1, 9, 3, 8, 2, 2, 8)...)

	var events []string
	q := Query{
		Name:  "queryJoin",
		Label: "join",
		Run: func(context.Context) (Result, error) {
			return Counted(2), nil
		},
		Variants: []Variant{
			{Label: "without_index"},
			{
				Label: "with_index",
				Setup: func(context.Context) error {
					events = append(events, "setup")
					return nil
				},
				Teardown: func(context.Context) error {
					events = append(events, "teardown")
					return nil
				},
			},
		},
	}

	res, err := h.Run(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "join_without_index", res[0].Label)
	assert.Equal(t, 4*time.Millisecond, res[0].Elapsed)
	assert.Equal(t, "join_with_index", res[1].Label)
	assert.Equal(t, 5*time.Millisecond, res[1].Elapsed)
	assert.Equal(t, []string{"setup", "teardown"}, events)

	records := readCSV(t, filepath.Join(dir, "result.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"join_with_index", "5.000", "AWS"}, records[2])
}

func TestHarnessVariantsNoTrimForTwoRuns(t *testing.T) {
	h, _ := newTestHarness(t, 5)
	h.elapsed = fakeElapsed(ms(1, 9)...)

	q := Query{
		Name:        "queryJoin",
		Label:       "join",
		Repetitions: 2,
		Run:         func(context.Context) (Result, error) { return Counted(1), nil },
		Variants:    []Variant{{Label: "without_index"}},
	}

	res, err := h.Run(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, res[0].Elapsed)
}

func TestHarnessNotImplemented(t *testing.T) {
	h, dir := newTestHarness(t, 3)

	runs := 0
	q := Query{
		Name:  "queryStub",
		Label: "stub",
		Run: func(context.Context) (Result, error) {
			runs++
			return Result{Status: StatusNotImplemented}, nil
		},
	}

	_, err := h.Run(context.Background(), q)
	assert.True(t, errors.Is(err, ErrNotImplemented))
	assert.Equal(t, 1, runs)
	assert.Len(t, readCSV(t, filepath.Join(dir, "result.csv")), 1)
}

func TestHarnessRunError(t *testing.T) {
	h, _ := newTestHarness(t, 3)

	teardown := false
	q := Query{
		Name:  "queryJoin",
		Label: "join",
		Run: func(context.Context) (Result, error) {
			return Result{}, errors.New("cursor killed")
		},
		Variants: []Variant{{
			Label:    "with_index",
			Teardown: func(context.Context) error { teardown = true; return nil },
		}},
	}

	_, err := h.Run(context.Background(), q)
	assert.ErrorContains(t, err, "cursor killed")
	assert.True(t, teardown, "teardown must run after a failed variant")
}

func TestHarnessSetupError(t *testing.T) {
	h, _ := newTestHarness(t, 3)

	runs := 0
	q := Query{
		Name:  "queryJoin",
		Label: "join",
		Run: func(context.Context) (Result, error) {
			runs++
			return Counted(1), nil
		},
		Variants: []Variant{{
			Label: "with_index",
			Setup: func(context.Context) error { return errors.New("index build failed") },
		}},
	}

	_, err := h.Run(context.Background(), q)
	assert.ErrorContains(t, err, "index build failed")
	assert.Zero(t, runs)
}

func TestSinkClosed(t *testing.T) {
	sink, err := NewSink(filepath.Join(t.TempDir(), "result.csv"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.Error(t, sink.Append(Measurement{Label: "count"}))
}
