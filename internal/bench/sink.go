package bench

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Measurement is one averaged benchmark variant of one query on one backend.
type Measurement struct {
	Label   string
	Elapsed time.Duration
	Count   float64
	Backend string
}

// Milliseconds returns Elapsed as fractional milliseconds.
func (m Measurement) Milliseconds() float64 {
	return float64(m.Elapsed) / float64(time.Millisecond)
}

var sinkHeader = []string{"query", "benchmark_milliseconds", "cloud_platform"}

// Sink appends measurements to the metrics CSV file. Rows are flushed as they are written.
type Sink struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	path   string
	closed bool
}

// NewSink truncates path and writes the header row.
func NewSink(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create metrics file")
	}

	s := &Sink{
		f:    f,
		w:    csv.NewWriter(f),
		path: path,
	}
	if err = s.write(sinkHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string {
	return s.path
}

// Append writes one measurement row.
func (s *Sink) Append(m Measurement) error {
	return s.write([]string{
		m.Label,
		strconv.FormatFloat(m.Milliseconds(), 'f', 3, 64),
		m.Backend,
	})
}

func (s *Sink) write(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("metrics file is closed")
	}

	if err := s.w.Write(record); err != nil {
		return errors.Wrap(err, "failed to write metrics row")
	}
	s.w.Flush()
	return errors.Wrap(s.w.Error(), "failed to flush metrics row")
}

// Close flushes and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
