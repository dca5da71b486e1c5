package bench

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const reportTimeFormat = "2006-01-02 15:04:05.000"

// report is the human-readable output file of one query on one backend.
type report struct {
	f *os.File
	w *bufio.Writer
}

// ReportPath returns the report file for a query on a backend.
func ReportPath(dir, backendID, queryName string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.txt", backendID, queryName))
}

// openReport creates dir if needed and truncates the report file.
func openReport(dir, backendID, queryName string) (*report, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}

	f, err := os.Create(ReportPath(dir, backendID, queryName))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create report file")
	}

	return &report{f: f, w: bufio.NewWriter(f)}, nil
}

func (r *report) Printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
	r.w.WriteByte('\n')
}

func (r *report) Close() error {
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		return err
	}
	return r.f.Close()
}
