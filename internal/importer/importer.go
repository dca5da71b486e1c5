// Package importer loads CSV and JSON dataset files into collections.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrDirectoryNotFound is returned when the import folder does not exist.
var ErrDirectoryNotFound = errors.New("import directory not found")

// Inserter is the part of a collection the importer writes to.
type Inserter interface {
	Name() string
	InsertOne(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []interface{}) (*mongo.InsertManyResult, error)
}

// Importer streams dataset files into collections in batches.
type Importer struct {
	l *zap.SugaredLogger
}

func New(l *zap.SugaredLogger) *Importer {
	return &Importer{l: l}
}

// ImportFolder imports every .csv and .json file (optionally gzipped) directly inside dir.
// Files with other extensions are skipped. It returns the number of imported documents.
func (im *Importer) ImportFolder(ctx context.Context, dir string, coll Inserter, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		return 0, errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		im.l.Errorf("Directory doesn't exist. Check if path is correct: %s", dir)
		return 0, errors.Wrapf(ErrDirectoryNotFound, "%s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	insertRate := metrics.NewMeter()
	defer insertRate.Stop()

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		file := filepath.Join(dir, entry.Name())
		im.l.Infof("Importing file: %s", file)

		count, err := im.importFile(ctx, file, coll, chunkSize, insertRate)
		if errors.Is(err, errUnsupported) {
			im.l.Errorf("File extension not supported for importing: %s", file)
			continue
		}
		if err != nil {
			return total, errors.Wrapf(err, "failed to import %s", file)
		}

		if count == 0 {
			im.l.Errorf("Failed to import the file: %s", file)
			continue
		}

		total += count
		im.l.Infof("Imported %d documents from %s (total %d, mean rate %.2f docs/sec)",
			count, file, total, insertRate.RateMean())
	}

	return total, nil
}

var errUnsupported = errors.New("unsupported file extension")

func (im *Importer) importFile(ctx context.Context, file string, coll Inserter, chunkSize int, rate metrics.Meter) (int64, error) {
	name := strings.ToLower(filepath.Base(file))
	compressed := strings.HasSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gz")

	ext := filepath.Ext(name)
	if ext != ".csv" && ext != ".json" {
		return 0, errUnsupported
	}

	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return 0, errors.Wrap(err, "failed to open gzip stream")
		}
		defer zr.Close()
		r = zr
	}

	if ext == ".json" {
		return im.ImportJSON(ctx, r, coll, chunkSize, rate)
	}
	return im.ImportCSV(ctx, r, coll, chunkSize, rate)
}

// ImportCSV reads a header row and then inserts one document per row, chunkSize rows at a time.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, coll Inserter, chunkSize int, rate metrics.Meter) (int64, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read CSV header")
	}
	headers = append([]string(nil), headers...)
	im.l.Debugf("Parsed %d columns: %s", len(headers), strings.Join(headers, ","))

	var count int64
	batch := newBatch(coll, chunkSize, rate)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, errors.Wrapf(err, "failed to read CSV row %d", count+1)
		}

		if err = batch.add(ctx, RowDocument(headers, record).D()); err != nil {
			return count, err
		}
		count++
	}

	if err = batch.flush(ctx); err != nil {
		return count, err
	}
	return count, nil
}

// ImportJSON inserts a JSON object as a single document, or a top-level array of objects
// in batches of chunkSize. Extended JSON is accepted.
func (im *Importer) ImportJSON(ctx context.Context, r io.Reader, coll Inserter, chunkSize int, rate metrics.Meter) (int64, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if first != '[' {
		data, err := io.ReadAll(br)
		if err != nil {
			return 0, err
		}

		var doc bson.D
		if err = bson.UnmarshalExtJSON(data, false, &doc); err != nil {
			return 0, errors.Wrap(err, "failed to parse JSON document")
		}
		im.l.Debugf("Translated JSON into a document with %d elements", len(doc))

		if _, err = coll.InsertOne(ctx, doc); err != nil {
			return 0, errors.Wrapf(err, "failed to insert into %s", coll.Name())
		}
		rate.Mark(1)
		return int64(len(doc)), nil
	}

	dec := json.NewDecoder(br)
	if _, err = dec.Token(); err != nil {
		return 0, errors.Wrap(err, "failed to parse JSON array")
	}

	var count int64
	batch := newBatch(coll, chunkSize, rate)
	for dec.More() {
		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return count, errors.Wrapf(err, "failed to parse JSON element %d", count)
		}

		var doc bson.D
		if err = bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
			return count, errors.Wrapf(err, "failed to parse JSON element %d", count)
		}

		if err = batch.add(ctx, doc); err != nil {
			return count, err
		}
		count++
	}

	if err = batch.flush(ctx); err != nil {
		return count, err
	}
	return count, nil
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// peekNonSpace returns the first byte after an optional BOM and whitespace without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}

		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// batch buffers documents and flushes them with InsertMany once size is reached.
type batch struct {
	coll Inserter
	size int
	rate metrics.Meter
	docs []interface{}
}

func newBatch(coll Inserter, size int, rate metrics.Meter) *batch {
	return &batch{
		coll: coll,
		size: size,
		rate: rate,
		docs: make([]interface{}, 0, size),
	}
}

func (b *batch) add(ctx context.Context, doc interface{}) error {
	b.docs = append(b.docs, doc)
	if len(b.docs) < b.size {
		return nil
	}
	return b.flush(ctx)
}

func (b *batch) flush(ctx context.Context) error {
	if len(b.docs) == 0 {
		return nil
	}

	if _, err := b.coll.InsertMany(ctx, b.docs); err != nil {
		return errors.Wrapf(err, "failed to insert %d documents into %s", len(b.docs), b.coll.Name())
	}
	b.rate.Mark(int64(len(b.docs)))

	b.docs = make([]interface{}, 0, b.size)
	return nil
}
