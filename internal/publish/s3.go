// Package publish uploads benchmark results to S3-compatible object storage.
package publish

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// S3Config holds the bucket location of published results.
type S3Config struct {
	Bucket string
	Region string

	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint  string
	PathStyle bool

	// Prefix is prepended to every object key.
	Prefix string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads the metrics file and report files of one run.
type Publisher struct {
	client putObjectAPI
	cfg    S3Config
	l      *zap.SugaredLogger
}

// NewS3Publisher creates a publisher using the default AWS credential chain.
func NewS3Publisher(ctx context.Context, cfg S3Config, l *zap.SugaredLogger) (*Publisher, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newPublisher(client, cfg, l), nil
}

func newPublisher(client putObjectAPI, cfg S3Config, l *zap.SugaredLogger) *Publisher {
	return &Publisher{client: client, cfg: cfg, l: l}
}

// Key returns the object key of a file relative to the run directory.
func (p *Publisher) Key(runID, rel string) string {
	return path.Join(p.cfg.Prefix, runID, filepath.ToSlash(rel))
}

// Publish uploads metricsFile and every file below reportDir under <prefix>/<runID>/.
// It returns the number of uploaded objects.
func (p *Publisher) Publish(ctx context.Context, runID, metricsFile, reportDir string) (int, error) {
	keys := map[string]string{metricsFile: p.Key(runID, filepath.Base(metricsFile))}
	files := []string{metricsFile}

	base := filepath.Dir(reportDir)
	err := filepath.WalkDir(reportDir, func(file string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(base, file)
		if err != nil {
			return err
		}
		keys[file] = p.Key(runID, rel)
		files = append(files, file)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, errors.Wrapf(err, "failed to list reports in %s", reportDir)
	}

	var uploaded int
	for _, file := range files {
		if err = p.upload(ctx, file, keys[file]); err != nil {
			return uploaded, err
		}
		uploaded++
	}

	p.l.Infof("Published %d files to s3://%s/%s", uploaded, p.cfg.Bucket, p.Key(runID, ""))
	return uploaded, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", file)
	}
	defer f.Close()

	contentType := "text/plain"
	if filepath.Ext(file) == ".csv" {
		contentType = "text/csv"
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload %s", key)
	}

	p.l.Debugf("Uploaded %s", key)
	return nil
}
