package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeS3 struct {
	objects map[string]string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func writeRun(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	metrics := filepath.Join(dir, "result.csv")
	reports := filepath.Join(dir, "query_output")
	require.NoError(t, os.MkdirAll(reports, 0o755))
	require.NoError(t, os.WriteFile(metrics, []byte("query,benchmark_milliseconds,cloud_platform\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(reports, "AWS_queryJoin.txt"), []byte("join on AWS\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(reports, "GCP_queryAverage.txt"), []byte("average on GCP\n"), 0o644))
	return metrics, reports
}

func TestPublish(t *testing.T) {
	metrics, reports := writeRun(t)
	fake := &fakeS3{objects: map[string]string{}}
	p := newPublisher(fake, S3Config{Bucket: "benchmarks", Prefix: "airbnb"}, zaptest.NewLogger(t).Sugar())

	n, err := p.Publish(context.Background(), "run-1", metrics, reports)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var keys []string
	for k := range fake.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"benchmarks/airbnb/run-1/query_output/AWS_queryJoin.txt",
		"benchmarks/airbnb/run-1/query_output/GCP_queryAverage.txt",
		"benchmarks/airbnb/run-1/result.csv",
	}, keys)
	assert.Equal(t, "join on AWS\n", fake.objects["benchmarks/airbnb/run-1/query_output/AWS_queryJoin.txt"])
}

func TestPublishWithoutReports(t *testing.T) {
	metrics, _ := writeRun(t)
	fake := &fakeS3{objects: map[string]string{}}
	p := newPublisher(fake, S3Config{Bucket: "benchmarks"}, zaptest.NewLogger(t).Sugar())

	n, err := p.Publish(context.Background(), "run-2", metrics, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, fake.objects, "benchmarks/run-2/result.csv")
}

func TestPublishUploadError(t *testing.T) {
	metrics, reports := writeRun(t)
	p := newPublisher(&fakeS3{err: errors.New("access denied")}, S3Config{Bucket: "benchmarks"}, zaptest.NewLogger(t).Sugar())

	n, err := p.Publish(context.Background(), "run-3", metrics, reports)
	assert.ErrorContains(t, err, "access denied")
	assert.Zero(t, n)
}
