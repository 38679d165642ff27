package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"WikiTracker/internal/config"
	"WikiTracker/internal/ports"
)

// ObjectPutter is the subset of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads the written output under <prefix>/<runID>/<basename>.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

var _ ports.Archiver = (*S3Archiver)(nil)

// NewS3Archiver wraps an existing client.
func NewS3Archiver(client ObjectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3Client loads the default AWS credential chain. A custom endpoint (MinIO) switches
// to path-style addressing.
func NewS3Client(ctx context.Context, cfg config.ArchiveConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, opts...), nil
}

// Archive uploads the file and returns its s3:// location.
func (a *S3Archiver) Archive(ctx context.Context, runID, file string) (string, error) {
	if a.client == nil || a.bucket == "" {
		return "", fmt.Errorf("s3 archiver misconfigured")
	}

	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	key := a.Key(runID, file)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Key builds the object key for a run.
func (a *S3Archiver) Key(runID, file string) string {
	return path.Join(a.prefix, runID, filepath.Base(file))
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".tsv", ".tab":
		return "text/tab-separated-values"
	default:
		return "text/csv"
	}
}
