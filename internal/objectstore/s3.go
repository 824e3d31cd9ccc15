package objectstore

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// S3Store reads and writes whole objects in memory; the objects are small text files.
type S3Store struct {
	client     s3iface.S3API
	downloader *s3manager.Downloader
}

// NewS3Store ...
func NewS3Store(client s3iface.S3API) *S3Store {
	return &S3Store{
		client: client,
		downloader: s3manager.NewDownloaderWithClient(client, func(d *s3manager.Downloader) {
			d.Concurrency = 1
		}),
	}
}

// Download fetches bucket/key. A non-empty versionID pins the object version.
func (s *S3Store) Download(ctx context.Context, bucket, key, versionID string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	buf := aws.NewWriteAtBuffer([]byte{})
	if _, err := s.downloader.DownloadWithContext(ctx, buf, input); err != nil {
		return nil, errors.Wrapf(err, "unable to download s3://%s/%s (version %q)", bucket, key, versionID)
	}
	return buf.Bytes(), nil
}

// Upload replaces bucket/key with body. On a versioned bucket this creates a new version.
func (s *S3Store) Upload(ctx context.Context, bucket, key string, body []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return errors.Wrapf(err, "unable to upload s3://%s/%s", bucket, key)
	}
	return nil
}
