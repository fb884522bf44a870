// Package storage uploads listing images to object storage. Only the
// resulting public URL flows back into the database.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Uploader stores a blob under a key and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// S3Uploader implements Uploader on top of an S3 bucket.
type S3Uploader struct {
	bucket   string
	uploader *s3manager.Uploader
}

// NewS3Uploader builds an uploader for the given region and bucket.
// Credentials come from the default AWS chain (env, shared config,
// instance role).
func NewS3Uploader(region, bucket string) (*S3Uploader, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return &S3Uploader{bucket: bucket, uploader: s3manager.NewUploader(sess)}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return out.Location, nil
}
