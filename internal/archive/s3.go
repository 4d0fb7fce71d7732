package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wrenhollow/continuity/internal/models"
)

// S3Backend mirrors archive day files to an S3-compatible bucket.
type S3Backend struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Backend loads AWS configuration from the environment/shared
// config files (the standard SDK chain) and returns a Backend bound to
// bucket/prefix.
func NewS3Backend(ctx context.Context, bucket, prefix string) (*S3Backend, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Backend{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put implements Backend.
func (b *S3Backend) Put(date string, day *models.ArchiveDay) error {
	data, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("marshal day file: %w", err)
	}
	key := date + ".json"
	if b.prefix != "" {
		key = b.prefix + "/" + key
	}
	_, err = b.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
