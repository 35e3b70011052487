package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	pipelineports "backlot/contexts/studio-content/production-pipeline/ports"
)

// S3Uploader persists generated assets to an S3 bucket and returns the
// public URL the produced work will carry. When a CDN base URL is set the
// returned URL points at the CDN instead of the bucket endpoint.
type S3Uploader struct {
	client     *s3.Client
	bucket     string
	region     string
	cdnBaseURL string
	logger     *slog.Logger
}

func NewS3Uploader(ctx context.Context, bucket string, region string, cdnBaseURL string, logger *slog.Logger) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("assets bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Uploader{
		client:     s3.NewFromConfig(awsCfg),
		bucket:     bucket,
		region:     region,
		cdnBaseURL: strings.TrimSuffix(cdnBaseURL, "/"),
		logger:     logger,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, contentType string, body []byte) (pipelineports.UploadResult, error) {
	key = strings.TrimPrefix(key, "/")

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		u.logger.Error("asset upload failed",
			"event", "s3_upload_failed",
			"module", "internal/platform/storage",
			"layer", "platform",
			"bucket", u.bucket,
			"key", key,
			"error", err.Error(),
		)
		return pipelineports.UploadResult{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return pipelineports.UploadResult{
		URL:  u.publicURL(key),
		Size: int64(len(body)),
	}, nil
}

func (u *S3Uploader) publicURL(key string) string {
	if u.cdnBaseURL != "" {
		return u.cdnBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
