package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Upload stores an encoded report in an S3 bucket.
func Upload(ctx context.Context, cfg aws.Config, bucket, key string, body []byte) error {
	return upload(ctx, manager.NewUploader(s3.NewFromConfig(cfg)), bucket, key, body)
}

func upload(ctx context.Context, up uploader, bucket, key string, body []byte) error {
	out, err := up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading report to s3://%s/%s failed: %w", bucket, key, err)
	}
	slog.Info("uploaded report", slog.String("location", out.Location))
	return nil
}
