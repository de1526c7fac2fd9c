package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gstrecon/internal/config"
	"gstrecon/internal/port"
)

type s3Archive struct {
	bucket    string
	prefix    string
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
}

// NewReportArchive creates an S3-backed ReportArchive writing under cfg.Bucket/cfg.Prefix.
func NewReportArchive(cfg *config.S3Config) (port.ReportArchive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive: bucket is not configured")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	// MinIO and LocalStack need path-style addressing.
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &s3Archive{
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader:  manager.NewUploader(client),
	}, nil
}

func (a *s3Archive) objectKey(key string) string {
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}

func (a *s3Archive) Put(ctx context.Context, key string, body io.Reader, contentType string) (*port.ArchivedObject, error) {
	full := a.objectKey(key)
	result, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(full),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 upload %s: %w", full, err)
	}

	etag := ""
	if result.ETag != nil {
		etag = *result.ETag
	}
	return &port.ArchivedObject{
		Key:      key,
		Location: result.Location,
		ETag:     etag,
	}, nil
}

func (a *s3Archive) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}

func (a *s3Archive) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.objectKey(key)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	return result.URL, nil
}
