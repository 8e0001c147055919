package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"loom/internal/config"
	"loom/internal/logging"
)

// Uploader ships a finished job's artifacts to object storage. Upload failure
// must be tolerable to callers: a completed job stays completed.
type Uploader interface {
	Upload(ctx context.Context, jobID, videoPath, metadataPath string) error
	Enabled() bool
}

// Disabled is the uploader used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, string) error { return nil }

func (Disabled) Enabled() bool { return false }

// NewUploader returns the S3 uploader when [storage] s3_bucket is set and the
// disabled uploader otherwise.
func NewUploader(cfg *config.Config, logger *slog.Logger) (Uploader, error) {
	bucket := strings.TrimSpace(cfg.Storage.S3Bucket)
	if bucket == "" {
		return Disabled{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(strings.TrimSpace(cfg.Storage.S3Region)),
	}
	if endpoint := strings.TrimSpace(cfg.Storage.S3Endpoint); endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(endpoint))
	}
	if access := strings.TrimSpace(cfg.Storage.S3AccessKey); access != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     access,
				SecretAccessKey: cfg.Storage.S3SecretKey,
			},
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Storage.S3PathStyle
	})

	return &S3Uploader{
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.Storage.S3KeyPrefix), "/"),
		client: client,
		logger: logging.NewComponentLogger(logger, "artifacts"),
	}, nil
}

// objectPutter is the slice of the S3 API the uploader uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores final videos and their metadata summaries under
// <prefix>/<job-id>/ in one bucket.
type S3Uploader struct {
	bucket string
	prefix string
	client objectPutter
	logger *slog.Logger
}

func (u *S3Uploader) Enabled() bool { return true }

func (u *S3Uploader) Upload(ctx context.Context, jobID, videoPath, metadataPath string) error {
	uploads := []struct {
		path        string
		contentType string
	}{
		{videoPath, "video/mp4"},
		{metadataPath, "application/json"},
	}
	for _, item := range uploads {
		if strings.TrimSpace(item.path) == "" {
			continue
		}
		if err := u.putFile(ctx, jobID, item.path, item.contentType); err != nil {
			return err
		}
	}
	return nil
}

func (u *S3Uploader) putFile(ctx context.Context, jobID, filePath, contentType string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	key := u.keyFor(jobID, filepath.Base(filePath))
	if _, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	}); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	u.logger.Info("uploaded artifact",
		logging.String("bucket", u.bucket),
		logging.String("key", key),
	)
	return nil
}

func (u *S3Uploader) keyFor(jobID, name string) string {
	if u.prefix != "" {
		return path.Join(u.prefix, jobID, name)
	}
	return path.Join(jobID, name)
}
