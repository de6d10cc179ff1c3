package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FolderRecordings is the key prefix for archived viewing recordings.
const FolderRecordings = "recordings"

type S3Config struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	RecordingsBucket string
}

type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 builds a client from static credentials when both keys are set and
// from the default AWS chain otherwise.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		logger.Info("s3 client using static credentials", zap.String("region", cfg.Region), zap.String("recordings_bucket", cfg.RecordingsBucket))
	} else {
		logger.Warn("s3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// RecordingKey returns recordings/{reservation_id}/{recording_id}{ext}.
func RecordingKey(reservationID int64, recordingID, ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return path.Join(FolderRecordings, fmt.Sprint(reservationID), path.Base(recordingID)+ext)
}

func (s *S3) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.RecordingsBucket, s.cfg.Region, key)
}

// UploadRecording streams body into the recordings bucket and returns its URL.
func (s *S3) UploadRecording(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.RecordingsBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if contentLength > 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.ObjectURL(key), nil
}

func (s *S3) DeleteRecording(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
