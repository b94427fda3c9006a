// Package obs uploads session recordings to S3-compatible object storage
// (NCP Object Storage by default) and derives the public URL consumed by
// the batch recognition service.
package obs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/charmbracelet/log"
)

const (
	DefaultEndpoint = "https://kr.object.ncloudstorage.com"
	DefaultRegion   = "kr-standard"
)

// keyPrefix namespaces uploads destined for batch recognition.
const keyPrefix = "stt/input_audio"

// Config is the object-storage connection configuration.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// Uploader is an object-storage client bound to one bucket. One uploader
// serves one session at a time.
type Uploader struct {
	client   *s3.Client
	bucket   string
	endpoint string
	logger   *log.Logger
}

// New builds the client and probes the bucket, so a misconfiguration
// surfaces at construction rather than at the end of a session.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Uploader, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object storage configuration missing")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load object storage config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("bucket %s unreachable: %w", cfg.Bucket, err)
	}
	logger.Info("object storage connected",
		"bucket", cfg.Bucket, "endpoint", cfg.Endpoint, "region", cfg.Region)

	return &Uploader{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		logger:   logger,
	}, nil
}

// ObjectKey builds the upload key for a local file:
// stt/input_audio/{yyyymmdd_HHMMSS}_{filename}.
func ObjectKey(localPath string, now time.Time) string {
	return fmt.Sprintf("%s/%s_%s",
		keyPrefix, now.Format("20060102_150405"), filepath.Base(localPath))
}

// PublicURL is the virtual-hosted URL of an uploaded object, the form the
// batch recognition service accepts as an external URL.
func PublicURL(endpoint, bucket, key string) string {
	host := strings.TrimPrefix(endpoint, "https://")
	host = strings.TrimPrefix(host, "http://")
	return fmt.Sprintf("https://%s.%s/%s", bucket, host, key)
}

// Upload puts the file with public-read access and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("audio file not found: %s", localPath)
	}
	defer f.Close()

	key := ObjectKey(localPath, time.Now())
	u.logger.Info("uploading", "local", localPath, "key", key)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("audio/wav"),
		ACL:         types.ObjectCannedACLPublicRead,
		Metadata: map[string]string{
			"uploaded-at": time.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	url := PublicURL(u.endpoint, u.bucket, key)
	u.logger.Info("upload complete", "url", url)
	return url, nil
}
