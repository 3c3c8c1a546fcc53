package media

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Region        string
	Bucket        string
	Endpoint      string // set for S3-compatible servers such as MinIO
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// BaseURL is where uploaded objects are publicly reachable.
func (c S3Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/")
	}
	if c.Endpoint != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(c.Endpoint, "/"), c.Bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
}

var newS3ClientFromConfig = s3.NewFromConfig

func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type S3Store struct {
	client  S3API
	bucket  string
	baseURL string
	now     func() time.Time
}

func NewS3Store(client S3API, bucket, baseURL string) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *S3Store) objectKey(ext string) string {
	d := s.now()
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

func (s *S3Store) Upload(ctx context.Context, file *File) (string, error) {
	body, err := os.Open(file.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer body.Close()

	key := s.objectKey(file.Ext())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(file.ContentType),
		ContentLength: aws.Int64(file.Size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return s.baseURL + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, err := objectName(url, s.baseURL)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
