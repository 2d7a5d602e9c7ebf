package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// objectPutter is the subset of the S3 client used by S3Mirror.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror copies finished artifacts to an S3-compatible bucket.
// The local output directory stays the source of truth for downloads.
type S3Mirror struct {
	s3Client  objectPutter
	bucket    string
	prefix    string
	publicURL string // optional base URL for public bucket (e.g. http://localhost:9000/podcasts)
}

// NewS3Mirror creates a new S3 mirror
func NewS3Mirror(endpoint, region, bucket, accessKey, secretKey, prefix, publicURL string) (*S3Mirror, error) {
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if accessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	// Add custom endpoint if provided (for MinIO/LocalStack)
	if endpoint != "" {
		configOpts = append(configOpts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for MinIO; relaxed checksums for R2 and similar backends.
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	log.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Str("prefix", prefix).
		Msg("S3 mirror initialized")

	return newS3Mirror(s3Client, bucket, prefix, publicURL), nil
}

func newS3Mirror(client objectPutter, bucket, prefix, publicURL string) *S3Mirror {
	return &S3Mirror{
		s3Client:  client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Key returns the object key for a local artifact path.
func (m *S3Mirror) Key(localPath string) string {
	name := filepath.Base(localPath)
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// PublicURL returns the public URL for an object key. Empty if publicURL was not configured.
func (m *S3Mirror) PublicURL(key string) string {
	if m.publicURL == "" {
		return ""
	}
	return m.publicURL + "/" + key
}

// Mirror uploads every non-empty local path. It stops at the first failure.
func (m *S3Mirror) Mirror(ctx context.Context, localPaths ...string) error {
	for _, p := range localPaths {
		if p == "" {
			continue
		}
		if err := m.uploadFile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *S3Mirror) uploadFile(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return m.Upload(ctx, m.Key(localPath), f, contentType, info.Size())
}

// Upload uploads data to S3. contentLength must be > 0; S3-compatible backends (e.g. R2) require the Content-Length header.
func (m *S3Mirror) Upload(ctx context.Context, key string, data io.Reader, contentType string, contentLength int64) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(contentLength),
	}
	if _, err := m.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().
		Str("bucket", m.bucket).
		Str("key", key).
		Str("public_url", m.PublicURL(key)).
		Msg("Artifact uploaded to S3")

	return nil
}
