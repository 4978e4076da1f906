// Package archive stores raw source documents in S3-compatible object storage,
// keyed by the checksum of their normalized text.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"permitpulse/internal/platform/config"
	"permitpulse/internal/rules"
)

type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes each distinct document once.
type S3Archive struct {
	client objectAPI
	bucket string
	prefix string
}

// New returns nil when no bucket is configured.
func New(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle || cfg.Endpoint != ""
	})
	return newWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func newWithClient(client objectAPI, bucket, prefix string) *S3Archive {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

// Key is the object key for a document.
func (a *S3Archive) Key(doc *rules.RawDocument, checksum string) string {
	return a.prefix + strings.ToLower(doc.CityCode.String()) + "/" + checksum + ".html"
}

// Put uploads doc unless an object with the same checksum already exists.
func (a *S3Archive) Put(ctx context.Context, checksum string, doc *rules.RawDocument) error {
	key := a.Key(doc, checksum)
	if _, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}); err == nil {
		return nil
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(doc.Content),
		ContentType: aws.String("text/html; charset=utf-8"),
		Metadata: map[string]string{
			"city-code":  doc.CityCode.String(),
			"source-url": doc.SourceURL,
			"checksum":   checksum,
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}
