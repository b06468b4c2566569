// Package s3 provides a core.ArtifactStore backed by AWS S3 or any
// S3-compatible object store (MinIO, R2, LocalStack).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/lunara/reportmesh/artifact"
	"github.com/lunara/reportmesh/core"
)

// Client is the subset of the S3 API used by Store.
type Client interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Config configures an S3-compatible artifact store.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store keeps artifacts under <prefix>/<app>/<user>/<session>/<name>.
type Store struct {
	client Client
	bucket string
	prefix string
}

// New builds a Store using the default AWS credential chain unless static
// credentials are configured.
func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}

		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Save uploads the artifact, overwriting any object with the same name.
func (s *Store) Save(ctx context.Context, key core.SessionKey, a core.Artifact) error {
	objectKey := s.objectKey(key, a.Name)

	mimeType := a.MimeType
	if mimeType == "" {
		mimeType = core.DetectMimeType(a.Name)
	}

	if _, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objectKey,
		Body:        bytes.NewReader(a.Data),
		ContentType: aws.String(mimeType),
	}); err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	return nil
}

// Load downloads an artifact. Missing objects map to artifact.ErrNotFound.
func (s *Store) Load(ctx context.Context, key core.SessionKey, name string) (core.Artifact, error) {
	objectKey := s.objectKey(key, name)

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	if err != nil {
		if isNotFound(err) {
			return core.Artifact{}, artifact.ErrNotFound
		}

		return core.Artifact{}, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("s3 read object: %w", err)
	}

	mimeType := aws.ToString(out.ContentType)
	if mimeType == "" {
		mimeType = core.DetectMimeType(name)
	}

	return core.Artifact{Name: name, MimeType: mimeType, Data: data}, nil
}

// ListKeys enumerates artifact names for the session ordered by upload time,
// then name.
func (s *Store) ListKeys(ctx context.Context, key core.SessionKey) ([]string, error) {
	prefix := s.sessionPrefix(key) + "/"

	type entry struct {
		name     string
		modified time.Time
	}

	var (
		entries []entry
		token   *string
	)

	for {
		out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}

		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}

			entries = append(entries, entry{name: name, modified: aws.ToTime(obj.LastModified)})
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}

		token = out.NextContinuationToken
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].modified.Equal(entries[j].modified) {
			return entries[i].modified.Before(entries[j].modified)
		}

		return entries[i].name < entries[j].name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}

	return names, nil
}

// Delete removes an artifact. S3 deletes are idempotent, so a missing object
// is not reported.
func (s *Store) Delete(ctx context.Context, key core.SessionKey, name string) error {
	objectKey := s.objectKey(key, name)

	if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	}); err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}

	return nil
}

func (s *Store) sessionPrefix(key core.SessionKey) string {
	return path.Join(s.prefix, key.AppName, key.UserID, key.SessionID)
}

func (s *Store) objectKey(key core.SessionKey, name string) string {
	return path.Join(s.sessionPrefix(key), name)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError

	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || strings.EqualFold(apiErr.ErrorCode(), "NotFound"))
}
