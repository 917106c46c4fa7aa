package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/starford/othala/internal/apperr"
)

// s3API is the subset of the S3 client the adapter calls. Tests install a
// fake.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 implements Tree on an S3 bucket. Containers are the implicit prefixes
// of object keys, so EnsureDir and container deletion have nothing to do.
type S3 struct {
	api    s3API
	bucket string
}

// S3Options configures NewS3.
type S3Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Endpoint  string
	PathStyle bool
}

// NewS3 builds a client from the default credential chain and verifies the
// bucket is reachable. Bucket provisioning is deployment concern, not ours.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("storage: aws config: %w: %v", apperr.ErrBackendUnavailable, err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return newS3(ctx, client, opts.Bucket)
}

func newS3(ctx context.Context, api s3API, bucket string) (*S3, error) {
	if _, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("storage: bucket %s: %w: %v", bucket, apperr.ErrBackendUnavailable, err)
	}
	return &S3{api: api, bucket: bucket}, nil
}

// List enumerates dir with a delimiter query: common prefixes come back as
// containers, objects as leaves.
func (t *S3) List(ctx context.Context, dir string) ([]Entry, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	var (
		entries []Entry
		token   *string
	)
	for {
		out, err := t.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(t.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", dir, err)
		}
		for _, p := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
			if name != "" {
				entries = append(entries, Entry{Name: name, Kind: KindContainer})
			}
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue // the prefix marker itself
			}
			entries = append(entries, Entry{Name: name, Kind: KindLeaf})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return entries, nil
}

// Exists reports whether an object exists at path.
func (t *S3) Exists(ctx context.Context, path string) (bool, error) {
	_, err := t.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("storage: head %s: %w", path, err)
	}
	return true, nil
}

// OpenRead streams the object at path.
func (t *S3) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := t.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("storage: get %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", path, err)
	}
	return out.Body, nil
}

// Write replaces the object at path.
func (t *S3) Write(ctx context.Context, path string, data []byte) error {
	if _, err := t.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return fmt.Errorf("storage: put %s: %w", path, err)
	}
	return nil
}

// EnsureDir is a no-op: prefixes exist exactly as long as objects under
// them do.
func (t *S3) EnsureDir(ctx context.Context, path string) error { return nil }

// DeleteIfExists removes the object at path. S3 deletes are natively
// idempotent; container deletion has nothing to remove.
func (t *S3) DeleteIfExists(ctx context.Context, path string, kind Kind) error {
	if kind == KindContainer {
		return nil
	}
	if _, err := t.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(path),
	}); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no exclusive resources.
func (t *S3) Close() error { return nil }
