// Package objectstore is the external collaborator spec.md §6 describes:
// list-by-prefix and get-by-key against the public NEXRAD archive bucket.
package objectstore

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Bucket is the constant bucket name for the public NEXRAD Level II archive.
const Bucket = "unidata-nexrad-level2"

const requestTimeout = 5 * time.Second

// ListResult carries both the matched keys and, when a delimiter was
// supplied, the discovered common prefixes (used for "ALL" station mode).
type ListResult struct {
	Keys           []string
	CommonPrefixes []string
}

// Client is the object-store contract the discovery scanner and fetch
// pipeline depend on.
type Client interface {
	List(ctx context.Context, prefix, delimiter, startAfter string) (ListResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// S3Client talks to S3-compatible storage with anonymous credentials, as
// required for the public NEXRAD bucket.
type S3Client struct {
	api *s3.Client
}

// NewS3Client builds a process-wide S3 client, loading region configuration
// once at startup per spec.md §9's singleton-SDK-init guidance.
func NewS3Client(ctx context.Context, region string) (*S3Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, err
	}
	return &S3Client{api: s3.NewFromConfig(cfg)}, nil
}

// List returns keys under prefix, lexicographically after startAfter, and
// (when delimiter is non-empty) the common prefixes one level down.
func (c *S3Client) List(ctx context.Context, prefix, delimiter, startAfter string) (ListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var result ListResult
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(Bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if startAfter != "" {
		input.StartAfter = aws.String(startAfter)
	}

	paginator := s3.NewListObjectsV2Paginator(c.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return result, err
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				result.Keys = append(result.Keys, *obj.Key)
			}
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				result.CommonPrefixes = append(result.CommonPrefixes, strings.TrimSuffix(*cp.Prefix, delimiter))
			}
		}
	}

	sort.Strings(result.Keys)
	return result, nil
}

// Get fetches the full object body for key.
func (c *S3Client) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := out.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			if readErr != io.EOF {
				return nil, readErr
			}
			break
		}
	}
	return buf, nil
}
