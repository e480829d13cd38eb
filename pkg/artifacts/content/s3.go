package content

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the part of *s3.Client used by S3Fetcher.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Fetcher struct {
	client ObjectGetter

	// upper limit of content size in bytes. Zero means unlimited.
	maxSize int64
}

var _ Fetcher = &S3Fetcher{}

func NewS3Fetcher(client ObjectGetter, maxSize int64) *S3Fetcher {
	return &S3Fetcher{client: client, maxSize: maxSize}
}

// NewS3Client builds a S3 client from the default credential chain.
//
// When endpoint is not empty, requests are sent there in path-style (e.g. for MinIO).
func NewS3Client(ctx context.Context, region string, endpoint string) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	loc, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}

	obj, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't get %q from S3 bucket %q: %w", loc.Key, loc.Bucket, err)
	}
	defer obj.Body.Close()

	var body io.Reader = obj.Body
	if 0 < f.maxSize {
		body = io.LimitReader(obj.Body, f.maxSize+1)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("couldn't read %s: %w", location, err)
	}
	if 0 < f.maxSize && f.maxSize < int64(len(b)) {
		return nil, fmt.Errorf("%s is too large (> %d bytes)", location, f.maxSize)
	}
	return b, nil
}
