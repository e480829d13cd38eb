// Package content resolves artifact locations to their content.
//
// Contents are fetched in background and memoized. A request for content not
// fetched yet is answered "pending", and the client should ask again later.
package content

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Status string

const (
	Ready   Status = "ready"
	Pending Status = "pending"
	Failed  Status = "failed"
)

// Result of a content lookup.
type Result struct {
	Status Status

	// content. Set only when Status is Ready.
	Body []byte

	// why fetching is failed. Set only when Status is Failed.
	Reason string
}

// Cache resolves a location string to content or its status.
type Cache interface {
	// Get returns content at the location.
	//
	// Failures of fetching are reported as Result with Failed status.
	// error is for failures of the cache itself.
	Get(ctx context.Context, location string) (Result, error)
}

// Fetcher reads content from a storage.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

var ErrUnsupportedLocation = errors.New("unsupported location")

// S3Location is a parsed "s3://bucket/key" location.
type S3Location struct {
	Bucket string
	Key    string
}

func ParseS3Location(location string) (S3Location, error) {
	u, err := url.Parse(location)
	if err != nil {
		return S3Location{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedLocation, location, err)
	}
	if u.Scheme != "s3" {
		return S3Location{}, fmt.Errorf("%w: %s: scheme should be s3", ErrUnsupportedLocation, location)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return S3Location{}, fmt.Errorf("%w: %s: bucket and key are required", ErrUnsupportedLocation, location)
	}
	return S3Location{Bucket: u.Host, Key: key}, nil
}
