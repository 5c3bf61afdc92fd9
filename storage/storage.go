// Package storage writes extracted page artifacts to a configurable
// backend behind a single Sink seam.
//
// Two variants satisfy the same contract: a filesystem sink writing under
// a local root (atomic temp-then-rename) and an S3 sink doing one put per
// key. The variant is picked at startup from the output location — an
// s3:// location selects the object store, anything else a local path —
// and never mixed within a run. Callers hold a Sink and stay oblivious
// to the medium.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Failure classes. Backend errors are wrapped so callers can use errors.Is
// without knowing the variant.
var (
	// ErrUnavailable means the backend could not serve the request
	// (I/O failure, network, missing bucket).
	ErrUnavailable = errors.New("storage unavailable")

	// ErrPermission means the backend refused the request.
	ErrPermission = errors.New("storage permission denied")
)

// Sink stores artifacts under slash-separated logical keys and reports
// canonical URIs, uniform in shape regardless of backend.
type Sink interface {
	// Put writes content under key and returns the canonical URI of the
	// stored artifact. Overwrites are idempotent.
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)

	// Get reads back the content stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether key holds an artifact.
	Exists(ctx context.Context, key string) (bool, error)

	// ResolveRoot returns the canonical URI of the folder-equivalent root
	// holding a document's extracted pages.
	ResolveRoot(docID string) string
}

// Config selects and parameterises the backend. Location decides the
// variant; the AWS fields only matter for s3:// locations and fall back
// to the ambient AWS environment when empty.
type Config struct {
	Location  string `yaml:"location"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Open returns the Sink for cfg.Location.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Location == "" {
		return nil, fmt.Errorf("storage: output location not configured")
	}
	if strings.HasPrefix(strings.ToLower(cfg.Location), "s3://") {
		return NewS3FromConfig(ctx, cfg)
	}
	return NewFS(cfg.Location)
}

// ParseS3URI splits an s3://bucket/prefix URI into bucket and prefix.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("storage: not an s3 uri: %q", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("storage: missing bucket in %q", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
