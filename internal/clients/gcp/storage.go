package gcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

func NewStorageClient(ctx context.Context, log *logger.Logger) (*storage.Client, error) {
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	log.With("service", "GCSStorage").Info("Storage client initialized")
	return client, nil
}

// ParseObjectURL splits a stored media URL into bucket and object key. The
// first path segment names the bucket and the rest is the key.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", fmt.Errorf("media url %q has no bucket/key path", raw)
	}
	return parts[0], strings.Join(parts[1:], "/"), nil
}

// MediaSigner issues short-lived V4 signed GET URLs for stored media.
type MediaSigner struct {
	log    *logger.Logger
	client *storage.Client
	ttl    time.Duration
}

func NewMediaSigner(log *logger.Logger, client *storage.Client, ttl time.Duration) *MediaSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MediaSigner{log: log.With("service", "MediaSigner"), client: client, ttl: ttl}
}

func (s *MediaSigner) Sign(ctx context.Context, rawURL string) (string, error) {
	bucket, key, err := ParseObjectURL(rawURL)
	if err != nil {
		return "", err
	}
	signed, err := s.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", bucket, key, err)
	}
	return signed, nil
}
