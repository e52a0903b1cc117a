package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"

	"praxihub/backend/config"
)

// OSS Aliyun OSS backed Store
type OSS struct {
	bucket     *oss.Bucket
	endpoint   string
	bucketName string
	publicBase string
	prefix     string
	signTTL    time.Duration
	maxSize    int64
	logger     *zap.Logger
}

// NewOSS connects to the configured bucket
func NewOSS(cfg *config.StorageConfig, logger *zap.Logger) (*OSS, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("blob: storage endpoint, access_key, secret_key and bucket are required")
	}

	var (
		client *oss.Client
		err    error
	)
	if cfg.SecurityToken != "" {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, oss.SecurityToken(cfg.SecurityToken))
	} else {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: oss.New: %w", err)
	}

	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blob: open bucket: %w", err)
	}

	logger.Info("oss bucket ready", zap.String("bucket", cfg.Bucket), zap.String("endpoint", cfg.Endpoint))

	return &OSS{
		bucket:     bkt,
		endpoint:   cfg.Endpoint,
		bucketName: cfg.Bucket,
		publicBase: strings.TrimRight(strings.TrimSpace(cfg.PublicBase), "/"),
		prefix:     strings.Trim(cfg.KeyPrefix, "/"),
		signTTL:    cfg.SignedURLTTL,
		maxSize:    cfg.MaxFileSize,
		logger:     logger,
	}, nil
}

// Put uploads r under key and returns its download URL
func (s *OSS) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	full := s.fullKey(key)
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
	}
	if err := s.bucket.PutObject(full, r, opts...); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", full, err)
	}

	if s.signTTL > 0 {
		signed, err := s.bucket.SignURL(full, oss.HTTPGet, int64(s.signTTL.Seconds()))
		if err != nil {
			return "", fmt.Errorf("blob: sign %s: %w", full, err)
		}
		return signed, nil
	}
	return PublicURL(s.publicBase, s.bucketName, s.endpoint, full), nil
}

// Get downloads the object stored under key
func (s *OSS) Get(ctx context.Context, key string) ([]byte, error) {
	key = s.fullKey(key)
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: get %s: %w", key, err)
	}
	defer body.Close()

	return readLimited(body, s.maxSize)
}

// Delete removes the object stored under key
func (s *OSS) Delete(ctx context.Context, key string) error {
	key = s.fullKey(key)
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil && !isNotFound(err) {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

// KeyFromURL implements Store. Objects outside the key prefix are not ours.
func (s *OSS) KeyFromURL(rawURL string) (string, bool) {
	full, ok := ExtractKey(rawURL, s.publicBase, s.bucketName, s.endpoint)
	if !ok || s.prefix == "" {
		return full, ok
	}
	key, found := strings.CutPrefix(full, s.prefix+"/")
	return key, found && key != ""
}

func (s *OSS) fullKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// PublicURL builds the public URL of key, preferring the configured base
func PublicURL(publicBase, bucket, endpoint, key string) string {
	if key == "" {
		return ""
	}
	if publicBase != "" {
		return strings.TrimRight(publicBase, "/") + "/" + key
	}
	end := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", bucket, end, key)
}

// ExtractKey is the inverse of PublicURL. It also accepts signed URLs: the
// query string is dropped and the path unescaped, since SignURL escapes "/".
// ok is false for foreign hosts.
func ExtractKey(rawURL, publicBase, bucket, endpoint string) (string, bool) {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		rawURL = rawURL[:i]
	}
	if rawURL == "" {
		return "", false
	}

	var escaped string
	found := false
	if publicBase != "" {
		escaped, found = strings.CutPrefix(rawURL, strings.TrimRight(publicBase, "/")+"/")
	}
	end := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	for _, scheme := range []string{"https://", "http://"} {
		if found {
			break
		}
		escaped, found = strings.CutPrefix(rawURL, scheme+bucket+"."+end+"/")
	}
	if !found {
		return "", false
	}

	key, err := url.PathUnescape(escaped)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func isNotFound(err error) bool {
	var se oss.ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}
