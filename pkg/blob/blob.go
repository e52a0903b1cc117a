// Package blob stores contract files and resolves contract URLs back to bytes.
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
)

var (
	// ErrNotFound object does not exist
	ErrNotFound = errors.New("blob: object not found")
	// ErrTooLarge object exceeds the configured size limit
	ErrTooLarge = errors.New("blob: object too large")
	// ErrForeignURL url neither points into the store nor at an allowed host
	ErrForeignURL = errors.New("blob: contract URL is not on an allowed host")
)

// Store object storage holding uploaded and generated contracts. Keys are
// the logical keys handed to Put; any deployment prefix stays inside the store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL returns the object key when url points into this store
	KeyFromURL(url string) (string, bool)
}

// HostAllowlist hosts, besides the store itself, that contracts may be
// downloaded from
type HostAllowlist map[string]struct{}

// NewHostAllowlist normalizes hosts to lower case without ports
func NewHostAllowlist(hosts []string) HostAllowlist {
	a := make(HostAllowlist, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			a[h] = struct{}{}
		}
	}
	return a
}

// Allows reports whether rawURL is an http(s) URL on an allowed host
func (a HostAllowlist) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	_, ok := a[strings.ToLower(u.Hostname())]
	return ok
}

// Resolve classifies a contract URL. A URL into store yields its key, a URL
// on an allowed host yields "" and nil, anything else ErrForeignURL.
func Resolve(store Store, hosts HostAllowlist, rawURL string) (string, error) {
	if store != nil {
		if key, ok := store.KeyFromURL(rawURL); ok {
			return key, nil
		}
	}
	if hosts.Allows(rawURL) {
		return "", nil
	}
	return "", ErrForeignURL
}

// Fetcher downloads a contract. Stored objects are read through the SDK,
// allowed foreign hosts over plain HTTP.
type Fetcher struct {
	store   Store
	hosts   HostAllowlist
	client  *http.Client
	maxSize int64
}

// NewFetcher creates a Fetcher. store may be nil.
func NewFetcher(store Store, hosts HostAllowlist, timeout time.Duration, maxSize int64) *Fetcher {
	return &Fetcher{
		store: store,
		hosts: hosts,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("blob: too many redirects")
				}
				if !hosts.Allows(req.URL.String()) {
					return ErrForeignURL
				}
				return nil
			},
		},
		maxSize: maxSize,
	}
}

// Fetch returns the contract bytes. A non-empty key wins over rawURL.
func (f *Fetcher) Fetch(ctx context.Context, key, rawURL string) ([]byte, error) {
	if key != "" && f.store != nil {
		return f.store.Get(ctx, key)
	}

	key, err := Resolve(f.store, f.hosts, rawURL)
	if err != nil {
		return nil, err
	}
	if key != "" {
		return f.store.Get(ctx, key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("blob: download: unexpected status %d", resp.StatusCode)
	}

	return readLimited(resp.Body, f.maxSize)
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}

// ContractKey object key for a student's contract file
func ContractKey(userID, fileName string) string {
	return "contracts/" + SafePart(userID) + "/" + SafePart(fileName)
}

// SafePart strips separators and whitespace from a key segment
func SafePart(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "/")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.NewReplacer("%", "_", "?", "_", "#", "_").Replace(s)
	if s == "" {
		return "file"
	}
	return s
}
