package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Source fetches the raw pool document.
type Source interface {
	Fetch(ctx context.Context, maxBytes int64) ([]byte, error)
	String() string
}

// HTTPSource fetches the document with GET.
type HTTPSource struct {
	client *http.Client
	url    string
}

// NewHTTPSource returns a source for an http(s) URL. A nil client uses http.DefaultClient.
func NewHTTPSource(client *http.Client, rawURL string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client, url: rawURL}
}

func (s *HTTPSource) String() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("pool: upstream status %d", resp.StatusCode)
	}
	return readCapped(resp.Body, maxBytes)
}

// FileSource reads the document from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource returns a source for a local path.
func NewFileSource(path string) *FileSource { return &FileSource{path: path} }

func (s *FileSource) String() string { return "file://" + s.path }

func (s *FileSource) Fetch(_ context.Context, maxBytes int64) ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return readCapped(f, maxBytes)
}

// NewSource picks a Source by URL scheme: http, https, s3 or file.
func NewSource(ctx context.Context, cfg Config, client *http.Client) (Source, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("pool: parse url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPSource(client, raw), nil
	case "file":
		p := u.Path
		if u.Host != "" {
			p = u.Host + p
		}
		if p == "" {
			return nil, fmt.Errorf("pool: empty file path in %q", raw)
		}
		return NewFileSource(p), nil
	case "s3":
		return NewS3Source(ctx, u, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	b, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxBytes {
		return nil, ErrTooLarge
	}
	return b, nil
}
