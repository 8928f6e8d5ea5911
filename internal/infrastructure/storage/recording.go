package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

// ObjectGetter reads objects from S3-compatible storage
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Endpoint() string
}

// Recording is a downloaded recording in a local temp file
type Recording struct {
	Path string
	Size int64

	once sync.Once
	err  error
}

// Close removes the temp file; calling it more than once is safe
func (r *Recording) Close() error {
	r.once.Do(func() {
		if err := os.Remove(r.Path); err != nil && !os.IsNotExist(err) {
			r.err = err
		}
	})
	return r.err
}

// RecordingResolver turns a recording URL into a local file the transcriber can read
type RecordingResolver struct {
	objects  ObjectGetter
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// NewRecordingResolver creates a resolver; objects may be nil when no object store is configured
func NewRecordingResolver(objects ObjectGetter, client *http.Client, maxBytes int64, logger *zap.Logger) *RecordingResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingResolver{objects: objects, client: client, maxBytes: maxBytes, logger: logger}
}

// Resolve downloads rawURL into a temp file bounded by maxBytes.
// s3://bucket/key and http(s) URLs on the object store endpoint go through the object store,
// other http(s) URLs are fetched directly. Local paths are rejected.
func (r *RecordingResolver) Resolve(ctx context.Context, rawURL string) (*Recording, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrUnsupportedRecordingURL, err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("%w: %s", entities.ErrUnsupportedRecordingURL, rawURL)
		}
		body, err = r.openObject(ctx, u.Host, key)
	case "http", "https":
		if r.objects != nil && u.Host == r.objects.Endpoint() {
			bucket, key, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
			if !ok || key == "" {
				return nil, fmt.Errorf("%w: %s", entities.ErrUnsupportedRecordingURL, rawURL)
			}
			body, err = r.openObject(ctx, bucket, key)
		} else {
			body, err = r.openHTTP(ctx, u.String())
		}
	default:
		return nil, fmt.Errorf("%w: %s", entities.ErrUnsupportedRecordingURL, rawURL)
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return r.spool(body, path.Ext(u.Path))
}

func (r *RecordingResolver) openObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if r.objects == nil {
		return nil, fmt.Errorf("%w: object storage is not configured", entities.ErrUnsupportedRecordingURL)
	}
	return r.objects.GetObject(ctx, bucket, key)
}

func (r *RecordingResolver) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download recording: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download recording: status %d", resp.StatusCode)
	}
	if r.maxBytes > 0 && resp.ContentLength > r.maxBytes {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes", entities.ErrRecordingTooLarge, resp.ContentLength)
	}
	return resp.Body, nil
}

func (r *RecordingResolver) spool(body io.Reader, ext string) (*Recording, error) {
	f, err := os.CreateTemp("", "meetingmind_recording_*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	rec := &Recording{Path: f.Name()}

	src := body
	if r.maxBytes > 0 {
		src = io.LimitReader(body, r.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && r.maxBytes > 0 && n > r.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", entities.ErrRecordingTooLarge, r.maxBytes)
	}
	if err != nil {
		_ = rec.Close()
		if errors.Is(err, entities.ErrRecordingTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to download recording: %w", err)
	}

	rec.Size = n
	r.logger.Debug("Recording downloaded", zap.String("path", rec.Path), zap.Int64("bytes", n))
	return rec, nil
}
