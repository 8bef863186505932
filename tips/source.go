package tips

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// DefaultTimeout bounds a remote tip table fetch
const DefaultTimeout = 5 * time.Second

// Source supplies the tip table
type Source interface {
	Load(ctx context.Context) (*Table, error)
}

// EmbeddedSource returns the table compiled into the binary
type EmbeddedSource struct{}

func (EmbeddedSource) Load(context.Context) (*Table, error) {
	return DefaultTable(), nil
}

// FileSource reads the table from a local JSON or YAML file
type FileSource struct {
	Path string
}

func (s FileSource) Load(context.Context) (*Table, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errorutil.NewStorageError("read", s.Path, err)
	}
	return ParseTable(data)
}

// HTTPSource fetches the table from a URL on every load, bypassing
// intermediate caches.
type HTTPSource struct {
	url     string
	timeout time.Duration
	client  *resty.Client
	now     func() time.Time
}

// NewHTTPSource creates a source for url. A non-positive timeout means DefaultTimeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSource{
		url:     url,
		timeout: timeout,
		client: resty.New().
			SetHeader("Accept", "application/json").
			SetHeader("Cache-Control", "no-cache").
			SetRetryCount(0),
		now: time.Now,
	}
}

func (s *HTTPSource) Load(ctx context.Context) (*Table, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.R().
		SetContext(callCtx).
		SetQueryParam("t", strconv.FormatInt(s.now().UnixMilli(), 10)).
		Get(s.url)
	if err != nil {
		return nil, errorutil.ClassifyTransport(ctx, "tips_fetch", s.url, s.timeout, err)
	}
	logger.LogAPIResponse("GET", s.url, resp.StatusCode(), time.Since(start), len(resp.Body()))

	if !resp.IsSuccess() {
		return nil, &errorutil.HTTPError{
			Operation:  "tips_fetch",
			URL:        s.url,
			StatusCode: resp.StatusCode(),
		}
	}
	return ParseTable(resp.Body())
}

// SourceFor picks the source a configuration asks for: a URL wins over a
// file, and with neither the embedded table is used.
func SourceFor(url, path string, timeout time.Duration) Source {
	switch {
	case url != "":
		return NewHTTPSource(url, timeout)
	case path != "":
		return FileSource{Path: path}
	default:
		return EmbeddedSource{}
	}
}
