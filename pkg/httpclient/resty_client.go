package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
// The underlying client keeps a cookie jar, so a login survives across calls.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// SetUserAgent sets the User-Agent header on every request.
func (r *RestyClient) SetUserAgent(ua string) *RestyClient {
	if ua != "" {
		r.client.SetHeader("User-Agent", ua)
	}
	return r
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	resp, err := r.request(ctx, headers).Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// PostForm submits an urlencoded form.
func (r *RestyClient) PostForm(ctx context.Context, url string, form map[string]string, headers map[string]string) (Response, error) {
	resp, err := r.request(ctx, headers).SetFormData(form).Post(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Download saves the response body to dest. The file is removed when the server does not answer 200.
func (r *RestyClient) Download(ctx context.Context, url, dest string, headers map[string]string) (Response, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	resp, err := r.request(ctx, headers).SetOutput(dest).Get(url)
	if err != nil {
		os.Remove(dest)
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		os.Remove(dest)
	}
	return &restyResponseAdapter{resp: resp}, nil
}

func (r *RestyClient) request(ctx context.Context, headers map[string]string) *resty.Request {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	return req
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
