package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	PostForm(ctx context.Context, url string, form map[string]string, headers map[string]string) (Response, error)
	// Download streams the body of a GET into dest. Body() of the returned
	// response is empty for successful downloads.
	Download(ctx context.Context, url, dest string, headers map[string]string) (Response, error)
}
