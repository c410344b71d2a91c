package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
)

// feedSource reads the announced URL from a plain-text endpoint that mirrors
// the latest newsletter.
type feedSource struct {
	client HTTPClient
	url    string
}

// NewNewsletterFeed builds a NewsletterSource over a text endpoint.
func NewNewsletterFeed(feedURL string, client HTTPClient) NewsletterSource {
	if client == nil {
		client = httpclient.NewRestyClient(15 * time.Second)
	}
	return &feedSource{client: client, url: strings.TrimSpace(feedURL)}
}

func (f *feedSource) AnnouncedURL(ctx context.Context) (string, error) {
	if f.url == "" {
		return "", nil
	}
	resp, err := f.client.Get(ctx, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch newsletter feed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("newsletter feed returned status %d body: %s", resp.StatusCode(), responseSnippet(resp.Body()))
	}
	return strings.TrimSpace(string(resp.Body())), nil
}
