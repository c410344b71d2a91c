package providers

import (
	"context"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
)

// ClaimProvider authenticates against the promotional site and claims items.
// Concrete implementations live in site-specific files (e.g., packtpub.go).
type ClaimProvider interface {
	ClaimDaily(ctx context.Context) (domain.ClaimResult, error)
	ClaimNewsletter(ctx context.Context, url string) (domain.ClaimResult, error)
	Downloader
}

// Downloader fetches the files of an already claimed item.
type Downloader interface {
	Download(ctx context.Context, item *domain.ClaimedItem, format domain.Format, dir string) error
	DownloadExtras(ctx context.Context, item *domain.ClaimedItem, dir string) error
}

// NewsletterSource returns the URL announced by the latest newsletter, or "" when there is none.
type NewsletterSource interface {
	AnnouncedURL(ctx context.Context) (string, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client
