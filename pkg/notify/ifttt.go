package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
)

// IFTTTConfig holds the maker webhook settings.
type IFTTTConfig struct {
	BaseURL string
	Key     string
	Event   string
	Timeout time.Duration
}

type iftttNotifier struct {
	cfg    IFTTTConfig
	client *resty.Client
	log    logger.Logger
}

type iftttValues struct {
	Value1 string `json:"value1"`
	Value2 string `json:"value2"`
	Value3 string `json:"value3"`
}

// NewIFTTT builds a notifier that fires maker webhooks. Errors go to "<event>_error".
func NewIFTTT(cfg IFTTTConfig, log logger.Logger) (Notifier, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" || strings.TrimSpace(cfg.Key) == "" || strings.TrimSpace(cfg.Event) == "" {
		return nil, errors.New("ifttt base url, key and event are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &iftttNotifier{
		cfg:    cfg,
		client: httpclient.NewRestyHTTPClient(cfg.Timeout),
		log:    logger.Ensure(log),
	}, nil
}

func (n *iftttNotifier) Service() domain.NotifyService { return domain.NotifyIFTTT }

func (n *iftttNotifier) Notify(ctx context.Context, item *domain.ClaimedItem, upload *domain.UploadResult) error {
	if item == nil {
		return errors.New("ifttt notify: missing item")
	}
	m := claimMessage(item, upload)
	return n.trigger(ctx, n.cfg.Event, iftttValues{
		Value1: item.Title,
		Value2: item.Description,
		Value3: firstNonEmpty(m.URL, item.ImageURL),
	})
}

func (n *iftttNotifier) NotifyError(ctx context.Context, err error, scope domain.Scope) error {
	return n.trigger(ctx, n.cfg.Event+"_error", iftttValues{
		Value1: string(scope),
		Value2: errText(err),
	})
}

func (n *iftttNotifier) trigger(ctx context.Context, event string, values iftttValues) error {
	endpoint := fmt.Sprintf("%s/trigger/%s/with/key/%s", n.cfg.BaseURL, event, n.cfg.Key)
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(values).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("ifttt trigger %s: %w", event, err)
	}
	if resp.IsError() {
		return fmt.Errorf("ifttt trigger %s status %d: %s", event, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	n.log.InfoObj("ifttt notification sent", "notify_meta", map[string]any{"event": event})
	return nil
}
