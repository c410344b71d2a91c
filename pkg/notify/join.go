package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
)

const joinPushPath = "/_ah/api/messaging/v1/sendPush"

// JoinConfig holds the Join push settings.
type JoinConfig struct {
	BaseURL   string
	APIKey    string
	DeviceIDs []string
	Timeout   time.Duration
}

type joinNotifier struct {
	cfg    JoinConfig
	client *resty.Client
	log    logger.Logger
}

type joinResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

// NewJoin builds a notifier that pushes to Join devices.
func NewJoin(cfg JoinConfig, log logger.Logger) (Notifier, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("join base url and api key are required")
	}
	if len(cfg.DeviceIDs) == 0 {
		return nil, errors.New("join needs at least one device id")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &joinNotifier{
		cfg:    cfg,
		client: httpclient.NewRestyHTTPClient(cfg.Timeout),
		log:    logger.Ensure(log),
	}, nil
}

func (n *joinNotifier) Service() domain.NotifyService { return domain.NotifyJoin }

func (n *joinNotifier) Notify(ctx context.Context, item *domain.ClaimedItem, upload *domain.UploadResult) error {
	if item == nil {
		return errors.New("join notify: missing item")
	}
	return n.push(ctx, claimMessage(item, upload))
}

func (n *joinNotifier) NotifyError(ctx context.Context, err error, scope domain.Scope) error {
	return n.push(ctx, errorMessage(err, scope))
}

func (n *joinNotifier) push(ctx context.Context, m message) error {
	params := map[string]string{
		"apikey":    n.cfg.APIKey,
		"deviceIds": strings.Join(n.cfg.DeviceIDs, ","),
		"title":     m.Title,
		"text":      m.Text,
	}
	if m.ImageURL != "" {
		params["icon"] = m.ImageURL
	}
	if m.URL != "" {
		params["url"] = m.URL
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(n.cfg.BaseURL + joinPushPath)
	if err != nil {
		return fmt.Errorf("join push: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("join push status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var out joinResponse
	if err := json.Unmarshal(resp.Body(), &out); err == nil && !out.Success && out.ErrorMessage != "" {
		return fmt.Errorf("join push rejected: %s", out.ErrorMessage)
	}
	n.log.InfoObj("join notification sent", "notify_meta", map[string]any{
		"title":   m.Title,
		"devices": len(n.cfg.DeviceIDs),
	})
	return nil
}
