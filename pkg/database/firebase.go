package database

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

// FirebaseConfig points at a Realtime Database node.
type FirebaseConfig struct {
	DatabaseURL string
	Secret      string
	Path        string
	Timeout     time.Duration
}

type firebaseStore struct {
	cfg    FirebaseConfig
	client *resty.Client
	log    logger.Logger
}

type firebasePushResult struct {
	Name string `json:"name"`
}

// NewFirebase builds a store that pushes records through the Realtime Database REST API.
func NewFirebase(cfg FirebaseConfig, log logger.Logger) (Store, error) {
	cfg.DatabaseURL = strings.TrimRight(strings.TrimSpace(cfg.DatabaseURL), "/")
	if cfg.DatabaseURL == "" {
		return nil, errors.New("firebase database url is required")
	}
	cfg.Path = strings.Trim(strings.TrimSpace(cfg.Path), "/")
	if cfg.Path == "" {
		cfg.Path = "books"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &firebaseStore{
		cfg:    cfg,
		client: httpclient.NewRestyHTTPClient(cfg.Timeout),
		log:    logger.Ensure(log),
	}, nil
}

func (f *firebaseStore) Service() domain.StoreService { return domain.StoreFirebase }

// Accepts reports drive: only drive results carry public download links.
func (f *firebaseStore) Accepts() domain.UploadService { return domain.UploadDrive }

func (f *firebaseStore) Store(ctx context.Context, item *domain.ClaimedItem, upload *domain.UploadResult) error {
	if item == nil {
		return errors.New("firebase store: missing item")
	}

	req := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(NewRecord(item, upload)).
		SetResult(&firebasePushResult{})
	if f.cfg.Secret != "" {
		req.SetQueryParam("auth", f.cfg.Secret)
	}

	resp, err := req.Post(fmt.Sprintf("%s/%s.json", f.cfg.DatabaseURL, f.cfg.Path))
	if err != nil {
		return fmt.Errorf("firebase push: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("firebase push status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	key := ""
	if out, ok := resp.Result().(*firebasePushResult); ok {
		key = out.Name
	}
	f.log.InfoObj("item stored", "store_meta", map[string]any{
		"service": domain.StoreFirebase,
		"path":    f.cfg.Path,
		"key":     key,
		"title":   item.Title,
	})
	return nil
}
