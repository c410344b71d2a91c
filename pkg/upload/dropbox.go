package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
)

const dropboxUploadPath = "/2/files/upload"

// DropboxConfig holds Dropbox content API settings.
type DropboxConfig struct {
	BaseURL     string
	AccessToken string
	Folder      string
	Timeout     time.Duration
}

type dropboxUploader struct {
	cfg    DropboxConfig
	client *resty.Client
	log    logger.Logger
}

type dropboxArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

type dropboxMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PathDisplay string `json:"path_display"`
}

// NewDropbox builds a Dropbox uploader using a long-lived access token.
func NewDropbox(cfg DropboxConfig, log logger.Logger) (Uploader, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("dropbox access token is required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("dropbox base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Folder == "" {
		cfg.Folder = "/"
	}
	return &dropboxUploader{
		cfg:    cfg,
		client: httpclient.NewRestyHTTPClient(cfg.Timeout),
		log:    logger.Ensure(log),
	}, nil
}

func (d *dropboxUploader) Service() domain.UploadService { return domain.UploadDropbox }

func (d *dropboxUploader) Upload(ctx context.Context, paths map[string]string) (*domain.UploadResult, error) {
	result := &domain.UploadResult{Service: domain.UploadDropbox}
	for _, key := range orderedKeys(paths) {
		file, err := d.uploadOne(ctx, key, paths[key])
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, file)
	}
	result.Success = true
	return result, nil
}

func (d *dropboxUploader) uploadOne(ctx context.Context, key, localPath string) (domain.UploadedFile, error) {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("read %s: %w", localPath, err)
	}

	arg, err := json.Marshal(dropboxArg{
		Path: path.Join(d.cfg.Folder, filepath.Base(localPath)),
		Mode: "overwrite",
		Mute: true,
	})
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("encode dropbox arg: %w", err)
	}

	var meta dropboxMetadata
	resp, err := d.client.R().
		SetContext(ctx).
		SetAuthToken(d.cfg.AccessToken).
		SetHeader("Dropbox-API-Arg", string(arg)).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(content).
		SetResult(&meta).
		Post(d.cfg.BaseURL + dropboxUploadPath)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("dropbox upload %s: %w", localPath, err)
	}
	if resp.IsError() {
		return domain.UploadedFile{}, fmt.Errorf("dropbox upload %s status %d: %s", localPath, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	d.log.InfoObj("dropbox upload completed", "upload_meta", map[string]any{
		"key":  key,
		"path": meta.PathDisplay,
	})
	return domain.UploadedFile{
		Key:      key,
		Name:     meta.Name,
		ID:       meta.ID,
		MimeType: mimeTypeOf(localPath),
		ViewURL:  meta.PathDisplay,
	}, nil
}
