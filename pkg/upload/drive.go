package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
)

// DriveConfig holds Google Drive settings.
type DriveConfig struct {
	CredentialsFile string
	FolderID        string
	Public          bool
}

// driveFiles is the subset of the Drive API used by driveUploader.
type driveFiles interface {
	Create(ctx context.Context, meta *drive.File, media io.Reader) (*drive.File, error)
	ShareWithAnyone(ctx context.Context, fileID string) error
}

type driveAPI struct {
	srv *drive.Service
}

func (d driveAPI) Create(ctx context.Context, meta *drive.File, media io.Reader) (*drive.File, error) {
	return d.srv.Files.Create(meta).
		Media(media).
		Fields("id", "name", "mimeType", "webViewLink", "webContentLink").
		Context(ctx).
		Do()
}

func (d driveAPI) ShareWithAnyone(ctx context.Context, fileID string) error {
	_, err := d.srv.Permissions.Create(fileID, &drive.Permission{Type: "anyone", Role: "reader"}).
		Context(ctx).
		Do()
	return err
}

type driveUploader struct {
	cfg   DriveConfig
	files driveFiles
	log   logger.Logger
}

// NewDrive builds a Google Drive uploader authenticated with a service account file.
func NewDrive(ctx context.Context, cfg DriveConfig, log logger.Logger) (Uploader, error) {
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return nil, errors.New("drive credentials file is required")
	}
	srv, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &driveUploader{cfg: cfg, files: driveAPI{srv: srv}, log: logger.Ensure(log)}, nil
}

func (d *driveUploader) Service() domain.UploadService { return domain.UploadDrive }

func (d *driveUploader) Upload(ctx context.Context, paths map[string]string) (*domain.UploadResult, error) {
	result := &domain.UploadResult{Service: domain.UploadDrive}
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

func (d *driveUploader) uploadOne(ctx context.Context, key, path string) (domain.UploadedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	meta := &drive.File{
		Name:     filepath.Base(path),
		MimeType: mimeTypeOf(path),
	}
	if d.cfg.FolderID != "" {
		meta.Parents = []string{d.cfg.FolderID}
	}

	created, err := d.files.Create(ctx, meta, f)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("drive upload %s: %w", meta.Name, err)
	}
	if d.cfg.Public {
		if err := d.files.ShareWithAnyone(ctx, created.Id); err != nil {
			return domain.UploadedFile{}, fmt.Errorf("drive share %s: %w", meta.Name, err)
		}
	}

	d.log.InfoObj("drive upload completed", "upload_meta", map[string]any{
		"key":     key,
		"name":    created.Name,
		"file_id": created.Id,
	})
	return domain.UploadedFile{
		Key:         key,
		Name:        created.Name,
		ID:          created.Id,
		MimeType:    created.MimeType,
		ViewURL:     created.WebViewLink,
		DownloadURL: created.WebContentLink,
	}, nil
}
