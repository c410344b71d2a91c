package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/freebook-harvester/internal/config"
	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/pkg/database"
	"github.com/samvad-hq/freebook-harvester/pkg/notify"
	"github.com/samvad-hq/freebook-harvester/pkg/upload"
)

// Build prepares the drivers named in run so a misconfigured backend fails before any claim.
// Only the requested services are constructed. The notifier is built first and, on error, the
// returned selector still holds whatever was built so the failure can be reported.
func Build(ctx context.Context, cfg *config.Config, run domain.RunConfiguration, log logger.Logger) (*Selector, error) {
	sel := NewSelector()

	if run.Notify != domain.NotifyNone {
		n, err := buildNotifier(ctx, cfg, run.Notify, log)
		if err != nil {
			return sel, fmt.Errorf("notify %s: %w", run.Notify, err)
		}
		sel.WithNotifier(n)
	}
	if run.Upload != domain.UploadNone {
		u, err := buildUploader(ctx, cfg, run.Upload, log)
		if err != nil {
			return sel, fmt.Errorf("upload %s: %w", run.Upload, err)
		}
		sel.WithUploader(u)
	}
	if run.Store != domain.StoreNone {
		d, err := buildStore(cfg, run.Store, log)
		if err != nil {
			return sel, fmt.Errorf("store %s: %w", run.Store, err)
		}
		sel.WithStore(d)
	}
	return sel, nil
}

func buildUploader(ctx context.Context, cfg *config.Config, svc domain.UploadService, log logger.Logger) (upload.Uploader, error) {
	c := cfg.Upload
	switch svc {
	case domain.UploadDrive:
		return upload.NewDrive(ctx, upload.DriveConfig{
			CredentialsFile: cfg.ResolvePath(c.Drive.CredentialsFile),
			FolderID:        c.Drive.FolderID,
			Public:          c.Drive.Public,
		}, log)
	case domain.UploadDropbox:
		return upload.NewDropbox(upload.DropboxConfig{
			BaseURL:     c.Dropbox.BaseURL,
			AccessToken: c.Dropbox.AccessToken,
			Folder:      c.Dropbox.Folder,
			Timeout:     seconds(c.Dropbox.TimeoutSeconds),
		}, log)
	case domain.UploadSCP:
		return upload.NewSCP(upload.SCPConfig{
			Host:                c.SCP.Host,
			Port:                c.SCP.Port,
			User:                c.SCP.User,
			Password:            c.SCP.Password,
			KeyFile:             cfg.ResolvePath(c.SCP.KeyFile),
			KnownHostsFile:      cfg.ResolvePath(c.SCP.KnownHostsFile),
			InsecureSkipHostKey: c.SCP.InsecureSkipHostKey,
			RemoteDir:           c.SCP.RemoteDir,
			Timeout:             seconds(c.SCP.TimeoutSeconds),
		}, log)
	}
	return nil, fmt.Errorf("%w: upload %q", domain.ErrUnsupportedService, svc)
}

func buildNotifier(ctx context.Context, cfg *config.Config, svc domain.NotifyService, log logger.Logger) (notify.Notifier, error) {
	c := cfg.Notify
	switch svc {
	case domain.NotifyGmail:
		return notify.NewGmail(ctx, notify.GmailConfig{
			CredentialsFile: cfg.ResolvePath(c.Gmail.CredentialsFile),
			From:            c.Gmail.From,
			To:              c.Gmail.To,
		}, log)
	case domain.NotifyIFTTT:
		return notify.NewIFTTT(notify.IFTTTConfig{
			BaseURL: c.IFTTT.BaseURL,
			Key:     c.IFTTT.Key,
			Event:   c.IFTTT.Event,
			Timeout: cfg.Site.Timeout,
		}, log)
	case domain.NotifyJoin:
		return notify.NewJoin(notify.JoinConfig{
			BaseURL:   c.Join.BaseURL,
			APIKey:    c.Join.APIKey,
			DeviceIDs: c.Join.DeviceIDs,
			Timeout:   cfg.Site.Timeout,
		}, log)
	}
	return nil, fmt.Errorf("%w: notify %q", domain.ErrUnsupportedService, svc)
}

func buildStore(cfg *config.Config, svc domain.StoreService, log logger.Logger) (database.Store, error) {
	if svc == domain.StoreFirebase {
		fb := cfg.Store.Firebase
		return database.NewFirebase(database.FirebaseConfig{
			DatabaseURL: fb.DatabaseURL,
			Secret:      fb.Secret,
			Path:        fb.Path,
			Timeout:     cfg.Site.Timeout,
		}, log)
	}
	return nil, fmt.Errorf("%w: store %q", domain.ErrUnsupportedService, svc)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
