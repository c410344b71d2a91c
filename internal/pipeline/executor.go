// Package pipeline runs the post-claim steps for one claimed item.
package pipeline

import (
	"context"
	"fmt"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/pkg/database"
	"github.com/samvad-hq/freebook-harvester/pkg/notify"
	"github.com/samvad-hq/freebook-harvester/pkg/providers"
	"github.com/samvad-hq/freebook-harvester/pkg/upload"
)

// Backends resolves the drivers selected for the run.
type Backends interface {
	Uploader(svc domain.UploadService) (upload.Uploader, error)
	Notifier(svc domain.NotifyService) (notify.Notifier, error)
	Store(svc domain.StoreService) (database.Store, error)
}

// Recorder announces a successful claim. It never fails the pipeline.
type Recorder interface {
	Record(ctx context.Context, scope domain.Scope, item *domain.ClaimedItem)
}

// Dirs are the local destinations of downloaded files.
type Dirs struct {
	Download string
	Extras   string
}

// Executor runs the ordered steps for a claimed item. Any step error aborts the remaining steps.
type Executor struct {
	run        domain.RunConfiguration
	downloader providers.Downloader
	backends   Backends
	dirs       Dirs
	recorder   Recorder
	log        logger.Logger
}

// NewExecutor wires an executor. recorder may be nil.
func NewExecutor(run domain.RunConfiguration, downloader providers.Downloader, backends Backends, dirs Dirs, recorder Recorder, log logger.Logger) *Executor {
	if dirs.Extras == "" {
		dirs.Extras = dirs.Download
	}
	return &Executor{
		run:        run,
		downloader: downloader,
		backends:   backends,
		dirs:       dirs,
		recorder:   recorder,
		log:        logger.Ensure(log),
	}
}

// Execute processes a claimed item for the given scope.
func (e *Executor) Execute(ctx context.Context, scope domain.Scope, item *domain.ClaimedItem) error {
	if item == nil {
		return fmt.Errorf("%s: no claimed item to process", scope)
	}

	if e.run.Dev {
		e.log.DebugObj("claimed item", "item", item)
	}
	e.log.InfoObj("item successfully claimed", "claim_meta", map[string]any{
		"scope": scope,
		"id":    item.ID,
		"title": item.Title,
	})
	if e.recorder != nil {
		e.recorder.Record(ctx, scope, item)
	}

	var uploaded *domain.UploadResult
	if !e.run.ClaimOnly {
		var err error
		if uploaded, err = e.process(ctx, item); err != nil {
			return err
		}
	}

	if e.run.Notify == domain.NotifyNone {
		return nil
	}
	return e.notify(ctx, item, uploaded)
}

// process covers download, extras, archive, upload and store.
func (e *Executor) process(ctx context.Context, item *domain.ClaimedItem) (*domain.UploadResult, error) {
	for _, format := range e.run.Formats() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.downloader.Download(ctx, item, format, e.dirs.Download); err != nil {
			return nil, fmt.Errorf("download %s: %w", format, err)
		}
	}

	if e.run.Extras {
		if err := e.downloader.DownloadExtras(ctx, item, e.dirs.Extras); err != nil {
			return nil, fmt.Errorf("download extras: %w", err)
		}
	}

	if e.run.Archive {
		return nil, fmt.Errorf("archive: %w", domain.ErrUnimplemented)
	}

	var uploaded *domain.UploadResult
	if e.run.Upload != domain.UploadNone {
		up, err := e.backends.Uploader(e.run.Upload)
		if err != nil {
			return nil, err
		}
		if uploaded, err = up.Upload(ctx, item.Paths); err != nil {
			return nil, fmt.Errorf("upload %s: %w", e.run.Upload, err)
		}
	}

	if e.run.Store != domain.StoreNone {
		if err := e.store(ctx, item, uploaded); err != nil {
			return nil, err
		}
	}
	return uploaded, nil
}

// store skips with a warning when the upload result is not one the store understands.
func (e *Executor) store(ctx context.Context, item *domain.ClaimedItem, uploaded *domain.UploadResult) error {
	db, err := e.backends.Store(e.run.Store)
	if err != nil {
		return err
	}
	if e.run.Upload != domain.UploadNone && !uploaded.From(db.Accepts()) {
		e.log.WarnObj("skip store info: missing upload info", "store_meta", map[string]any{
			"store":    e.run.Store,
			"upload":   e.run.Upload,
			"requires": db.Accepts(),
		})
		return nil
	}
	if err := db.Store(ctx, item, uploaded); err != nil {
		return fmt.Errorf("store %s: %w", e.run.Store, err)
	}
	return nil
}

func (e *Executor) notify(ctx context.Context, item *domain.ClaimedItem, uploaded *domain.UploadResult) error {
	n, err := e.backends.Notifier(e.run.Notify)
	if err != nil {
		return err
	}
	if err := n.Notify(ctx, item, uploaded); err != nil {
		return fmt.Errorf("notify %s: %w", e.run.Notify, err)
	}
	return nil
}
