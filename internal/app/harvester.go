package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/freebook-harvester/internal/backends"
	"github.com/samvad-hq/freebook-harvester/internal/config"
	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/internal/pipeline"
	"github.com/samvad-hq/freebook-harvester/internal/storage"
	"github.com/samvad-hq/freebook-harvester/pkg/httpclient"
	"github.com/samvad-hq/freebook-harvester/pkg/notify"
	"github.com/samvad-hq/freebook-harvester/pkg/providers"
	"github.com/samvad-hq/freebook-harvester/pkg/publishers"
)

// Harvester drives one claim run: the daily scope, then the newsletter scope.
type Harvester struct {
	run        domain.RunConfiguration
	provider   providers.ClaimProvider
	feed       providers.NewsletterSource
	checkpoint storage.Checkpoint
	backends   pipeline.Backends
	fanout     *publishers.Fanout
	dirs       pipeline.Dirs
	log        logger.Logger
	newRunID   func() string
	now        func() time.Time
}

// Deps are the collaborators of a Harvester.
type Deps struct {
	Provider   providers.ClaimProvider
	Feed       providers.NewsletterSource
	Checkpoint storage.Checkpoint
	Backends   pipeline.Backends
	Fanout     *publishers.Fanout
	Dirs       pipeline.Dirs
}

// New assembles a Harvester from ready-made collaborators.
func New(run domain.RunConfiguration, deps Deps, log logger.Logger) (*Harvester, error) {
	if deps.Provider == nil || deps.Feed == nil || deps.Checkpoint == nil {
		return nil, fmt.Errorf("provider, newsletter feed and checkpoint are required")
	}
	if deps.Backends == nil {
		deps.Backends = backends.NewSelector()
	}
	return &Harvester{
		run:        run,
		provider:   deps.Provider,
		feed:       deps.Feed,
		checkpoint: deps.Checkpoint,
		backends:   deps.Backends,
		fanout:     deps.Fanout,
		dirs:       deps.Dirs,
		log:        logger.Ensure(log),
		newRunID:   func() string { return uuid.New().String() },
		now:        time.Now,
	}, nil
}

// NewHarvester builds the runtime from the loaded configuration. Backends are built first so a
// later construction failure comes back as a *StartupError that can still be reported.
func NewHarvester(ctx context.Context, cfg *config.Config, run domain.RunConfiguration, log logger.Logger) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	sel, err := backends.Build(ctx, cfg, run, log)
	if err != nil {
		return nil, newStartupError(fmt.Errorf("init backends: %w", err), sel, run)
	}

	client := httpclient.NewRestyClient(cfg.Site.Timeout).SetUserAgent(cfg.Site.UserAgent)
	provider, err := providers.NewPacktpub(providers.Site{
		BaseURL:      cfg.Site.BaseURL,
		LoginPath:    cfg.Site.LoginPath,
		DailyPath:    cfg.Site.DailyPath,
		DownloadPath: cfg.Site.DownloadPath,
		CodePath:     cfg.Site.CodePath,
		Email:        cfg.Site.Email,
		Password:     cfg.Site.Password,
		UserAgent:    cfg.Site.UserAgent,
		Timeout:      cfg.Site.Timeout,
	}, client, log)
	if err != nil {
		return nil, newStartupError(fmt.Errorf("init claim provider: %w", err), sel, run)
	}

	fanout, err := loadFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, newStartupError(err, sel, run)
	}

	checkpoint, err := storage.NewCheckpoint(cfg.Checkpoint.Type, storage.Options{
		Path:          cfg.Checkpoint.Path,
		BBoltPath:     cfg.Checkpoint.BBoltPath,
		Key:           cfg.Checkpoint.Key,
		RedisAddr:     cfg.Checkpoint.RedisAddr,
		RedisPassword: cfg.Checkpoint.RedisPassword,
		RedisDB:       cfg.Checkpoint.RedisDB,
	})
	if err != nil {
		fanout.Close()
		return nil, newStartupError(fmt.Errorf("init checkpoint: %w", err), sel, run)
	}
	log.InfoObj("checkpoint initialized", "checkpoint_config", map[string]any{
		"type": cfg.Checkpoint.Type,
		"path": cfg.Checkpoint.Path,
	})

	return New(run, Deps{
		Provider:   provider,
		Feed:       providers.NewNewsletterFeed(cfg.Site.NewsletterFeedURL, client),
		Checkpoint: checkpoint,
		Backends:   sel,
		Fanout:     fanout,
		Dirs:       pipeline.Dirs{Download: cfg.Site.DownloadDir, Extras: cfg.Site.ExtrasDir},
	}, log)
}

// StartupError is a runtime construction failure. It keeps the notifier, when one was built,
// so the failure can be sent with scope global.
type StartupError struct {
	Err      error
	notifier notify.Notifier
}

func newStartupError(err error, sel *backends.Selector, run domain.RunConfiguration) *StartupError {
	se := &StartupError{Err: err}
	if sel != nil && run.Notify != domain.NotifyNone {
		if n, lookupErr := sel.Notifier(run.Notify); lookupErr == nil {
			se.notifier = n
		}
	}
	return se
}

func (e *StartupError) Error() string { return e.Err.Error() }

func (e *StartupError) Unwrap() error { return e.Err }

// Notify sends the failure with scope global. It reports false when no notifier was available.
func (e *StartupError) Notify(ctx context.Context) (bool, error) {
	if e.notifier == nil {
		return false, nil
	}
	return true, e.notifier.NotifyError(ctx, e.Err, domain.ScopeGlobal)
}

// loadFanout builds the claim event sinks. No publishers file means no sinks.
func loadFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}
	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Close releases the checkpoint store and the event sinks.
func (h *Harvester) Close() {
	if h == nil {
		return
	}
	if err := h.checkpoint.Close(); err != nil {
		h.log.ErrorObj("checkpoint close failed", "error", err.Error())
	}
	if err := h.fanout.Close(); err != nil {
		h.log.ErrorObj("publishers close failed", "error", err.Error())
	}
}
