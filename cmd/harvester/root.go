package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/freebook-harvester/internal/app"
	"github.com/samvad-hq/freebook-harvester/internal/config"
	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
)

// errRunFailed is returned with --fail-on-error when a scope failed. It has already been logged.
var errRunFailed = errors.New("run finished with failures")

type options struct {
	configPath  string
	dev         bool
	extras      bool
	archive     bool
	claimOnly   bool
	all         bool
	format      string
	upload      string
	notify      string
	store       string
	schedule    string
	failOnError bool
}

func newRootCmd() *cobra.Command {
	var opts options
	var run domain.RunConfiguration

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Claim the free e-book of the day and the newsletter e-book",
		Long: "Claims the daily free e-book and the one announced by the latest newsletter,\n" +
			"then optionally downloads, uploads, stores and notifies.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			run, err = opts.runConfiguration()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return execute(cmd.Context(), opts, run)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "configuration file")
	f.BoolVarP(&opts.dev, "dev", "d", false, "only for development: debug logs and item dumps")
	f.BoolVarP(&opts.extras, "extras", "e", false, "download source code (if any) and cover")
	f.StringVarP(&opts.upload, "upload", "u", "", "upload destination ("+names(domain.UploadServices())+")")
	f.BoolVarP(&opts.archive, "archive", "a", false, "compress all files (not implemented yet)")
	f.StringVarP(&opts.notify, "notify", "n", "", "notify after claim/download ("+names(domain.NotifyServices())+")")
	f.StringVarP(&opts.store, "store", "s", "", "store item info ("+names(domain.StoreServices())+")")
	f.BoolVarP(&opts.claimOnly, "claim-only", "o", false, "only claim items (no downloads/uploads)")
	f.StringVarP(&opts.format, "type", "t", string(domain.FormatPDF), "e-book format ("+names(domain.AllFormats())+")")
	f.BoolVar(&opts.all, "all", false, "all e-book formats")
	f.StringVar(&opts.schedule, "schedule", "", "cron spec; keep running and harvest on every tick")
	f.BoolVar(&opts.failOnError, "fail-on-error", false, "exit non-zero when any scope failed")

	_ = cmd.MarkFlagRequired("config")
	cmd.MarkFlagsMutuallyExclusive("type", "all")
	return cmd
}

// runConfiguration validates the closed option sets before anything runs.
func (o options) runConfiguration() (domain.RunConfiguration, error) {
	run := domain.RunConfiguration{
		AllFormat: o.all,
		Extras:    o.extras,
		Archive:   o.archive,
		ClaimOnly: o.claimOnly,
		Dev:       o.dev,
	}
	var err error
	if run.Format, err = domain.ParseFormat(o.format); err != nil {
		return run, err
	}
	if run.Upload, err = domain.ParseUploadService(o.upload); err != nil {
		return run, err
	}
	if run.Notify, err = domain.ParseNotifyService(o.notify); err != nil {
		return run, err
	}
	if run.Store, err = domain.ParseStoreService(o.store); err != nil {
		return run, err
	}
	return run, nil
}

func execute(parent context.Context, opts options, run domain.RunConfiguration) error {
	level := "info"
	if opts.dev {
		level = "debug"
	}
	log, err := logger.Init(level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := bootstrap(ctx, opts, run, log)
	if err != nil {
		log.ErrorObj("run failed", "bootstrap_error", err.Error())
		var startup *app.StartupError
		if errors.As(err, &startup) {
			if sent, notifyErr := startup.Notify(ctx); notifyErr != nil {
				log.WarnObj("error notification failed", "notify_error", map[string]any{
					"scope": domain.ScopeGlobal,
					"error": notifyErr.Error(),
				})
			} else if !sent {
				log.DebugObj("error notification skipped", "notify_error", "no notifier available")
			}
		}
		log.InfoObj("done", "run_report", map[string]any{"global": app.OutcomeFailed})
		return failure(opts)
	}
	defer h.Close()

	if opts.schedule != "" {
		failed := false
		if err := h.RunScheduled(ctx, opts.schedule, func(r app.Report) {
			failed = failed || r.Failed()
		}); err != nil {
			return err
		}
		if failed {
			return failure(opts)
		}
		return nil
	}

	if h.Run(ctx).Failed() {
		return failure(opts)
	}
	return nil
}

func bootstrap(ctx context.Context, opts options, run domain.RunConfiguration, log *logger.ZapLogger) (*app.Harvester, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !opts.dev {
		logger.SetLevel(cfg.LogLevel)
	}
	log.InfoObj("harvester starting", "config_meta", map[string]any{
		"app":    cfg.AppName,
		"env":    cfg.Env,
		"upload": run.Upload,
		"notify": run.Notify,
		"store":  run.Store,
	})
	return app.NewHarvester(ctx, cfg, run, log)
}

func failure(opts options) error {
	if opts.failOnError {
		return errRunFailed
	}
	return nil
}

func names[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, "|")
}
