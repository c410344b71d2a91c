package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/samvad-hq/freebook-harvester/internal/logger"
)

// RunScheduled runs the harvester on every tick of the cron expression until ctx is cancelled.
// Overlapping ticks are skipped. onReport receives each finished run.
func (h *Harvester) RunScheduled(ctx context.Context, expr string, onReport func(Report)) error {
	cl := cronLogger{log: h.log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(expr, func() {
		if ctx.Err() != nil {
			return
		}
		report := h.Run(ctx)
		if onReport != nil {
			onReport(report)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	h.log.InfoObj("scheduler started", "schedule", expr)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	h.log.InfoObj("scheduler stopped", "reason", ctx.Err().Error())
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugObj("cron: "+msg, "cron_meta", keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.ErrorObj("cron: "+msg, "cron_error", map[string]any{
		"error": err.Error(),
		"meta":  keysAndValues,
	})
}
