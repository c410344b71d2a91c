package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/pipeline"
)

// Run claims the daily item, then the newsletter item when a new one was announced.
// Each scope isolates its own failures. Run always ends with a single "done" log line.
func (h *Harvester) Run(ctx context.Context) Report {
	report := Report{
		RunID:      h.newRunID(),
		Daily:      ScopeResult{Outcome: OutcomeNotRun},
		Newsletter: ScopeResult{Outcome: OutcomeNotRun},
		Global:     ScopeResult{Outcome: OutcomeOK},
	}
	h.log.InfoObj("fetching today's item", "run_meta", map[string]any{
		"run_id":     report.RunID,
		"started_at": h.now().Format("2006-01-02 15:04"),
	})

	if err := h.runScopes(ctx, &report); err != nil {
		report.Global = h.handleGlobal(ctx, report.RunID, err)
	}

	h.log.InfoObj("done", "run_report", report.summary())
	return report
}

func (h *Harvester) runScopes(ctx context.Context, report *Report) error {
	exec := pipeline.NewExecutor(h.run, h.provider, h.backends, h.dirs,
		pipeline.NewEventRecorder(h.fanout, report.RunID, h.log), h.log)

	h.log.InfoObj("getting daily free item", "run_meta", map[string]any{"run_id": report.RunID})
	report.Daily = h.runScope(ctx, domain.ScopeDaily, exec, func(ctx context.Context) (domain.ClaimResult, error) {
		return h.provider.ClaimDaily(ctx)
	}, nil)
	if report.Daily.Outcome == OutcomeInterrupted {
		return report.Daily.Err
	}

	last, _, err := h.checkpoint.Read(ctx)
	if err != nil {
		return fmt.Errorf("read newsletter checkpoint: %w", err)
	}
	current, err := h.feed.AnnouncedURL(ctx)
	if err != nil {
		return err
	}

	switch {
	case current == "":
		h.log.InfoObj("no free item from newsletter right now", "run_meta", map[string]any{"run_id": report.RunID})
		report.Newsletter = ScopeResult{Outcome: OutcomeSkipped}
	case !validURL(current):
		h.log.WarnObj("invalid url from newsletter", "newsletter_url", current)
		report.Newsletter = ScopeResult{Outcome: OutcomeSkipped}
	case current == last:
		h.log.InfoObj("newsletter item already processed, skipping", "newsletter_url", current)
		report.Newsletter = ScopeResult{Outcome: OutcomeSkipped}
	default:
		h.log.InfoObj("getting free item from newsletter", "newsletter_url", current)
		report.Newsletter = h.runScope(ctx, domain.ScopeNewsletter, exec, func(ctx context.Context) (domain.ClaimResult, error) {
			return h.provider.ClaimNewsletter(ctx, current)
		}, func(ctx context.Context) error {
			if err := h.checkpoint.Write(ctx, current); err != nil {
				return fmt.Errorf("write newsletter checkpoint: %w", err)
			}
			return nil
		})
		if report.Newsletter.Outcome == OutcomeInterrupted {
			return report.Newsletter.Err
		}
	}
	return nil
}

type claimFunc func(ctx context.Context) (domain.ClaimResult, error)

// runScope claims and processes one item. onSuccess, when set, runs only after the whole
// pipeline succeeded and its failure fails the scope.
func (h *Harvester) runScope(ctx context.Context, scope domain.Scope, exec *pipeline.Executor, claim claimFunc, onSuccess func(context.Context) error) ScopeResult {
	err := func() error {
		res, err := claim(ctx)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		if !res.Available() {
			h.log.InfoObj("no free item available", "claim_meta", map[string]any{
				"scope":  scope,
				"reason": res.Reason,
			})
			return errNoItem
		}
		if err := exec.Execute(ctx, scope, res.Item); err != nil {
			return err
		}
		if onSuccess != nil {
			return onSuccess(ctx)
		}
		return nil
	}()

	switch {
	case err == nil:
		return ScopeResult{Outcome: OutcomeClaimed}
	case errors.Is(err, errNoItem):
		return ScopeResult{Outcome: OutcomeNoItem}
	case interrupted(ctx, err):
		return ScopeResult{Outcome: OutcomeInterrupted, Err: fmt.Errorf("%w: %w", domain.ErrInterrupted, err)}
	}

	h.log.ErrorObj("scope failed", "scope_error", map[string]any{
		"scope": scope,
		"error": err.Error(),
	})
	h.notifyError(ctx, err, scope)
	return ScopeResult{Outcome: OutcomeFailed, Err: err}
}

var errNoItem = errors.New("no item available")

// handleGlobal reports an error that escaped both scopes. Interruptions are never notified.
func (h *Harvester) handleGlobal(ctx context.Context, runID string, err error) ScopeResult {
	if interrupted(ctx, err) {
		h.log.ErrorObj("interrupted manually", "run_meta", map[string]any{"run_id": runID})
		return ScopeResult{Outcome: OutcomeInterrupted, Err: err}
	}
	h.log.ErrorObj("run failed", "run_error", map[string]any{
		"run_id": runID,
		"error":  err.Error(),
	})
	h.notifyError(ctx, err, domain.ScopeGlobal)
	return ScopeResult{Outcome: OutcomeFailed, Err: err}
}

// notifyError forwards a failure to the selected channel. Delivery problems are only logged.
func (h *Harvester) notifyError(ctx context.Context, err error, scope domain.Scope) {
	if h.run.Notify == domain.NotifyNone {
		return
	}
	n, lookupErr := h.backends.Notifier(h.run.Notify)
	if lookupErr != nil {
		h.log.WarnObj("error notification skipped", "notify_error", lookupErr.Error())
		return
	}
	if sendErr := n.NotifyError(ctx, err, scope); sendErr != nil {
		h.log.WarnObj("error notification failed", "notify_error", map[string]any{
			"scope": scope,
			"error": sendErr.Error(),
		})
	}
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrInterrupted)
}

// validURL accepts absolute http(s) links only.
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
