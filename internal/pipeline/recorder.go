package pipeline

import (
	"context"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
	"github.com/samvad-hq/freebook-harvester/pkg/publishers"
)

// EventRecorder publishes a ClaimEvent to every configured sink.
// Delivery failures are logged as warnings.
type EventRecorder struct {
	fanout *publishers.Fanout
	runID  string
	log    logger.Logger
}

// NewEventRecorder builds a recorder for one run.
func NewEventRecorder(fanout *publishers.Fanout, runID string, log logger.Logger) *EventRecorder {
	return &EventRecorder{fanout: fanout, runID: runID, log: logger.Ensure(log)}
}

func (r *EventRecorder) Record(ctx context.Context, scope domain.Scope, item *domain.ClaimedItem) {
	if r == nil || r.fanout.Size() == 0 {
		return
	}
	delivered, err := r.fanout.Publish(ctx, publishers.NewClaimEvent(r.runID, scope, item))
	if err != nil {
		r.log.WarnObj("claim event not delivered to every publisher", "publish_error", map[string]any{
			"run_id":    r.runID,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	r.log.DebugObj("claim event published", "publish_meta", map[string]any{
		"run_id":    r.runID,
		"delivered": delivered,
	})
}
