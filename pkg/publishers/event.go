package publishers

import (
	"time"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
)

// ClaimEvent is published for every successful claim.
type ClaimEvent struct {
	RunID       string       `json:"run_id"`
	Scope       domain.Scope `json:"scope"`
	Item        domain.Item  `json:"item"`
	ClaimedAt   time.Time    `json:"claimed_at"`
	PublishedAt time.Time    `json:"published_at"`
}

// NewClaimEvent builds the event for a claimed item within a run.
func NewClaimEvent(runID string, scope domain.Scope, item *domain.ClaimedItem) ClaimEvent {
	evt := ClaimEvent{
		RunID:       runID,
		Scope:       scope,
		PublishedAt: time.Now().UTC(),
	}
	if item != nil {
		evt.Item = item.Item
		evt.ClaimedAt = item.ClaimedAt
	}
	return evt
}

// attributes are copied into queue message attributes for routing. Empty values are left out.
func (e ClaimEvent) attributes() map[string]string {
	attrs := make(map[string]string, 3)
	for k, v := range map[string]string{
		"scope":   string(e.Scope),
		"run_id":  e.RunID,
		"item_id": e.Item.ID,
	} {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}
