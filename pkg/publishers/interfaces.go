package publishers

import "context"

// Publisher sends claim events to a downstream sink (HTTP, SQS, SNS, Pub/Sub).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt ClaimEvent) error
}

// eventSender is the transport half of a queue publisher.
type eventSender interface {
	Send(ctx context.Context, evt ClaimEvent) error
}

// senderPublisher binds an eventSender to a configured publisher id.
type senderPublisher struct {
	id     string
	typ    string
	sender eventSender
}

func (p *senderPublisher) ID() string   { return p.id }
func (p *senderPublisher) Type() string { return p.typ }

func (p *senderPublisher) Publish(ctx context.Context, evt ClaimEvent) error {
	return p.sender.Send(ctx, evt)
}
