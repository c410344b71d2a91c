package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/samvad-hq/freebook-harvester/internal/logger"
)

type gcpPubSubSender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	log    logger.Logger
}

// newGCPPubSubSender connects to the topic. PUBSUB_EMULATOR_HOST is honoured by the client.
func newGCPPubSubSender(ctx context.Context, cfg *GCPQueueConfig, log logger.Logger) (*gcpPubSubSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pubsub configuration is missing")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &gcpPubSubSender{
		client: client,
		topic:  client.Topic(cfg.Topic),
		log:    logger.Ensure(log),
	}, nil
}

func newPubSubPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	sender, err := newGCPPubSubSender(ctx, cfg.PubSub, log)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}
	return &senderPublisher{id: cfg.ID, typ: TypePubSub, sender: sender}, nil
}

// Send publishes the event and waits for the server id.
func (g *gcpPubSubSender) Send(ctx context.Context, evt ClaimEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	id, err := g.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: evt.attributes(),
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	g.log.DebugObj("pubsub event delivered", "publisher_pubsub_delivery", map[string]any{
		"topic":      g.topic.ID(),
		"message_id": id,
	})
	return nil
}

// Close flushes pending messages and releases the client.
func (g *gcpPubSubSender) Close() error {
	g.topic.Stop()
	return g.client.Close()
}
