package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSub publishes each record to a Google Cloud Pub/Sub topic as JSON.
// Publishes are asynchronous; the client batches and retries in the
// background, and Close waits for in-flight messages to flush.
type PubSub[T any] struct {
	projectID string
	topicID   string

	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub builds the exporter. The client is created on Open using
// Application Default Credentials.
func NewPubSub[T any](projectID, topicID string) *PubSub[T] {
	return &PubSub[T]{projectID: projectID, topicID: topicID}
}

// NewPubSubWithTopic constructs an exporter over an existing topic handle
// (primarily for testing against an emulator). Open becomes a no-op.
func NewPubSubWithTopic[T any](topic *pubsub.Topic) *PubSub[T] {
	return &PubSub[T]{topic: topic}
}

// Name implements spinneret.Exporter.
func (*PubSub[T]) Name() string { return "pubsub" }

// Open connects and verifies the topic exists.
func (p *PubSub[T]) Open(ctx context.Context) error {
	if p.topic != nil {
		return nil
	}
	client, err := pubsub.NewClient(ctx, p.projectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(p.topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("check pubsub topic: %w", err)
	}
	if !exists {
		client.Close()
		return fmt.Errorf("pubsub topic %q does not exist in project %q", p.topicID, p.projectID)
	}
	p.client = client
	p.topic = topic
	return nil
}

// Write publishes one record. The send is asynchronous; failures surface
// when Close drains the topic or on a later Write.
func (p *PubSub[T]) Write(ctx context.Context, item T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	p.topic.Publish(ctx, &pubsub.Message{Data: data})
	return nil
}

// Close flushes pending publishes and tears down the client.
func (p *PubSub[T]) Close(context.Context) error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}
