package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// message is the transport-neutral form of an outbox row.
type message struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

type transport interface {
	Name() string
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, msg message) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type pubSubTransport struct {
	client pubSubClient
}

func newPubSubTransport(client pubSubClient) (*pubSubTransport, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	return &pubSubTransport{client: client}, nil
}

func (t *pubSubTransport) Name() string { return "pubsub" }

func (t *pubSubTransport) Ping(ctx context.Context) error { return t.client.Ping(ctx) }

func (t *pubSubTransport) Publish(ctx context.Context, topic string, msg message) error {
	pub := t.client.Publisher(topic)
	if pub == nil {
		return fmt.Errorf("publisher not configured for topic %s", topic)
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	if _, err := result.Get(ctx); err != nil {
		// a failed ordered publish pauses the key until resumed
		if msg.Key != "" {
			pub.ResumePublish(msg.Key)
		}
		return err
	}
	return nil
}

type kafkaClient interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, key, value []byte, attrs map[string]string) error
}

type kafkaTransport struct {
	client kafkaClient
}

func newKafkaTransport(client kafkaClient) (*kafkaTransport, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	return &kafkaTransport{client: client}, nil
}

func (t *kafkaTransport) Name() string { return "kafka" }

func (t *kafkaTransport) Ping(ctx context.Context) error { return t.client.Ping(ctx) }

// Publish keys records by aggregate id so one order's events stay on one partition.
func (t *kafkaTransport) Publish(ctx context.Context, topic string, msg message) error {
	return t.client.Publish(ctx, topic, []byte(msg.Key), msg.Data, msg.Attributes)
}
