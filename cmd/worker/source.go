package main

import (
	"context"
	"errors"

	"github.com/campuscart/marketplace-backend/internal/notifications"
	"github.com/campuscart/marketplace-backend/pkg/kafka"
	"github.com/campuscart/marketplace-backend/pkg/pubsub"
)

type pubSubSource struct {
	client   *pubsub.Client
	consumer *notifications.Consumer
}

func (s *pubSubSource) Name() string { return "pubsub" }

func (s *pubSubSource) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *pubSubSource) Run(ctx context.Context) error {
	sub := s.client.NotificationSubscription()
	if sub == nil {
		return errors.New("pubsub notification subscription not configured")
	}
	return s.consumer.RunPubSub(ctx, sub)
}

type kafkaSource struct {
	client   *kafka.Client
	consumer *notifications.Consumer
}

func (s *kafkaSource) Name() string { return "kafka" }

func (s *kafkaSource) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *kafkaSource) Run(ctx context.Context) error {
	reader := s.client.NotificationReader()
	defer reader.Close()
	return s.consumer.RunKafka(ctx, reader)
}
