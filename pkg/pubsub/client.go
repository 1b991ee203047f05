// Package pubsub holds the Google Pub/Sub handles for order and notification
// events.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("pubsub: CAMPUSCART_GCP_PROJECT_ID is required")

// Client caches one ordered publisher per topic and stops them on Close.
type Client struct {
	api          *pubsub.Client
	project      string
	topics       []string
	subscription string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to project gcp.ProjectID and fails unless every
// configured topic and the notification subscription already exist.
// PUBSUB_EMULATOR_HOST is honoured by the underlying library.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	api, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub %s: %w", project, err)
	}

	c := newClient(api, project, cfg)
	if err := c.Ping(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"gcp_project":  project,
			"topics":       c.topics,
			"subscription": c.subscription,
		}), "pubsub client ready")
	}
	return c, nil
}

func newClient(api *pubsub.Client, project string, cfg config.PubSubConfig) *Client {
	c := &Client{api: api, project: project, publishers: map[string]*pubsub.Publisher{}}
	for _, topic := range []string{cfg.OrdersTopic, cfg.NotificationTopic} {
		if name := c.qualify(topic, "topics"); name != "" {
			c.topics = append(c.topics, name)
		}
	}
	c.subscription = c.qualify(cfg.NotificationSubscription, "subscriptions")
	return c
}

// Ping confirms the configured topics and subscription still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("pubsub: client not connected")
	}
	var errs error
	for _, topic := range c.topics {
		_, err := c.api.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		errs = multierr.Append(errs, describe(err, topic))
	}
	if c.subscription != "" {
		_, err := c.api.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
		errs = multierr.Append(errs, describe(err, c.subscription))
	}
	return errs
}

func describe(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub: %s does not exist", resource)
	default:
		return fmt.Errorf("pubsub: %s: %w", resource, err)
	}
}

// NotificationSubscription is the subscriber the notification worker reads.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil || c.api == nil || c.subscription == "" {
		return nil
	}
	return c.api.Subscriber(c.subscription)
}

// Publisher returns the cached publisher for topic with message ordering on,
// so events sharing an ordering key arrive in publish order.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.api == nil {
		return nil
	}
	name := c.qualify(topic, "topics")
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[name]; ok {
		return pub
	}
	pub := c.api.Publisher(name)
	pub.EnableMessageOrdering = true
	c.publishers[name] = pub
	return pub
}

// Close flushes every cached publisher before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.api.Close()
}

// qualify expands a short id into projects/<project>/<kind>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) qualify(name, kind string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "" || c.project == "":
		return ""
	case strings.HasPrefix(name, "projects/"):
		return name
	default:
		return "projects/" + c.project + "/" + kind + "/" + name
	}
}
