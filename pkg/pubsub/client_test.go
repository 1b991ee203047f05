package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscart/marketplace-backend/pkg/config"
)

func TestQualify(t *testing.T) {
	c := &Client{project: "campus-prod"}

	assert.Equal(t, "projects/campus-prod/topics/cc-order-events", c.qualify(" cc-order-events ", "topics"))
	assert.Equal(t, "projects/other/subscriptions/sub-a", c.qualify("projects/other/subscriptions/sub-a", "subscriptions"))
	assert.Empty(t, c.qualify("  ", "topics"))
	assert.Empty(t, (&Client{}).qualify("t", "topics"))
}

func TestNewClientResolvesConfiguredResources(t *testing.T) {
	c := newClient(nil, "campus-dev", config.PubSubConfig{
		OrdersTopic:              "orders",
		NotificationSubscription: "notify-sub",
	})
	assert.Equal(t, []string{"projects/campus-dev/topics/orders"}, c.topics)
	assert.Equal(t, "projects/campus-dev/subscriptions/notify-sub", c.subscription)
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestUnconnectedClientHandles(t *testing.T) {
	var nilClient *Client
	assert.Nil(t, nilClient.Publisher("x"))
	assert.Nil(t, nilClient.NotificationSubscription())
	assert.Error(t, nilClient.Ping(context.Background()))
	assert.NoError(t, nilClient.Close())

	unconnected := newClient(nil, "p", config.PubSubConfig{NotificationSubscription: "s"})
	assert.Nil(t, unconnected.NotificationSubscription())
	assert.Error(t, unconnected.Ping(context.Background()))
}
