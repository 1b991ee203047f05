package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

var errNoBrokers = errors.New("kafka brokers are required")

// Client owns one synchronous writer per topic. Messages are keyed so every
// event of an aggregate lands on the same partition and keeps its order.
type Client struct {
	brokers []string
	cfg     config.KafkaConfig
	logg    *logger.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewClient(cfg config.KafkaConfig, logg *logger.Logger) (*Client, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	return &Client{
		brokers: brokers,
		cfg:     cfg,
		logg:    logg,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

func (c *Client) writer(topic string) *kafka.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	c.writers[topic] = w
	return w
}

// Publish writes one message and waits for the brokers to acknowledge it.
func (c *Client) Publish(ctx context.Context, topic string, key, value []byte, attrs map[string]string) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("kafka topic is required")
	}
	return c.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now().UTC(),
		Headers: Headers(attrs),
	})
}

// NotificationReader returns a consumer-group reader with manual commits.
func (c *Client) NotificationReader() *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        c.cfg.ConsumerGroup,
		Topic:          c.cfg.NotificationTopic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// Ping dials the first reachable broker.
func (c *Client) Ping(ctx context.Context) error {
	var errs error
	for _, broker := range c.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dial %s: %w", broker, err))
			continue
		}
		return conn.Close()
	}
	return errs
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs error
	for topic, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
	}
	c.writers = map[string]*kafka.Writer{}
	return errs
}

// Headers converts message attributes to kafka headers in a stable order.
func Headers(attrs map[string]string) []kafka.Header {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	headers := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(attrs[k])})
	}
	return headers
}

// Attributes is the inverse of Headers.
func Attributes(headers []kafka.Header) map[string]string {
	attrs := make(map[string]string, len(headers))
	for _, h := range headers {
		attrs[h.Key] = string(h.Value)
	}
	return attrs
}
