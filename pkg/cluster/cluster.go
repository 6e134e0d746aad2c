package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/permissions"
)

const (
	// Channel is the default Redis channel for membership changes
	Channel = "permissions:group-updated"
	// SubscriberName is the name the Bridge registers under
	SubscriberName = "cluster-bridge"
)

// Event is one membership or group change. Group is set for group-level
// changes; Removed marks a deleted group.
type Event struct {
	Node     string `json:"node"`
	Identity string `json:"identity,omitempty"`
	TribeID  int64  `json:"tribe_id,omitempty"`
	Group    string `json:"group,omitempty"`
	Removed  bool   `json:"removed,omitempty"`
}

// Invalidator drops cached subjects and groups
type Invalidator interface {
	Invalidate(identity string, tribeID int64)
	InvalidateGroup(group string)
	Purge()
}

// NewClient connects to the Redis server at url
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Bridge relays membership changes between servers
type Bridge struct {
	client   *redis.Client
	cache    Invalidator
	registry *permissions.Registry
	node     string
	channel  string
	timeout  time.Duration

	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// Option configures a Bridge
type Option func(*Bridge)

// WithChannel overrides the Redis channel
func WithChannel(channel string) Option {
	return func(b *Bridge) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithNodeID overrides the generated node ID
func WithNodeID(node string) Option {
	return func(b *Bridge) {
		if node != "" {
			b.node = node
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Bridge) {
		b.logger = observability.OrDiscard(logger)
	}
}

// WithMetrics counts published and received messages
func WithMetrics(metrics *observability.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = metrics
	}
}

// NewBridge creates a Bridge with a random node ID
func NewBridge(client *redis.Client, cache Invalidator, registry *permissions.Registry, opts ...Option) *Bridge {
	b := &Bridge{
		client:   client,
		cache:    cache,
		registry: registry,
		node:     uuid.New().String(),
		channel:  Channel,
		timeout:  3 * time.Second,
		logger:   observability.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithFields(logrus.Fields{"component": "cluster", "node": b.node})
	return b
}

// Node returns this bridge's node ID
func (b *Bridge) Node() string {
	return b.node
}

// Run subscribes to the channel and to the registry, and relays changes until
// ctx is done
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed before publishing anything
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	b.registry.Subscribe(SubscriberName, b.Publish)
	defer b.registry.Unsubscribe(SubscriberName)
	b.registry.WatchGroups(SubscriberName, b.PublishGroup)
	defer b.registry.UnwatchGroups(SubscriberName)

	b.logger.WithField("channel", b.channel).Info("Cluster bridge started")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.handle(msg.Payload)
		}
	}
}

// Publish broadcasts one membership change
func (b *Bridge) Publish(identity string, tribeID int64) {
	b.send(Event{Node: b.node, Identity: identity, TribeID: tribeID})
}

// PublishGroup broadcasts one group-level change
func (b *Bridge) PublishGroup(group string, removed bool) {
	b.send(Event{Node: b.node, Group: group, Removed: removed})
}

func (b *Bridge) send(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.WithError(err).Error("Failed to encode cluster event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.WithError(err).Warn("Failed to publish cluster event")
		return
	}
	b.metrics.ClusterMessage("out")
}

func (b *Bridge) handle(payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.logger.WithError(err).Warn("Ignoring malformed cluster event")
		return
	}
	if event.Node == b.node {
		return
	}

	b.metrics.ClusterMessage("in")
	log := b.logger.WithField("from", event.Node)

	switch {
	case event.Group != "" && event.Removed:
		// a deleted group was stripped from every subject row
		b.cache.Purge()
		log.WithField("group", event.Group).Debug("Purged cache for removed group")
	case event.Group != "":
		b.cache.InvalidateGroup(event.Group)
		log.WithField("group", event.Group).Debug("Invalidated cached group")
	default:
		b.cache.Invalidate(event.Identity, event.TribeID)
		log.WithFields(logrus.Fields{
			"identity": event.Identity,
			"tribe_id": event.TribeID,
		}).Debug("Invalidated cached subject")
	}
}
