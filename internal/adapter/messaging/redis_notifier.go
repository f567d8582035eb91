package messaging

import (
	"context"
	"fmt"

	"github.com/richstorm00/saas-starter/internal/usecase"
	"github.com/richstorm00/saas-starter/pkg/messaging"
	"go.uber.org/zap"
)

// RedisNotifier publishes subscription changes on a Redis channel so other
// services can refresh cached entitlements.
type RedisNotifier struct {
	client  messaging.RedisClient
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier creates a notifier. An empty channel selects
// usecase.SubscriptionChangedChannel.
func NewRedisNotifier(client messaging.RedisClient, channel string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = usecase.SubscriptionChangedChannel
	}
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (n *RedisNotifier) SubscriptionChanged(ctx context.Context, msg usecase.SubscriptionChanged) error {
	if err := n.client.Publish(ctx, n.channel, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.channel, err)
	}

	n.logger.Debug("Published subscription change",
		zap.String("channel", n.channel),
		zap.String("user_id", msg.UserID),
		zap.String("status", msg.Status),
		zap.String("source", msg.Source))
	return nil
}
