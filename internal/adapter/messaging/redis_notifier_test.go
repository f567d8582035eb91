package messaging_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adapter "github.com/richstorm00/saas-starter/internal/adapter/messaging"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"github.com/richstorm00/saas-starter/pkg/messaging"
)

func TestRedisNotifier_SubscriptionChanged(t *testing.T) {
	server := miniredis.RunT(t)
	client := messaging.NewRedisClientFromClient(redis.NewClient(&redis.Options{Addr: server.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := client.Subscribe(ctx, usecase.SubscriptionChangedChannel)
	require.NoError(t, err)

	notifier := adapter.NewRedisNotifier(client, "", zap.NewNop())
	occurred := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, notifier.SubscriptionChanged(ctx, usecase.SubscriptionChanged{
		UserID:     "user_1",
		CustomerID: "cus_1",
		Status:     "canceled",
		Source:     "customer.subscription.deleted",
		EventID:    "evt_1",
		OccurredAt: occurred,
	}))

	select {
	case msg := <-messages:
		var got usecase.SubscriptionChanged
		require.NoError(t, msg.Decode(&got))
		assert.Equal(t, usecase.SubscriptionChangedChannel, msg.Channel)
		assert.Equal(t, "user_1", got.UserID)
		assert.Equal(t, "canceled", got.Status)
		assert.True(t, occurred.Equal(got.OccurredAt))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestRedisNotifier_PublishFailure(t *testing.T) {
	server := miniredis.RunT(t)
	client := messaging.NewRedisClientFromClient(redis.NewClient(&redis.Options{Addr: server.Addr()}))
	server.Close()

	notifier := adapter.NewRedisNotifier(client, "custom.channel", zap.NewNop())
	err := notifier.SubscriptionChanged(context.Background(), usecase.SubscriptionChanged{UserID: "user_1"})

	assert.ErrorContains(t, err, "custom.channel")
}
