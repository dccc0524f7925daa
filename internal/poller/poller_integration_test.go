package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/cart-engine/internal/cache"
	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/redis/go-redis/v9"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"gotest.tools/v3/assert"
)

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_ClosesCartOnCheckoutEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cartCache := cache.NewRedisCache(client, time.Minute)

	repo := repository.NewMemoryRepository()
	cat := catalog.NewStaticCatalog(catalog.Item{ItemID: "sku-1", Price: money.MustParse("9.99"), Available: true, Currency: money.USD})
	svc := service.NewCartService(repo, cartCache, cat)

	brokers, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	createTopic(t, brokers, DefaultTopic)

	opened, err := svc.AddItem(ctx, "123", service.AddItemRequest{ItemID: "sku-1"})
	require.NoError(t, err)
	_, err = svc.GetCart(ctx, "123") // warm the cache
	require.NoError(t, err)
	assert.Assert(t, mr.Exists("cart:123"))

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers),
		Topic:                  DefaultTopic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	payload, err := json.Marshal(map[string]interface{}{
		"checkout_id":  "chId",
		"user_id":      "123",
		"cart_id":      opened.ID,
		"total_amount": "9.99",
		"currency":     "USD",
		"completed_at": time.Now(),
	})
	require.NoError(t, err)
	err = w.WriteMessages(ctx, kafkaGo.Message{
		Key:     []byte("chId"),
		Value:   payload,
		Headers: []kafkaGo.Header{{Key: "event_type", Value: []byte("CheckoutCompleted")}},
	})
	require.NoError(t, err)
	w.Close()

	p := NewPoller(svc, DefaultTopic, "cart-engine-test", brokers)
	defer p.Close()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		_, errGet := repo.GetActiveCart(ctx, "123")
		return errors.Is(errGet, repository.ErrCartNotFound)
	}, 20*time.Second, 500*time.Millisecond)

	assert.Assert(t, !mr.Exists("cart:123"), "cache entry is invalidated")
	assert.Equal(t, 1, repo.Count())
}
