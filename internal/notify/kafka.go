package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

const RecoveryTopic = "cart-recovery"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes recovery notices for a downstream messaging service.
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaNotifier(topic string, brokers ...string) *KafkaNotifier {
	if topic == "" {
		topic = RecoveryTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}
}

func (k *KafkaNotifier) NotifyAbandoned(ctx context.Context, r Recovery) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal recovery notice: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(r.OwnerID), // one partition per owner keeps notices ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("cart.abandoned")},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish recovery notice: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
