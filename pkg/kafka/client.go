// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"

	"amara-go/internal/config"
	"amara-go/pkg/events"
	"amara-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// EventProducer defines the interface for publishing message events.
// This decouples the send pipeline from the concrete Kafka client.
type EventProducer interface {
	ProduceMessageEvent(ctx context.Context, ev events.MessageEvent) error
}

type producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。启用开关关闭时返回 nil。
func NewProducer(cfg config.KafkaConfig) EventProducer {
	if !cfg.Enabled {
		log.Info("Kafka 消息事件流未启用")
		return nil
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &producer{writer: w}
}

// ProduceMessageEvent 发送一条消息事件到 Kafka。
// 以会话 id 作为 key，保证同一会话的事件落在同一分区内保序。
func (p *producer) ProduceMessageEvent(ctx context.Context, ev events.MessageEvent) error {
	evBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ChatID),
		Value: evBytes,
	})
}
